package integrity

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pylock/attest/pylock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProvenance = `{
	"version": 1,
	"attestation_bundles": [
		{
			"publisher": {
				"kind": "GitHub",
				"repository": "octo/foo",
				"workflow": "release.yml"
			},
			"attestations": [
				{
					"version": 1,
					"verification_material": {
						"certificate": "Y2VydA==",
						"transparency_entries": [{"logIndex": "123"}]
					},
					"envelope": {
						"statement": "c3RhdGVtZW50",
						"signature": "c2ln"
					}
				}
			]
		}
	]
}`

func testRef() pylock.ArtifactRef {
	return pylock.ArtifactRef{
		Name:     "Foo.Bar",
		Version:  "1.2.3",
		Filename: "foo_bar-1.2.3-py3-none-any.whl",
		SHA256:   "abc123",
	}
}

func TestLookup(t *testing.T) {
	var gotPath, gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", provenanceMediaType)
		fmt.Fprint(w, sampleProvenance)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	prov, err := client.Lookup(context.Background(), testRef())
	require.NoError(t, err)
	require.NotNil(t, prov)
	require.Len(t, prov.AttestationBundles, 1)

	bundle := prov.AttestationBundles[0]
	assert.Equal(t, "GitHub", bundle.Publisher.Kind)
	assert.Equal(t, "octo/foo", bundle.Publisher.Claims["repository"])
	require.Len(t, bundle.Attestations, 1)
	assert.Equal(t, []byte("statement"), bundle.Attestations[0].Envelope.Statement)

	// name is normalized, version and filename pass through
	assert.Equal(t, "/foo-bar/1.2.3/foo_bar-1.2.3-py3-none-any.whl/provenance", gotPath)
	assert.Equal(t, provenanceMediaType, gotAccept)
	assert.Contains(t, gotUA, "pylock-attest")
}

func TestLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	prov, err := client.Lookup(context.Background(), testRef())
	require.NoError(t, err)
	assert.Nil(t, prov)
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := client.Lookup(context.Background(), testRef())
	require.Error(t, err)
	assert.ErrorContains(t, err, "500")
}

func TestLookupMalformedProvenance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"version": 1, "attestation_bundles": []}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := client.Lookup(context.Background(), testRef())
	require.Error(t, err)
	assert.ErrorContains(t, err, "invalid provenance")
}

func TestLookupIncompleteRef(t *testing.T) {
	client := NewClient()
	_, err := client.Lookup(context.Background(), pylock.ArtifactRef{Name: "foo"})
	require.Error(t, err)
}
