package integrity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/pylock"
	"github.com/pylock/attest/useragent"
)

const (
	// DefaultBaseURL is the PyPI integrity API.
	DefaultBaseURL = "https://pypi.org/integrity"

	provenanceMediaType = "application/vnd.pypi.integrity.v1+json"
)

// Source resolves provenance for a distribution artifact. A nil provenance
// with a nil error means the index holds no attestations for the artifact.
type Source interface {
	Lookup(ctx context.Context, ref pylock.ArtifactRef) (*attestation.Provenance, error)
}

// ensure it has all the necessary methods.
var _ Source = (*Client)(nil)

// Client queries a PEP 740 provenance endpoint over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

func WithBaseURL(baseURL string) func(*Client) {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithHTTPClient(hc *http.Client) func(*Client) {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(options ...func(*Client)) *Client {
	client := &Client{
		baseURL: DefaultBaseURL,
	}
	for _, opt := range options {
		opt(client)
	}
	if client.http == nil {
		rc := retryablehttp.NewClient()
		rc.Logger = nil
		client.http = rc.StandardClient()
	}
	return client
}

// Lookup fetches provenance for the artifact. The index returns 404 both for
// unknown artifacts and for artifacts uploaded without attestations, so a 404
// maps to (nil, nil).
func (c *Client) Lookup(ctx context.Context, ref pylock.ArtifactRef) (*attestation.Provenance, error) {
	if ref.Name == "" || ref.Version == "" || ref.Filename == "" {
		return nil, fmt.Errorf("artifact reference is incomplete: %s", ref)
	}
	endpoint := fmt.Sprintf("%s/%s/%s/%s/provenance",
		c.baseURL,
		url.PathEscape(pylock.NormalizeName(ref.Name)),
		url.PathEscape(ref.Version),
		url.PathEscape(ref.Filename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create provenance request: %w", err)
	}
	req.Header.Set("Accept", provenanceMediaType)
	req.Header.Set("User-Agent", useragent.Get(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provenance request for %s failed: %w", ref, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, nil
	default:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("provenance request for %s returned status %s", ref, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provenance response for %s: %w", ref, err)
	}
	prov, err := attestation.ParseProvenance(body)
	if err != nil {
		return nil, fmt.Errorf("invalid provenance for %s: %w", ref, err)
	}
	return prov, nil
}
