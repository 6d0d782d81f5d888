package pylock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpRoundTrip(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)

	out, err := doc.Dump()
	require.NoError(t, err)
	assert.Equal(t, sampleLock, string(out))
}

func TestDumpStable(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)
	first, err := doc.Dump()
	require.NoError(t, err)

	reparsed, err := Parse(first)
	require.NoError(t, err)
	second, err := reparsed.Dump()
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestDumpPreservesUnknownFields(t *testing.T) {
	input := `lock-version = "1.0"
created-by = "pip"
requires-python = ">=3.9"
extras = []
future-field = 42

[[packages]]
name = "foo"
version = "1.0"
marker = "python_version >= \"3.9\""
dependencies = [{name = "bar"}]

[[packages.wheels]]
name = "foo-1.0-py3-none-any.whl"
size = 1024

[packages.wheels.hashes]
sha256 = "aa"
blake2b = "bb"

[tool.mytool]
option = true
`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)
	out, err := doc.Dump()
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}

func TestDumpAfterSetIdentity(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)

	identity := NewTable()
	identity.Set("issuer", "https://token.actions.githubusercontent.com")
	identity.Set("subject", "repo:foo/foo")
	doc.Packages[0].Wheels[0].SetIdentity(identity)

	out, err := doc.Dump()
	require.NoError(t, err)
	assert.Contains(t, string(out), "[packages.wheels.attestation-identity]\nissuer = \"https://token.actions.githubusercontent.com\"\nsubject = \"repo:foo/foo\"\n")

	// the rewritten document still parses and the identity survives
	reparsed, err := Parse(out)
	require.NoError(t, err)
	got := reparsed.Packages[0].Wheels[0].Identity()
	require.NotNil(t, got)
	assert.Equal(t, "repo:foo/foo", got.GetString("subject"))
}

func TestDumpDatetimeAndNumbers(t *testing.T) {
	input := `lock-version = "1.0"
created-by = "uv"

[[packages]]
name = "foo"
version = "1.0"

[packages.sdist]
name = "foo-1.0.tar.gz"
upload-time = 2024-05-01T10:30:00Z
size = 4096

[packages.sdist.hashes]
sha256 = "cc"
`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)
	out, err := doc.Dump()
	require.NoError(t, err)
	assert.Equal(t, input, string(out))
}
