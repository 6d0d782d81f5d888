package pylock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLock = `lock-version = "1.0"
environments = ["python_version >= \"3.9\""]
created-by = "pip"

[[packages]]
name = "foo"
version = "1.0"
custom-field = "keep-me"

[packages.sdist]
name = "foo-1.0.tar.gz"
url = "https://files.pythonhosted.org/packages/foo-1.0.tar.gz"
size = 10240

[packages.sdist.hashes]
sha256 = "3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d"

[[packages.wheels]]
name = "foo-1.0-py3-none-any.whl"
url = "https://files.pythonhosted.org/packages/foo-1.0-py3-none-any.whl"

[packages.wheels.hashes]
sha256 = "2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae"

[[packages]]
name = "Bar_baz"
version = "2.1.0"

[[packages.wheels]]
name = "bar_baz-2.1.0-py3-none-any.whl"

[packages.wheels.hashes]
sha256 = "fcde2b2edba56bf408601fb721fe9b5c338d10ee429ea04fae5511b68fbf8fb9"

[tool.pdm]
hashes = true
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)

	assert.Equal(t, "1.0", doc.LockVersion)
	assert.Equal(t, "pip", doc.CreatedBy)
	require.Len(t, doc.Packages, 2)

	foo := doc.Packages[0]
	assert.Equal(t, "foo", foo.Name)
	assert.Equal(t, "1.0", foo.Version)
	require.NotNil(t, foo.Sdist)
	assert.Equal(t, "foo-1.0.tar.gz", foo.Sdist.Filename())
	assert.Equal(t, "3e23e8160039594a33894f6564e1b1348bbd7a0088d42c4acb73eeaed59c009d", foo.Sdist.SHA256())
	require.Len(t, foo.Wheels, 1)
	assert.Equal(t, "foo-1.0-py3-none-any.whl", foo.Wheels[0].Filename())

	bar := doc.Packages[1]
	assert.Equal(t, "Bar_baz", bar.Name)
	assert.Equal(t, "bar-baz", bar.NormalizedName())
	assert.Nil(t, bar.Sdist)

	assert.Len(t, doc.Artifacts(), 3)
}

func TestParseMalformed(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"not toml", "= bogus ="},
		{"missing packages", "lock-version = \"1.0\"\ncreated-by = \"pip\"\n"},
		{"missing lock version", "created-by = \"pip\"\npackages = []\n"},
		{"unsupported lock version", "lock-version = \"2.0\"\ncreated-by = \"pip\"\npackages = []\n"},
		{"packages not a table array", "lock-version = \"1.0\"\ncreated-by = \"pip\"\npackages = [1]\n"},
		{"package missing name", "lock-version = \"1.0\"\ncreated-by = \"pip\"\n[[packages]]\nversion = \"1.0\"\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDocument)
		})
	}
}

func TestParseEmptyPackageList(t *testing.T) {
	doc, err := Parse([]byte("lock-version = \"1.0\"\ncreated-by = \"uv\"\npackages = []\n"))
	require.NoError(t, err)
	assert.Empty(t, doc.Packages)
}

func TestFilenameFromURL(t *testing.T) {
	input := `lock-version = "1.0"
created-by = "pip"

[[packages]]
name = "foo"
version = "1.0"

[[packages.wheels]]
url = "https://example.com/wheels/foo-1.0-py3-none-any.whl"

[packages.wheels.hashes]
sha256 = "aa"
`
	doc, err := Parse([]byte(input))
	require.NoError(t, err)
	require.Len(t, doc.Packages[0].Wheels, 1)
	assert.Equal(t, "foo-1.0-py3-none-any.whl", doc.Packages[0].Wheels[0].Filename())
}

func TestNormalizeName(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"foo", "foo"},
		{"Foo", "foo"},
		{"foo_bar", "foo-bar"},
		{"Foo.Bar__Baz", "foo-bar-baz"},
		{"friendly-bard", "friendly-bard"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), tc.in)
	}
}

func TestArtifactRef(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)

	ref := doc.Packages[0].Wheels[0].Ref()
	assert.Equal(t, "foo", ref.Name)
	assert.Equal(t, "1.0", ref.Version)
	assert.Equal(t, "foo-1.0-py3-none-any.whl", ref.Filename)
	assert.Equal(t, "foo 1.0 (foo-1.0-py3-none-any.whl)", ref.String())
	assert.Equal(t, "pkg:pypi/foo@1.0", ref.PURL())
}

func TestSetIdentity(t *testing.T) {
	doc, err := Parse([]byte(sampleLock))
	require.NoError(t, err)

	wheel := doc.Packages[0].Wheels[0]
	assert.Nil(t, wheel.Identity())

	identity := NewTable()
	identity.Set("issuer", "https://token.actions.githubusercontent.com")
	identity.Set("subject", "repo:foo/foo")
	wheel.SetIdentity(identity)

	got := wheel.Identity()
	require.NotNil(t, got)
	assert.Equal(t, "https://token.actions.githubusercontent.com", got.GetString("issuer"))

	// overwriting keeps a single identity table
	replacement := NewTable()
	replacement.Set("issuer", "https://accounts.google.com")
	replacement.Set("subject", "other")
	wheel.SetIdentity(replacement)
	assert.Equal(t, "https://accounts.google.com", wheel.Identity().GetString("issuer"))
}
