package pylock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/package-url/packageurl-go"
)

// ErrMalformedDocument marks fatal parse failures: the input cannot be
// interpreted as a PEP 751 lock document.
var ErrMalformedDocument = errors.New("malformed lock document")

type ArtifactKind string

const (
	KindSdist ArtifactKind = "sdist"
	KindWheel ArtifactKind = "wheel"
)

// Document is a parsed pylock.toml. The underlying ordered table tree is the
// source of truth: every field this tool does not understand stays in the
// tree untouched and is re-emitted verbatim on Dump. Packages and Artifacts
// are typed views into that tree.
type Document struct {
	LockVersion string
	CreatedBy   string
	Packages    []*Package

	root *Table
}

// Package is one locked dependency. Name and Version are read-only copies of
// the underlying entry; NormalizedName is for comparison only, the original
// casing survives on output.
type Package struct {
	Name    string
	Version string
	Sdist   *Artifact
	Wheels  []*Artifact

	tbl *Table
}

// NormalizedName applies PEP 503 normalization: lowercase with runs of
// [-_.] collapsed to a single dash.
func (p *Package) NormalizedName() string {
	return NormalizeName(p.Name)
}

func NormalizeName(name string) string {
	var b strings.Builder
	prevSep := false
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			prevSep = true
			continue
		}
		if prevSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		prevSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// Artifact is one distributable file (sdist or wheel) of a package.
type Artifact struct {
	Kind ArtifactKind

	pkg *Package
	tbl *Table
}

// Filename returns the distribution filename, from the entry's name key or,
// failing that, the last segment of its url.
func (a *Artifact) Filename() string {
	if name := a.tbl.GetString("name"); name != "" {
		return name
	}
	if url := a.tbl.GetString("url"); url != "" {
		if i := strings.LastIndexByte(url, '/'); i >= 0 {
			return url[i+1:]
		}
		return url
	}
	if path := a.tbl.GetString("path"); path != "" {
		if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
			return path[i+1:]
		}
		return path
	}
	return ""
}

// SHA256 returns the declared hex digest of the artifact, or "" when the
// entry carries no sha256 hash. The digest is never recomputed from contents.
func (a *Artifact) SHA256() string {
	hashes := a.tbl.GetTable("hashes")
	if hashes == nil {
		return ""
	}
	return hashes.GetString("sha256")
}

const identityKey = "attestation-identity"

// Identity returns the attestation-identity sub-table recorded on this
// artifact, or nil.
func (a *Artifact) Identity() *Table {
	return a.tbl.GetTable(identityKey)
}

// SetIdentity records an attestation identity on the artifact, replacing any
// prior value but keeping the key's position in the entry.
func (a *Artifact) SetIdentity(identity *Table) {
	a.tbl.Set(identityKey, identity)
}

// Ref identifies the artifact by package name, version and filename for
// deterministic reporting.
func (a *Artifact) Ref() ArtifactRef {
	return ArtifactRef{
		Name:     a.pkg.Name,
		Version:  a.pkg.Version,
		Filename: a.Filename(),
		SHA256:   a.SHA256(),
	}
}

// ArtifactRef is the reporting key for one artifact resolution.
type ArtifactRef struct {
	Name     string
	Version  string
	Filename string
	SHA256   string
}

func (r ArtifactRef) String() string {
	return fmt.Sprintf("%s %s (%s)", r.Name, r.Version, r.Filename)
}

// PURL renders the artifact's package as a pkg:pypi purl.
func (r ArtifactRef) PURL() string {
	return packageurl.NewPackageURL(packageurl.TypePyPi, "", NormalizeName(r.Name), r.Version, nil, "").ToString()
}

// Parse decodes a pylock.toml byte stream. Unknown fields at every level are
// preserved. A document without the required top-level structure is rejected
// with ErrMalformedDocument.
func Parse(data []byte) (*Document, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
	}
	root := buildTree(raw, md)
	return fromTree(root)
}

func fromTree(root *Table) (*Document, error) {
	doc := &Document{root: root}
	var validationErrors []error

	doc.LockVersion = root.GetString("lock-version")
	if doc.LockVersion == "" {
		validationErrors = append(validationErrors, fmt.Errorf("missing required key %q", "lock-version"))
	} else if !strings.HasPrefix(doc.LockVersion, "1.") && doc.LockVersion != "1" {
		validationErrors = append(validationErrors, fmt.Errorf("unsupported lock-version %q", doc.LockVersion))
	}
	doc.CreatedBy = root.GetString("created-by")
	if doc.CreatedBy == "" {
		validationErrors = append(validationErrors, fmt.Errorf("missing required key %q", "created-by"))
	}

	if !root.Has("packages") {
		validationErrors = append(validationErrors, fmt.Errorf("missing required key %q", "packages"))
	} else if pkgs := root.tableArray("packages"); pkgs == nil {
		validationErrors = append(validationErrors, fmt.Errorf("key %q is not an array of tables", "packages"))
	} else {
		for i, tbl := range pkgs {
			pkg, err := packageFromTable(tbl)
			if err != nil {
				validationErrors = append(validationErrors, fmt.Errorf("packages[%d]: %w", i, err))
				continue
			}
			doc.Packages = append(doc.Packages, pkg)
		}
	}

	if len(validationErrors) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDocument, errors.Join(validationErrors...))
	}
	return doc, nil
}

func packageFromTable(tbl *Table) (*Package, error) {
	pkg := &Package{tbl: tbl}
	pkg.Name = tbl.GetString("name")
	if pkg.Name == "" {
		return nil, fmt.Errorf("missing required key %q", "name")
	}
	pkg.Version = tbl.GetString("version")

	if sdist := tbl.GetTable("sdist"); sdist != nil {
		pkg.Sdist = &Artifact{Kind: KindSdist, pkg: pkg, tbl: sdist}
	}
	for _, wheel := range tbl.tableArray("wheels") {
		pkg.Wheels = append(pkg.Wheels, &Artifact{Kind: KindWheel, pkg: pkg, tbl: wheel})
	}
	return pkg, nil
}

// Artifacts lists every artifact in declaration order: per package the sdist
// first, then wheels.
func (d *Document) Artifacts() []*Artifact {
	var out []*Artifact
	for _, pkg := range d.Packages {
		if pkg.Sdist != nil {
			out = append(out, pkg.Sdist)
		}
		out = append(out, pkg.Wheels...)
	}
	return out
}
