package attestation

import (
	"encoding/json"
	"fmt"
)

// Provenance is the attestation bundle set published for one distribution
// file, as served by a package index integrity API (PEP 740).
type Provenance struct {
	Version            int                  `json:"version"`
	AttestationBundles []*AttestationBundle `json:"attestation_bundles"`
}

// AttestationBundle groups the attestations produced by a single publisher
// identity.
type AttestationBundle struct {
	Publisher    Publisher      `json:"publisher"`
	Attestations []*Attestation `json:"attestations"`
}

// Publisher is the trusted-publisher claim attached to a bundle. Only kind
// is interpreted; every other claim is carried opaquely.
type Publisher struct {
	Kind   string
	Claims map[string]any
}

func (p *Publisher) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if kind, ok := raw["kind"].(string); ok {
		p.Kind = kind
	}
	delete(raw, "kind")
	p.Claims = raw
	return nil
}

func (p Publisher) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Claims)+1)
	for k, v := range p.Claims {
		out[k] = v
	}
	if p.Kind != "" {
		out["kind"] = p.Kind
	}
	return json.Marshal(out)
}

// Attestation is a single signed statement: a DSSE envelope plus the
// material needed to verify it.
type Attestation struct {
	Version              int                  `json:"version"`
	VerificationMaterial VerificationMaterial `json:"verification_material"`
	Envelope             Envelope             `json:"envelope"`
}

type VerificationMaterial struct {
	// Certificate is the base64-encoded DER signing certificate.
	Certificate         string            `json:"certificate"`
	TransparencyEntries []json.RawMessage `json:"transparency_entries"`
}

// Envelope is the simplified DSSE envelope of PEP 740: exactly one signature
// over an in-toto statement. The JSON fields are base64, which encoding/json
// maps onto []byte directly.
type Envelope struct {
	Statement []byte `json:"statement"`
	Signature []byte `json:"signature"`
}

// ParseProvenance decodes a provenance object and rejects shapes that cannot
// be verified at all.
func ParseProvenance(data []byte) (*Provenance, error) {
	prov := new(Provenance)
	if err := json.Unmarshal(data, prov); err != nil {
		return nil, fmt.Errorf("failed to unmarshal provenance object: %w", err)
	}
	if len(prov.AttestationBundles) == 0 {
		return nil, fmt.Errorf("provenance object carries no attestation bundles")
	}
	for i, bundle := range prov.AttestationBundles {
		if len(bundle.Attestations) == 0 {
			return nil, fmt.Errorf("attestation bundle %d carries no attestations", i)
		}
	}
	return prov, nil
}

// Distribution identifies the artifact an attestation must be bound to: its
// filename and declared sha256 hex digest. The digest is the one recorded in
// the lock file, never recomputed.
type Distribution struct {
	Filename string
	SHA256   string
}
