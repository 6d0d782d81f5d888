package attestation

import (
	"context"
)

// ensure it has all the necessary methods.
var _ Verifier = (*MockVerifier)(nil)

type MockVerifier struct {
	VerifyFunc func(ctx context.Context, dist Distribution, prov *Provenance) (*Identity, error)
}

func (v *MockVerifier) Verify(ctx context.Context, dist Distribution, prov *Provenance) (*Identity, error) {
	if v.VerifyFunc != nil {
		return v.VerifyFunc(ctx, dist, prov)
	}
	return &Identity{}, nil
}
