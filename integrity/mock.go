package integrity

import (
	"context"

	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/pylock"
)

// ensure it has all the necessary methods.
var _ Source = (*MockSource)(nil)

type MockSource struct {
	LookupFunc func(ctx context.Context, ref pylock.ArtifactRef) (*attestation.Provenance, error)
}

func (s *MockSource) Lookup(ctx context.Context, ref pylock.ArtifactRef) (*attestation.Provenance, error) {
	if s.LookupFunc != nil {
		return s.LookupFunc(ctx, ref)
	}
	return nil, nil
}
