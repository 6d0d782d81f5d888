package tlog

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"time"
)

// ensure it has all the necessary methods.
var _ TransparencyLog = (*MockTransparencyLog)(nil)

type MockTransparencyLog struct {
	VerifyFunc func(ctx context.Context, entry json.RawMessage, payload []byte, cert *x509.Certificate) (time.Time, error)
}

func (tl *MockTransparencyLog) VerifyEntry(ctx context.Context, entry json.RawMessage, payload []byte, cert *x509.Certificate) (time.Time, error) {
	if tl.VerifyFunc != nil {
		return tl.VerifyFunc(ctx, entry, payload, cert)
	}
	return time.Time{}, nil
}
