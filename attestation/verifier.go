package attestation

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/pylock/attest/tlog"
	"github.com/sigstore/sigstore/pkg/signature"
)

// Verifier checks a provenance object against a distribution's declared
// digest and returns the verified signer identity.
type Verifier interface {
	Verify(ctx context.Context, dist Distribution, prov *Provenance) (*Identity, error)
}

// SignatureVerifierFactory builds the signature verifier for a leaf
// certificate. Overridable for tests.
type SignatureVerifierFactory func(ctx context.Context, cert *x509.Certificate) (signature.Verifier, error)

func WithTrustRoots(roots *TrustRoots) func(*verifier) {
	return func(v *verifier) {
		v.trustRoots = roots
	}
}

func WithTransparencyLog(tl tlog.TransparencyLog) func(*verifier) {
	return func(v *verifier) {
		v.transparencyLog = tl
	}
}

// WithAllowedIssuers restricts verification to identities from the given
// OIDC issuers. An empty list accepts any issuer the trust roots vouch for.
func WithAllowedIssuers(issuers []string) func(*verifier) {
	return func(v *verifier) {
		v.allowedIssuers = issuers
	}
}

// WithSkipTransparencyLog disables transparency log inclusion checking.
func WithSkipTransparencyLog(skip bool) func(*verifier) {
	return func(v *verifier) {
		v.skipTL = skip
	}
}

func WithSignatureVerifierFactory(factory SignatureVerifierFactory) func(*verifier) {
	return func(v *verifier) {
		v.signatureVerifierFactory = factory
	}
}

// NewVerifier creates the production Verifier. Trust roots are required; the
// transparency log defaults to Rekor keyed by the trust roots' log keys.
func NewVerifier(options ...func(*verifier)) (Verifier, error) {
	v := &verifier{}
	for _, opt := range options {
		opt(v)
	}
	if v.trustRoots == nil {
		return nil, fmt.Errorf("trust roots must be set")
	}
	if v.transparencyLog == nil && !v.skipTL {
		tl, err := tlog.NewRekorLog(tlog.WithPublicKeys(v.trustRoots.RekorKeys))
		if err != nil {
			return nil, fmt.Errorf("failed to create rekor verifier: %w", err)
		}
		v.transparencyLog = tl
	}
	return v, nil
}

// ensure it has all the necessary methods.
var _ Verifier = (*verifier)(nil)

type verifier struct {
	trustRoots               *TrustRoots
	transparencyLog          tlog.TransparencyLog
	allowedIssuers           []string
	skipTL                   bool
	signatureVerifierFactory SignatureVerifierFactory
}

func (v *verifier) signatureVerifier(ctx context.Context, cert *x509.Certificate) (signature.Verifier, error) {
	if v.signatureVerifierFactory != nil {
		return v.signatureVerifierFactory(ctx, cert)
	}
	return signature.LoadVerifier(cert.PublicKey, crypto.SHA256)
}

func (v *verifier) issuerAllowed(issuer string) bool {
	if len(v.allowedIssuers) == 0 {
		return true
	}
	for _, allowed := range v.allowedIssuers {
		if issuer == allowed {
			return true
		}
	}
	return false
}
