package attestation

import (
	"bytes"
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"fmt"

	intoto "github.com/in-toto/in-toto-golang/in_toto"
	"github.com/secure-systems-lab/go-securesystemslib/dsse"
	"github.com/sigstore/sigstore/pkg/signature/options"
)

// Verify checks every attestation in every bundle of the provenance object
// against the distribution's declared digest. All attestations must pass;
// the identity returned is the one of the first attestation, enriched with
// the publisher claims of its bundle.
func (v *verifier) Verify(ctx context.Context, dist Distribution, prov *Provenance) (*Identity, error) {
	if prov == nil || len(prov.AttestationBundles) == 0 {
		return nil, failure(ReasonMalformedAttestation, "provenance object carries no attestation bundles")
	}
	if dist.SHA256 == "" {
		return nil, failure(ReasonSubjectMismatch, "distribution %s carries no sha256 digest", dist.Filename)
	}
	var identity *Identity
	for i, bundle := range prov.AttestationBundles {
		if len(bundle.Attestations) == 0 {
			return nil, failure(ReasonMalformedAttestation, "attestation bundle %d carries no attestations", i)
		}
		for _, att := range bundle.Attestations {
			id, err := v.verifyAttestation(ctx, dist, att)
			if err != nil {
				return nil, err
			}
			if identity == nil {
				id.attachPublisher(&bundle.Publisher)
				identity = id
			}
		}
	}
	return identity, nil
}

func (v *verifier) verifyAttestation(ctx context.Context, dist Distribution, att *Attestation) (*Identity, error) {
	cert, err := parseCertificate(att.VerificationMaterial.Certificate)
	if err != nil {
		return nil, failure(ReasonMalformedAttestation, "failed to parse signing certificate: %w", err)
	}

	// short-lived certs are expired by verification time; validate the
	// chain at issuance instead, the log integration time pins actual use
	chainOpts := x509.VerifyOptions{
		Roots:         v.trustRoots.FulcioRoots,
		Intermediates: v.trustRoots.FulcioIntermediates,
		CurrentTime:   cert.NotBefore,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageCodeSigning},
	}
	if _, err := cert.Verify(chainOpts); err != nil {
		return nil, failure(ReasonUntrustedIssuer, "certificate chain validation failed: %w", err)
	}

	identity, err := identityFromCertificate(cert)
	if err != nil {
		return nil, failure(ReasonMalformedAttestation, "failed to extract identity: %w", err)
	}
	if !v.issuerAllowed(identity.Issuer) {
		return nil, failure(ReasonUntrustedIssuer, "issuer %s is not in the allowed issuer list", identity.Issuer)
	}

	statement := new(intoto.Statement)
	if err := json.Unmarshal(att.Envelope.Statement, statement); err != nil {
		return nil, failure(ReasonMalformedAttestation, "failed to unmarshal in-toto statement: %w", err)
	}
	if err := checkSubject(statement, dist); err != nil {
		return nil, failure(ReasonSubjectMismatch, "%w", err)
	}

	encPayload := dsse.PAE(intoto.PayloadType, att.Envelope.Statement)
	sigVerifier, err := v.signatureVerifier(ctx, cert)
	if err != nil {
		return nil, failure(ReasonBadSignature, "failed to load signature verifier: %w", err)
	}
	err = sigVerifier.VerifySignature(bytes.NewReader(att.Envelope.Signature), bytes.NewReader(encPayload), options.WithContext(ctx))
	if err != nil {
		return nil, failure(ReasonBadSignature, "signature verification failed: %w", err)
	}

	if !v.skipTL {
		if err := v.verifyLog(ctx, att, cert); err != nil {
			return nil, err
		}
	}
	return identity, nil
}

func (v *verifier) verifyLog(ctx context.Context, att *Attestation, cert *x509.Certificate) error {
	entries := att.VerificationMaterial.TransparencyEntries
	if len(entries) == 0 {
		return failure(ReasonLogInclusionFailed, "attestation carries no transparency log entries")
	}
	var lastErr error
	for _, entry := range entries {
		integratedTime, err := v.transparencyLog.VerifyEntry(ctx, entry, att.Envelope.Statement, cert)
		if err != nil {
			lastErr = err
			continue
		}
		if integratedTime.Before(cert.NotBefore) || integratedTime.After(cert.NotAfter) {
			return failure(ReasonExpiredCertificate,
				"log integration time %s is outside certificate validity (%s to %s)",
				integratedTime, cert.NotBefore, cert.NotAfter)
		}
		return nil
	}
	return failure(ReasonLogInclusionFailed, "no transparency log entry verified: %w", lastErr)
}

func checkSubject(statement *intoto.Statement, dist Distribution) error {
	for _, subject := range statement.Subject {
		if subject.Name != dist.Filename {
			continue
		}
		digest, ok := subject.Digest["sha256"]
		if !ok {
			continue
		}
		if digest == dist.SHA256 {
			return nil
		}
		return fmt.Errorf("statement digest %s does not match locked digest %s for %s", digest, dist.SHA256, dist.Filename)
	}
	return fmt.Errorf("statement has no subject matching %s", dist.Filename)
}

func parseCertificate(encoded string) (*x509.Certificate, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	return x509.ParseCertificate(der)
}
