package attestation

import "fmt"

// FailureReason classifies why an attestation failed verification. Failures
// are per-artifact and recoverable: the caller reports them and moves on.
type FailureReason string

const (
	ReasonUntrustedIssuer      FailureReason = "UntrustedIssuer"
	ReasonBadSignature         FailureReason = "BadSignature"
	ReasonSubjectMismatch      FailureReason = "SubjectMismatch"
	ReasonExpiredCertificate   FailureReason = "ExpiredCertificate"
	ReasonLogInclusionFailed   FailureReason = "LogInclusionFailed"
	ReasonMalformedAttestation FailureReason = "MalformedAttestation"
)

// VerificationError is returned by a Verifier when a bundle was found but
// failed a cryptographic or policy check.
type VerificationError struct {
	Reason FailureReason
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Err)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func failure(reason FailureReason, format string, args ...any) *VerificationError {
	return &VerificationError{Reason: reason, Err: fmt.Errorf(format, args...)}
}
