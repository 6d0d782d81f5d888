package attest

import (
	"fmt"
	"strings"

	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/pylock"
)

// Outcome classifies the resolution of one artifact.
type Outcome string

const (
	// OutcomeVerified means a provenance object was found and every
	// attestation in it verified.
	OutcomeVerified Outcome = "verified"
	// OutcomeNotFound means the index holds no attestations for the artifact.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeFailed means attestations were found but failed verification.
	OutcomeFailed Outcome = "failed"
	// OutcomeSourceError means the provenance source could not be consulted.
	OutcomeSourceError Outcome = "source_error"
	// OutcomeSkipped means the artifact already carried an identity and
	// re-resolution was disabled.
	OutcomeSkipped Outcome = "skipped"
)

// Resolution is the result of resolving one artifact. Identity is set only
// for OutcomeVerified, Err only for OutcomeFailed and OutcomeSourceError.
type Resolution struct {
	Ref      pylock.ArtifactRef
	Outcome  Outcome
	Identity *attestation.Identity
	Err      error

	artifact *pylock.Artifact
}

func (r Resolution) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %s: %s", r.Ref, r.Outcome, r.Err)
	}
	return fmt.Sprintf("%s: %s", r.Ref, r.Outcome)
}

// Summary aggregates the resolutions of one run.
type Summary struct {
	Resolutions []Resolution
	// Updated is the number of artifact entries whose recorded identity
	// changed during the merge.
	Updated int
}

// Count returns how many resolutions ended with the given outcome.
func (s *Summary) Count(outcome Outcome) int {
	n := 0
	for _, r := range s.Resolutions {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failures returns the resolutions that did not succeed, in input order.
func (s *Summary) Failures() []Resolution {
	var out []Resolution
	for _, r := range s.Resolutions {
		if r.Outcome == OutcomeFailed || r.Outcome == OutcomeSourceError {
			out = append(out, r)
		}
	}
	return out
}

func (s *Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d artifacts: %d verified, %d without attestations, %d failed, %d source errors",
		len(s.Resolutions),
		s.Count(OutcomeVerified),
		s.Count(OutcomeNotFound),
		s.Count(OutcomeFailed),
		s.Count(OutcomeSourceError))
	if n := s.Count(OutcomeSkipped); n > 0 {
		fmt.Fprintf(&b, ", %d skipped", n)
	}
	return b.String()
}
