package attest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/integrity"
	"github.com/pylock/attest/pylock"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultConcurrency bounds the provenance lookups in flight at once.
	DefaultConcurrency = 4
	// DefaultCallTimeout bounds one lookup-and-verify round trip.
	DefaultCallTimeout = 30 * time.Second
)

// Engine resolves attestation identities for the artifacts of a lock
// document and merges them back in. Failures never abort a run: each
// artifact gets its own Resolution and the rest proceed.
type Engine struct {
	source       integrity.Source
	verifier     attestation.Verifier
	skipExisting bool
	concurrency  int
	callTimeout  time.Duration
	logger       *zerolog.Logger
}

func WithSource(source integrity.Source) func(*Engine) {
	return func(e *Engine) {
		e.source = source
	}
}

func WithVerifier(verifier attestation.Verifier) func(*Engine) {
	return func(e *Engine) {
		e.verifier = verifier
	}
}

// WithSkipExisting leaves artifacts that already carry an identity alone
// instead of re-resolving them.
func WithSkipExisting(skip bool) func(*Engine) {
	return func(e *Engine) {
		e.skipExisting = skip
	}
}

func WithConcurrency(n int) func(*Engine) {
	return func(e *Engine) {
		e.concurrency = n
	}
}

// WithCallTimeout bounds each artifact's lookup and verification.
func WithCallTimeout(d time.Duration) func(*Engine) {
	return func(e *Engine) {
		e.callTimeout = d
	}
}

func WithLogger(logger *zerolog.Logger) func(*Engine) {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(options ...func(*Engine)) (*Engine, error) {
	engine := &Engine{
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
	}
	for _, opt := range options {
		opt(engine)
	}
	if engine.source == nil {
		return nil, fmt.Errorf("provenance source must be set")
	}
	if engine.verifier == nil {
		return nil, fmt.Errorf("verifier must be set")
	}
	if engine.concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", engine.concurrency)
	}
	if engine.logger == nil {
		nop := zerolog.Nop()
		engine.logger = &nop
	}
	return engine, nil
}

// Resolve looks up and verifies provenance for every artifact in the
// document. Lookups run concurrently; results come back in the document's
// artifact order regardless of completion order. The returned error is
// non-nil only when the context is cancelled.
func (e *Engine) Resolve(ctx context.Context, doc *pylock.Document) ([]Resolution, error) {
	artifacts := doc.Artifacts()
	results := make([]Resolution, len(artifacts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, artifact := range artifacts {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = e.resolveOne(egCtx, artifact)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) resolveOne(ctx context.Context, artifact *pylock.Artifact) Resolution {
	ref := artifact.Ref()
	res := Resolution{Ref: ref, artifact: artifact}
	log := e.logger.With().Stringer("artifact", ref).Logger()

	if e.skipExisting && artifact.Identity() != nil {
		log.Debug().Msg("identity already present, skipping")
		res.Outcome = OutcomeSkipped
		return res
	}

	// without a declared digest there is nothing to bind an attestation to
	if ref.SHA256 == "" {
		log.Debug().Msg("artifact has no sha256 digest")
		res.Outcome = OutcomeNotFound
		return res
	}

	if e.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.callTimeout)
		defer cancel()
	}

	prov, err := e.source.Lookup(ctx, ref)
	if err != nil {
		log.Warn().Err(err).Msg("provenance lookup failed")
		res.Outcome = OutcomeSourceError
		res.Err = err
		return res
	}
	if prov == nil {
		log.Debug().Msg("no attestations published")
		res.Outcome = OutcomeNotFound
		return res
	}

	identity, err := e.verifier.Verify(ctx, attestation.Distribution{
		Filename: ref.Filename,
		SHA256:   ref.SHA256,
	}, prov)
	if err == nil && identity == nil {
		err = &attestation.VerificationError{
			Reason: attestation.ReasonMalformedAttestation,
			Err:    fmt.Errorf("verifier returned no identity for %s", ref),
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("verification timed out")
			res.Outcome = OutcomeSourceError
			res.Err = err
			return res
		}
		log.Warn().Err(err).Msg("attestation failed verification")
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	log.Info().
		Str("purl", ref.PURL()).
		Str("issuer", identity.Issuer).
		Str("subject", identity.Subject).
		Msg("attestation verified")
	res.Outcome = OutcomeVerified
	res.Identity = identity
	return res
}
