package tlog

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	"github.com/go-openapi/strfmt"
	"github.com/pylock/attest/internal/util"
	"github.com/pylock/attest/tuf"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	"github.com/sigstore/rekor/pkg/generated/models"
	"github.com/sigstore/rekor/pkg/types"
	dsse_v001 "github.com/sigstore/rekor/pkg/types/dsse/v0.0.1"
	"github.com/sigstore/sigstore/pkg/cryptoutils"
	stuf "github.com/sigstore/sigstore/pkg/tuf"
)

// ensure it has all the necessary methods.
var _ TransparencyLog = (*Rekor)(nil)

// Rekor verifies transparency entries offline against a set of trusted log
// public keys. Keys for unknown log IDs are fetched through the TUF
// downloader when one is configured.
type Rekor struct {
	publicKeys    *cosign.TrustedTransparencyLogPubKeys
	tufDownloader tuf.Downloader
}

func WithTUFDownloader(tufDownloader tuf.Downloader) func(*Rekor) {
	return func(r *Rekor) {
		r.tufDownloader = tufDownloader
	}
}

// WithPublicKeys trusts the given log keys, keyed by log ID.
func WithPublicKeys(keys map[string]crypto.PublicKey) func(*Rekor) {
	return func(r *Rekor) {
		for id, key := range keys {
			r.publicKeys.Keys[id] = cosign.TransparencyLogPubKey{
				PubKey: key,
				Status: stuf.Active,
			}
		}
	}
}

func NewRekorLog(options ...func(*Rekor)) (*Rekor, error) {
	rekor := &Rekor{
		publicKeys: &cosign.TrustedTransparencyLogPubKeys{
			Keys: map[string]cosign.TransparencyLogPubKey{},
		},
	}
	for _, opt := range options {
		opt(rekor)
	}
	return rekor, nil
}

// VerifyEntry verifies a transparency log entry offline: inclusion proof and
// signed entry timestamp against the log key, then the entry body against
// the statement payload.
func (tl *Rekor) VerifyEntry(ctx context.Context, raw json.RawMessage, payload []byte, _ *x509.Certificate) (time.Time, error) {
	zeroTime := time.Time{}
	entry := new(transparencyEntry)
	if err := json.Unmarshal(raw, entry); err != nil {
		return zeroTime, fmt.Errorf("error unmarshaling TL entry: %w", err)
	}
	if len(entry.CanonicalizedBody) == 0 {
		return zeroTime, fmt.Errorf("error TL entry has no canonicalized body")
	}

	logID := hex.EncodeToString(entry.LogID.KeyID)
	if err := tl.resolveKey(logID); err != nil {
		return zeroTime, err
	}

	le, err := toLogEntry(entry, logID)
	if err != nil {
		return zeroTime, err
	}
	if err := le.Validate(strfmt.Default); err != nil {
		return zeroTime, fmt.Errorf("TL entry failed validation: %w", err)
	}
	if err := cosign.VerifyTLogEntryOffline(ctx, le, tl.publicKeys); err != nil {
		return zeroTime, fmt.Errorf("TL entry failed verification: %w", err)
	}

	if err := verifyEntryPayload(entry.CanonicalizedBody, payload); err != nil {
		return zeroTime, fmt.Errorf("error verifying TL entry payload: %w", err)
	}
	return time.Unix(int64(entry.IntegratedTime), 0), nil
}

// resolveKey makes sure the log ID has a trusted public key, falling back to
// the TUF rekor key target for IDs not seen before.
func (tl *Rekor) resolveKey(logID string) error {
	if _, ok := tl.publicKeys.Keys[logID]; ok {
		return nil
	}
	if tl.tufDownloader == nil {
		return fmt.Errorf("error no public key for transparency log %s", logID)
	}
	target, err := tl.tufDownloader.DownloadTarget("rekor.pub", "")
	if err != nil {
		return fmt.Errorf("error downloading rekor public key: %w", err)
	}
	pk, err := cryptoutils.UnmarshalPEMToPublicKey(target.Data)
	if err != nil {
		return fmt.Errorf("error parsing rekor public key: %w", err)
	}
	kid, err := util.KeyID(pk)
	if err != nil {
		return fmt.Errorf("error getting keyid: %w", err)
	}
	if kid != logID {
		return fmt.Errorf("error rekor public key %s does not match log id %s", kid, logID)
	}
	tl.publicKeys.Keys[logID] = cosign.TransparencyLogPubKey{
		PubKey: pk,
		Status: stuf.Active,
	}
	return nil
}

// toLogEntry rebuilds the rekor API representation the offline verifier
// expects; hashes move from raw bytes to hex on the way.
func toLogEntry(entry *transparencyEntry, logID string) (*models.LogEntryAnon, error) {
	if len(entry.InclusionProof.RootHash) == 0 || entry.InclusionProof.Checkpoint.Envelope == "" {
		return nil, fmt.Errorf("error TL entry has no inclusion proof")
	}
	hashes := make([]string, len(entry.InclusionProof.Hashes))
	for i, h := range entry.InclusionProof.Hashes {
		hashes[i] = hex.EncodeToString(h)
	}
	body := strfmt.Base64(entry.CanonicalizedBody).String()
	rootHash := hex.EncodeToString(entry.InclusionProof.RootHash)
	checkpoint := entry.InclusionProof.Checkpoint.Envelope
	integratedTime := int64(entry.IntegratedTime)
	logIndex := int64(entry.LogIndex)
	proofIndex := int64(entry.InclusionProof.LogIndex)
	treeSize := int64(entry.InclusionProof.TreeSize)

	return &models.LogEntryAnon{
		Body:           body,
		IntegratedTime: &integratedTime,
		LogID:          &logID,
		LogIndex:       &logIndex,
		Verification: &models.LogEntryAnonVerification{
			SignedEntryTimestamp: strfmt.Base64(entry.InclusionPromise.SignedEntryTimestamp),
			InclusionProof: &models.InclusionProof{
				Checkpoint: &checkpoint,
				Hashes:     hashes,
				LogIndex:   &proofIndex,
				RootHash:   &rootHash,
				TreeSize:   &treeSize,
			},
		},
	}, nil
}

// verifyEntryPayload checks that the logged dsse entry is over the same
// statement we verified the envelope signature for.
func verifyEntryPayload(canonicalizedBody, payload []byte) error {
	pe, err := models.UnmarshalProposedEntry(bytes.NewReader(canonicalizedBody), runtime.JSONConsumer())
	if err != nil {
		return err
	}
	impl, err := types.UnmarshalEntry(pe)
	if err != nil {
		return err
	}
	dsseEntry, ok := impl.(*dsse_v001.V001Entry)
	if !ok {
		return fmt.Errorf("unsupported TL entry type: %T", impl)
	}
	payloadHash := dsseEntry.DSSEObj.PayloadHash
	if payloadHash == nil || payloadHash.Value == nil {
		return fmt.Errorf("TL entry carries no payload hash")
	}
	if !strings.EqualFold(*payloadHash.Value, util.SHA256Hex(payload)) {
		return fmt.Errorf("error payload and tl entry hash mismatch")
	}
	return nil
}
