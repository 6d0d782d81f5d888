package tlog

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"strconv"
	"time"
)

// TransparencyLog verifies that a signed statement was included in a
// transparency log. The entry is the raw transparency entry JSON from the
// attestation's verification material, payload is the in-toto statement it
// must bind to, and cert is the leaf certificate the envelope was signed
// with. On success the log integration time is returned.
type TransparencyLog interface {
	VerifyEntry(ctx context.Context, entry json.RawMessage, payload []byte, cert *x509.Certificate) (time.Time, error)
}

// transparencyEntry is the protobuf-JSON shape of a log entry as embedded in
// PEP 740 verification material. Int64 fields arrive as JSON strings under
// protojson rules, but plain numbers are tolerated too.
type transparencyEntry struct {
	LogIndex       flexInt64 `json:"logIndex"`
	LogID          logID     `json:"logId"`
	IntegratedTime flexInt64 `json:"integratedTime"`

	InclusionPromise struct {
		SignedEntryTimestamp []byte `json:"signedEntryTimestamp"`
	} `json:"inclusionPromise"`

	InclusionProof struct {
		LogIndex   flexInt64 `json:"logIndex"`
		RootHash   []byte    `json:"rootHash"`
		TreeSize   flexInt64 `json:"treeSize"`
		Hashes     [][]byte  `json:"hashes"`
		Checkpoint struct {
			Envelope string `json:"envelope"`
		} `json:"checkpoint"`
	} `json:"inclusionProof"`

	CanonicalizedBody []byte `json:"canonicalizedBody"`
}

type logID struct {
	KeyID []byte `json:"keyId"`
}

type flexInt64 int64

func (f *flexInt64) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*f = flexInt64(n)
	case float64:
		*f = flexInt64(int64(v))
	}
	return nil
}
