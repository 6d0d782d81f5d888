package attest

import (
	"sort"

	"github.com/pylock/attest/attestation"
	"github.com/pylock/attest/pylock"
)

// Merge writes verified identities back into the document. Only
// OutcomeVerified resolutions touch the document: an artifact without
// attestations keeps no identity entry, and a failed artifact keeps whatever
// identity it already had. Returns the number of entries that changed.
func Merge(resolutions []Resolution) int {
	changed := 0
	for _, res := range resolutions {
		if res.Outcome != OutcomeVerified || res.artifact == nil || res.Identity == nil {
			continue
		}
		next := identityTable(res.Identity)
		if tablesEqual(res.artifact.Identity(), next) {
			continue
		}
		res.artifact.SetIdentity(next)
		changed++
	}
	return changed
}

// identityTable renders an identity as a lock file sub-table: issuer and
// subject first, build metadata after in sorted key order so output is
// deterministic.
func identityTable(identity *attestation.Identity) *pylock.Table {
	tbl := pylock.NewTable()
	tbl.Set("issuer", identity.Issuer)
	tbl.Set("subject", identity.Subject)
	keys := make([]string, 0, len(identity.BuildMetadata))
	for key := range identity.BuildMetadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		tbl.Set(key, identity.BuildMetadata[key])
	}
	return tbl
}

func tablesEqual(a, b *pylock.Table) bool {
	if a == nil || b == nil {
		return a == b
	}
	aKeys, bKeys := a.Keys(), b.Keys()
	if len(aKeys) != len(bKeys) {
		return false
	}
	for i, key := range aKeys {
		if key != bKeys[i] {
			return false
		}
		av, _ := a.Get(key)
		bv, _ := b.Get(key)
		as, aok := av.(string)
		bs, bok := bv.(string)
		if !aok || !bok || as != bs {
			return false
		}
	}
	return true
}
