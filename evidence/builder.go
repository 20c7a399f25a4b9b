// Package evidence implements the Evidence Builder: it turns a rule's
// raw anomaly into an immutable, content-addressed artifact with a
// stable input_snapshot_hash and a canonical JSON document persisted
// to a blob store, per spec.md §4.B.
package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

// Builder is the Evidence Builder. It holds no mutable state beyond
// its BlobStore dependency; apart from the metadata timestamp, which
// is read from the wall clock, Build's output depends only on its
// arguments.
type Builder struct {
	store BlobStore
}

func NewBuilder(store BlobStore) *Builder {
	return &Builder{store: store}
}

// Build implements build(anomaly, seller_id, sync_id, input_snapshot,
// thresholds, whitelist) -> EvidenceArtifact from spec.md §4.B.
func (b *Builder) Build(
	ctx context.Context,
	anomaly model.Anomaly,
	rulePriority model.Priority,
	sellerID, syncID string,
	inputSnapshot any,
	thresholds []model.Threshold,
	whitelist []model.WhitelistItem,
) (model.EvidenceArtifact, error) {
	normalized, err := normalizeInputData(inputSnapshot)
	if err != nil {
		return model.EvidenceArtifact{}, model.NewDomainError(model.ErrStorage, "normalize input snapshot", err)
	}
	hashInput, err := canonicalMarshal(normalized)
	if err != nil {
		return model.EvidenceArtifact{}, model.NewDomainError(model.ErrStorage, "marshal normalized input", err)
	}
	inputSnapshotHash := sha256Truncated(hashInput)

	metadata := model.EvidenceMetadata{
		RuleType:          anomaly.RuleType,
		SellerID:          sellerID,
		SyncID:            syncID,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		InputSnapshotHash: inputSnapshotHash,
		Computations: model.Computations{
			Severity:     anomaly.Severity,
			Score:        anomaly.Score,
			RulePriority: rulePriority,
		},
		ThresholdApplied: firstMatchingThreshold(anomaly.RuleType, sellerID, thresholds),
		WhitelistApplied: firstActiveWhitelistEntry(sellerID, whitelist),
	}

	doc := model.EvidenceDocument{
		Metadata:  metadata,
		Anomaly:   anomaly,
		InputData: normalized,
	}

	// Pretty-printed for storage/debuggability; the hash above was
	// already computed over the stable, compact normalized form, per
	// spec.md §4.B's "hashes MUST be computed pre-upload over a stable
	// serialization distinct from storage formatting".
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return model.EvidenceArtifact{}, model.NewDomainError(model.ErrStorage, "marshal evidence document", err)
	}

	key := fmt.Sprintf("evidence/%s/%s/%s/%s.json", sellerID, syncID, anomaly.RuleType, anomaly.DedupeHash)
	sideMetadata := map[string]string{
		"seller-id":   sellerID,
		"sync-id":     syncID,
		"rule-type":   string(anomaly.RuleType),
		"dedupe-hash": anomaly.DedupeHash,
	}

	// A blob upload failure is a TransientExternalError per spec.md §7
	// ("blob upload network failure ... retried by the queue's attempt
	// policy"); the builder itself never retries.
	blobURL, err := b.store.Put(ctx, key, pretty, sideMetadata)
	if err != nil {
		return model.EvidenceArtifact{}, model.NewDomainError(model.ErrTransientExternal, "upload evidence blob", err)
	}

	return model.EvidenceArtifact{
		EvidenceJSON: string(pretty),
		BlobURL:      blobURL,
		DedupeHash:   anomaly.DedupeHash,
	}, nil
}

func sha256Truncated(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// firstMatchingThreshold returns the first threshold filtered by
// rule_type and (seller_id match OR null seller_id), per spec.md §4.B.
func firstMatchingThreshold(ruleType model.RuleType, sellerID string, thresholds []model.Threshold) *model.Threshold {
	for _, t := range thresholds {
		if t.RuleType == ruleType && t.AppliesToSeller(sellerID) {
			match := t
			return &match
		}
	}
	return nil
}

// firstActiveWhitelistEntry returns the first active whitelist entry
// for this seller, per spec.md §4.B.
func firstActiveWhitelistEntry(sellerID string, whitelist []model.WhitelistItem) *model.WhitelistItem {
	for _, w := range whitelist {
		if w.Active && w.SellerID == sellerID {
			match := w
			return &match
		}
	}
	return nil
}
