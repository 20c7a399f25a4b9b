package evidence

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stanleyndaba/clario-detection-engine/model"
)

func sampleAnomaly() model.Anomaly {
	return model.Anomaly{
		SellerID:   "seller-1",
		SyncID:     "sync-1",
		DedupeHash: "abc123def4567890",
		RuleType:   model.RuleLostUnits,
		Severity:   model.SeverityMedium,
		Score:      0.7,
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	store := NewMemoryBlobStore()
	b := NewBuilder(store)

	snapshot := map[string]any{"sku": "SKU1", "units": 10, "nested": map[string]any{"b": 1, "a": 2}}

	a1, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", snapshot, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", snapshot, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc1, doc2 map[string]any
	if err := json.Unmarshal([]byte(a1.EvidenceJSON), &doc1); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(a2.EvidenceJSON), &doc2); err != nil {
		t.Fatal(err)
	}
	h1 := doc1["metadata"].(map[string]any)["input_snapshot_hash"]
	h2 := doc2["metadata"].(map[string]any)["input_snapshot_hash"]
	if h1 != h2 {
		t.Errorf("expected stable input_snapshot_hash across identical builds, got %v vs %v", h1, h2)
	}
}

func TestBuildRedactsSecrets(t *testing.T) {
	store := NewMemoryBlobStore()
	b := NewBuilder(store)

	snapshot := map[string]any{
		"api_password": "hunter2",
		"client_secret": "s3cr3t",
		"sku":          "SKU1",
	}

	artifact, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", snapshot, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(artifact.EvidenceJSON, "hunter2") || strings.Contains(artifact.EvidenceJSON, "s3cr3t") {
		t.Error("expected password/secret values to be redacted from persisted evidence")
	}
	if !strings.Contains(artifact.EvidenceJSON, "[REDACTED]") {
		t.Error("expected [REDACTED] marker in persisted evidence")
	}
}

func TestBuildUploadsToPathAddressedKey(t *testing.T) {
	store := NewMemoryBlobStore()
	b := NewBuilder(store)

	artifact, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", map[string]any{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantKey := "evidence/seller-1/sync-1/LOST_UNITS/abc123def4567890.json"
	if _, ok := store.Get(wantKey); !ok {
		t.Errorf("expected object stored at %s", wantKey)
	}
	if artifact.BlobURL == "" {
		t.Error("expected non-empty blob URL")
	}
}

func TestBuildSelectsFirstMatchingThresholdAndWhitelist(t *testing.T) {
	store := NewMemoryBlobStore()
	b := NewBuilder(store)

	thresholds := []model.Threshold{
		{RuleType: model.RuleDamagedStock, Operator: model.OpGT, Value: 1, Active: true},
		{RuleType: model.RuleLostUnits, Operator: model.OpLT, Value: 0.05, Active: true},
	}
	whitelist := []model.WhitelistItem{
		{SellerID: "other-seller", Scope: model.ScopeSKU, Value: "X", Active: true},
		{SellerID: "seller-1", Scope: model.ScopeSKU, Value: "SKU1", Active: true},
	}

	artifact, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", map[string]any{}, thresholds, whitelist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(artifact.EvidenceJSON), &doc); err != nil {
		t.Fatal(err)
	}
	metadata := doc["metadata"].(map[string]any)
	if metadata["threshold_applied"] == nil {
		t.Fatal("expected threshold_applied to be set")
	}
	thresholdApplied := metadata["threshold_applied"].(map[string]any)
	if thresholdApplied["RuleType"] != string(model.RuleLostUnits) {
		t.Errorf("expected threshold_applied to match anomaly's rule_type, got %v", thresholdApplied["RuleType"])
	}
	if metadata["whitelist_applied"] == nil {
		t.Fatal("expected whitelist_applied to be set")
	}
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, []byte, map[string]string) (string, error) {
	return "", errors.New("connection refused")
}

func TestBuildWrapsUploadFailureAsTransientExternal(t *testing.T) {
	b := NewBuilder(failingStore{})

	_, err := b.Build(context.Background(), sampleAnomaly(), model.PriorityHigh, "seller-1", "sync-1", map[string]any{}, nil, nil)
	if err == nil {
		t.Fatal("expected an error")
	}
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected a *model.DomainError, got %T", err)
	}
	if domainErr.Kind != model.ErrTransientExternal {
		t.Errorf("expected ErrTransientExternal, got %s", domainErr.Kind)
	}
}
