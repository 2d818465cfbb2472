package engine

import (
	"context"
	"testing"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		MaxContentChars:     10000,
		DecayRatePerDay:     0.1,
		PruneThreshold:      0.5,
		SimilarityThreshold: 0.75,
		NoiseThreshold:      0.1,
		ReflectionBonus:     0.25,
		HighWeightThreshold: 0.7,
		MaxMerges:           100,
	}
}

func testEngine(t *testing.T) (*Engine, *store.DB) {
	t.Helper()
	db := testDB(t)
	eng := New(db, testConfig(), nil)
	t.Cleanup(eng.Stop)
	return eng, db
}

func TestIngest(t *testing.T) {
	eng, db := testEngine(t)

	m, err := eng.Ingest(context.Background(), IngestRequest{
		Content: "shipped the first release",
		Emotion: store.EmotionJoy,
		Type:    store.TypeMilestone,
		Tags:    []string{"release"},
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if m.ID == "" {
		t.Error("expected generated id")
	}
	if m.Timestamp == 0 {
		t.Error("expected assigned timestamp")
	}
	if m.Weight != 1.0 {
		t.Errorf("milestone weight: expected 1.0, got %v", m.Weight)
	}

	stored, err := db.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if stored == nil {
		t.Fatal("record not persisted")
	}
	if stored.Content != m.Content {
		t.Errorf("content mismatch: %q vs %q", stored.Content, m.Content)
	}
	if len(stored.Tags) != 1 || stored.Tags[0] != "release" {
		t.Errorf("tags mismatch: %v", stored.Tags)
	}
}

func TestIngestValidation(t *testing.T) {
	eng, _ := testEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  IngestRequest
	}{
		{"empty content", IngestRequest{Content: "", Emotion: store.EmotionNeutral, Type: store.TypeConversation}},
		{"unknown emotion", IngestRequest{Content: "x", Emotion: "ECSTATIC", Type: store.TypeConversation}},
		{"unknown type", IngestRequest{Content: "x", Emotion: store.EmotionNeutral, Type: "dream"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := eng.Ingest(ctx, c.req)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestIngestContentTooLong(t *testing.T) {
	eng, _ := testEngine(t)

	long := make([]byte, 10001)
	for i := range long {
		long[i] = 'a'
	}
	_, err := eng.Ingest(context.Background(), IngestRequest{
		Content: string(long),
		Emotion: store.EmotionNeutral,
		Type:    store.TypeConversation,
	})
	if err == nil {
		t.Fatal("expected validation error for oversized content")
	}
}

func TestIngestExplicitWeightClamped(t *testing.T) {
	eng, _ := testEngine(t)

	over := 3.5
	m, err := eng.Ingest(context.Background(), IngestRequest{
		Content:        "manual weight",
		Emotion:        store.EmotionNeutral,
		Type:           store.TypeConversation,
		ExplicitWeight: &over,
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if m.Weight != 1.0 {
		t.Errorf("expected clamp to 1.0, got %v", m.Weight)
	}
}

func TestIngestTimestampsMonotonic(t *testing.T) {
	eng, _ := testEngine(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		m, err := eng.Ingest(ctx, IngestRequest{
			Content: "tick",
			Emotion: store.EmotionNeutral,
			Type:    store.TypeConversation,
		})
		if err != nil {
			t.Fatalf("Ingest: %v", err)
		}
		if m.Timestamp <= last {
			t.Fatalf("timestamp %d not after %d", m.Timestamp, last)
		}
		last = m.Timestamp
	}
}

func TestIngestUpdatesMetrics(t *testing.T) {
	eng, _ := testEngine(t)
	ctx := context.Background()

	// One high-weight milestone, one neutral conversation.
	for _, req := range []IngestRequest{
		{Content: "launch day", Emotion: store.EmotionJoy, Type: store.TypeMilestone},
		{Content: "small talk about weather", Emotion: store.EmotionNeutral, Type: store.TypeConversation},
	} {
		if _, err := eng.Ingest(ctx, req); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	m, err := eng.Metrics()
	if err != nil {
		t.Fatalf("Metrics: %v", err)
	}
	if m.TotalMemories != 2 {
		t.Errorf("totalMemories: expected 2, got %d", m.TotalMemories)
	}
	// 1 of 2 records at or above the 0.7 high-weight threshold.
	if m.Density != 0.5 {
		t.Errorf("density: expected 0.5, got %v", m.Density)
	}
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	eng, db := testEngine(t)
	ctx := context.Background()

	if _, err := eng.Ingest(ctx, IngestRequest{
		Content: "before backup",
		Emotion: store.EmotionCuriosity,
		Type:    store.TypeConversation,
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	snap, err := eng.Backup()
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if len(snap.Memories) != 1 {
		t.Fatalf("snapshot memories: expected 1, got %d", len(snap.Memories))
	}
	if snap.CreatedAt == 0 {
		t.Error("expected snapshot createdAt")
	}

	// Mutate, then restore.
	if _, err := eng.Ingest(ctx, IngestRequest{
		Content: "after backup",
		Emotion: store.EmotionNeutral,
		Type:    store.TypeConversation,
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := eng.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	count, err := db.CountMemories()
	if err != nil {
		t.Fatalf("CountMemories: %v", err)
	}
	if count != 1 {
		t.Errorf("after restore: expected 1 record, got %d", count)
	}

	// Restoring the same snapshot again changes nothing.
	if err := eng.Restore(snap); err != nil {
		t.Fatalf("second Restore: %v", err)
	}
	count, _ = db.CountMemories()
	if count != 1 {
		t.Errorf("restore not idempotent: got %d records", count)
	}
}

func TestRestoreNilSnapshot(t *testing.T) {
	eng, _ := testEngine(t)
	if err := eng.Restore(nil); err == nil {
		t.Fatal("expected error for nil snapshot")
	}
}

func TestRestoreClampsWeights(t *testing.T) {
	eng, db := testEngine(t)

	snap := &store.Snapshot{
		Memories: []store.Memory{{
			ID:        "m1",
			Content:   "weight out of range",
			Emotion:   store.EmotionNeutral,
			Type:      store.TypeConversation,
			Weight:    4.2,
			Timestamp: 1,
		}},
	}
	if err := eng.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	m, err := db.GetMemory("m1")
	if err != nil {
		t.Fatalf("GetMemory: %v", err)
	}
	if m.Weight != 1.0 {
		t.Errorf("expected weight clamped to 1.0, got %v", m.Weight)
	}
}
