package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.EngineConfig{
		MaxContentChars:     10000,
		DecayRatePerDay:     0.1,
		PruneThreshold:      0.5,
		SimilarityThreshold: 0.75,
		NoiseThreshold:      0.1,
		ReflectionBonus:     0.25,
		HighWeightThreshold: 0.7,
		MaxMerges:           100,
	}
	eng := engine.New(db, cfg, nil)
	t.Cleanup(eng.Stop)

	return New(db, eng, "test")
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d", w.Code)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("health status: %v", resp["status"])
	}
	if resp["db"] != true {
		t.Errorf("health db: %v", resp["db"])
	}
}

func TestStoreAndRecall(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
		"content": "migrated the billing database to the new cluster",
		"emotion": "JOY",
		"type":    "milestone",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("store status: %d, body %s", w.Code, w.Body.String())
	}

	var created store.Memory
	decode(t, w, &created)
	if created.ID == "" {
		t.Fatal("expected id in response")
	}
	if created.Weight != 1.0 {
		t.Errorf("milestone weight: expected 1.0, got %v", created.Weight)
	}

	w = doJSON(t, srv, http.MethodGet, "/memory/recall?query=billing+database+migration", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("recall status: %d", w.Code)
	}

	var page engine.RecallPage
	decode(t, w, &page)
	if page.Count != 1 {
		t.Fatalf("recall count: expected 1, got %d", page.Count)
	}
	if page.Results[0].Memory.ID != created.ID {
		t.Errorf("wrong record recalled")
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	srv := testServer(t)

	cases := []map[string]any{
		{"content": "", "emotion": "JOY", "type": "milestone"},
		{"content": "x", "emotion": "ECSTATIC", "type": "milestone"},
		{"content": "x", "emotion": "JOY", "type": "dream"},
	}
	for _, body := range cases {
		w := doJSON(t, srv, http.MethodPost, "/memory/store", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for %v, got %d", body, w.Code)
		}
	}
}

func TestRecallRequiresQueryParam(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/memory/recall", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing query param: expected 400, got %d", w.Code)
	}

	// Present-but-empty is valid.
	w = doJSON(t, srv, http.MethodGet, "/memory/recall?query=", nil)
	if w.Code != http.StatusOK {
		t.Errorf("empty query value: expected 200, got %d", w.Code)
	}
}

func TestRecallRejectsBadFilter(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/memory/recall?query=x&emotion=ECSTATIC", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad emotion filter: expected 400, got %d", w.Code)
	}
}

func TestAll(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/memory/all", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("all status: %d", w.Code)
	}
	var resp struct {
		Memories []store.Memory `json:"memories"`
		Count    int            `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 0 || resp.Memories == nil {
		t.Errorf("empty store: expected [] and 0, got %+v", resp)
	}

	doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
		"content": "one record", "emotion": "NEUTRAL", "type": "conversation",
	})

	w = doJSON(t, srv, http.MethodGet, "/memory/all", nil)
	decode(t, w, &resp)
	if resp.Count != 1 {
		t.Errorf("count: expected 1, got %d", resp.Count)
	}
}

func TestConsolidateEndpoint(t *testing.T) {
	srv := testServer(t)

	for _, content := range []string{
		"nightly backup completed without errors",
		"nightly backup completed without any errors",
	} {
		w := doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
			"content": content, "emotion": "NEUTRAL", "type": "conversation",
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("store status: %d", w.Code)
		}
	}

	w := doJSON(t, srv, http.MethodPost, "/memory/consolidate", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("consolidate status: %d, body %s", w.Code, w.Body.String())
	}

	var res engine.ConsolidateResult
	decode(t, w, &res)
	if res.Merges != 1 {
		t.Errorf("merges: expected 1, got %d", res.Merges)
	}
	if res.FinalCount != 1 {
		t.Errorf("finalCount: expected 1, got %d", res.FinalCount)
	}
}

func TestMergeEndpointValidation(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/memory/merge", map[string]any{
		"idA": "missing-a", "idB": "missing-b",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("merge of missing records: expected 400, got %d", w.Code)
	}
}

func TestArchiveEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodPost, "/memory/archive", map[string]any{
		"maxAgeDays": 30,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("archive status: %d, body %s", w.Code, w.Body.String())
	}

	var resp map[string]int
	decode(t, w, &resp)
	if resp["archived"] != 0 {
		t.Errorf("archived: expected 0 on empty store, got %d", resp["archived"])
	}

	w = doJSON(t, srv, http.MethodPost, "/memory/archive", map[string]any{
		"maxAgeDays": -5,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("negative age: expected 400, got %d", w.Code)
	}
}

func TestDissonanceEndpoint(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, http.MethodGet, "/memory/dissonance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dissonance status: %d", w.Code)
	}
	var resp map[string]int
	decode(t, w, &resp)
	if resp["dissonanceScore"] != 0 {
		t.Errorf("dissonance on empty store: %d", resp["dissonanceScore"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t)

	doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
		"content": "counted record", "emotion": "NEUTRAL", "type": "conversation",
	})

	w := doJSON(t, srv, http.MethodGet, "/memory/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", w.Code)
	}

	var m store.Metrics
	decode(t, w, &m)
	if m.TotalMemories != 1 {
		t.Errorf("totalMemories: expected 1, got %d", m.TotalMemories)
	}
}

func TestBackupRestoreEndpoints(t *testing.T) {
	srv := testServer(t)

	doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
		"content": "survives the round trip", "emotion": "NEUTRAL", "type": "conversation",
	})

	w := doJSON(t, srv, http.MethodGet, "/memory/backup", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backup status: %d", w.Code)
	}
	var snap store.Snapshot
	decode(t, w, &snap)
	if len(snap.Memories) != 1 {
		t.Fatalf("snapshot memories: expected 1, got %d", len(snap.Memories))
	}

	// Add a second record, then restore back to one.
	doJSON(t, srv, http.MethodPost, "/memory/store", map[string]any{
		"content": "does not survive", "emotion": "NEUTRAL", "type": "conversation",
	})

	w = doJSON(t, srv, http.MethodPost, "/memory/restore", snap)
	if w.Code != http.StatusOK {
		t.Fatalf("restore status: %d, body %s", w.Code, w.Body.String())
	}

	var resp struct {
		Memories []store.Memory `json:"memories"`
		Count    int            `json:"count"`
	}
	w = doJSON(t, srv, http.MethodGet, "/memory/all", nil)
	decode(t, w, &resp)
	if resp.Count != 1 {
		t.Errorf("after restore: expected 1 record, got %d", resp.Count)
	}
}
