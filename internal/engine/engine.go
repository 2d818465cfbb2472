// Package engine implements the memory record lifecycle: ingestion with
// weight assignment, similarity-scored recall, and the consolidation
// pipeline (decay, prune, merge, promote, synthesize).
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/notify"
	"github.com/lazypower/mnemo/internal/store"
)

const notifyTimeout = 5 * time.Second

// Engine owns the live record set. All mutating operations serialize on a
// single writer lock; recall reads the last committed snapshot and is never
// blocked by an in-flight writer.
type Engine struct {
	db       *store.DB
	cfg      config.EngineConfig
	notifier notify.Notifier

	mu        sync.Mutex // guards every decide-then-commit sequence
	lastStamp int64      // monotonic timestamp watermark
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// New creates an Engine over the given store. A nil notifier disables
// record-created notifications.
func New(db *store.DB, cfg config.EngineConfig, notifier notify.Notifier) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Engine{
		db:       db,
		cfg:      cfg,
		notifier: notifier,
		stopCh:   make(chan struct{}),
	}
}

// IngestRequest carries the caller-supplied fields for a new record.
type IngestRequest struct {
	Content        string
	Emotion        string
	Type           string
	ExplicitWeight *float64 // overrides the computed weight, clamped to [0,1]
	Context        string
	Tags           []string
	SourceAgent    string
}

// Ingest validates the request, assigns id/timestamp/weight, stores the
// record, refreshes metrics, and emits a fire-and-forget notification.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*store.Memory, error) {
	if req.Content == "" {
		return nil, &ValidationError{Field: "content", Reason: "must not be empty"}
	}
	if len(req.Content) > e.cfg.MaxContentChars {
		return nil, &ValidationError{
			Field:  "content",
			Reason: fmt.Sprintf("%d chars exceeds maximum %d", len(req.Content), e.cfg.MaxContentChars),
		}
	}
	if !store.ValidEmotions[req.Emotion] {
		return nil, &ValidationError{Field: "emotion", Reason: fmt.Sprintf("unknown emotion %q", req.Emotion)}
	}
	if !store.ValidTypes[req.Type] {
		return nil, &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown type %q", req.Type)}
	}

	weight := e.initialWeight(req.Type, req.Emotion, req.Content)
	if req.ExplicitWeight != nil {
		weight = clamp01(*req.ExplicitWeight)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	m := &store.Memory{
		ID:          uuid.NewString(),
		Content:     req.Content,
		Emotion:     req.Emotion,
		Type:        req.Type,
		Weight:      weight,
		Timestamp:   e.nextTimestamp(),
		Context:     req.Context,
		Tags:        req.Tags,
		SourceAgent: req.SourceAgent,
	}

	if err := e.db.InsertMemory(m); err != nil {
		return nil, storageErr("insert", err)
	}
	if err := e.refreshMetrics(nil); err != nil {
		// Metrics converge on the next consolidation pass; the record is in.
		log.Printf("ingest: refresh metrics: %v", err)
	}

	e.publish(*m)
	return m, nil
}

// nextTimestamp returns the current unix-milli time, bumped if needed so
// timestamps are strictly monotonic. Caller must hold e.mu.
func (e *Engine) nextTimestamp() int64 {
	now := time.Now().UnixMilli()
	if now <= e.lastStamp {
		now = e.lastStamp + 1
	}
	e.lastStamp = now
	return now
}

// publish sends the record-created event without blocking ingestion.
// Sink failures are logged and swallowed.
func (e *Engine) publish(m store.Memory) {
	ev := notify.Event{ID: m.ID, Content: m.Content, Emotion: m.Emotion, Type: m.Type}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx, ev); err != nil {
			log.Printf("notify: record %s: %v", ev.ID, err)
		}
	}()
}

// refreshMetrics recomputes totalMemories and density from the live set.
// lastConsolidation is updated when non-nil; the dissonance score is kept
// as-is (it has its own explicit pass). Caller must hold e.mu.
func (e *Engine) refreshMetrics(consolidatedAt *int64) error {
	metrics, err := e.db.GetMetrics()
	if err != nil {
		return err
	}

	total, err := e.db.CountMemories()
	if err != nil {
		return err
	}
	high, err := e.db.CountHighWeight(e.cfg.HighWeightThreshold)
	if err != nil {
		return err
	}

	metrics.TotalMemories = total
	metrics.Density = 0
	if total > 0 {
		metrics.Density = float64(high) / float64(total)
	}
	if consolidatedAt != nil {
		metrics.LastConsolidation = *consolidatedAt
	}

	return e.db.SaveMetrics(metrics)
}

// Metrics returns the current metrics snapshot.
func (e *Engine) Metrics() (store.Metrics, error) {
	m, err := e.db.GetMetrics()
	if err != nil {
		return store.Metrics{}, storageErr("metrics", err)
	}
	return m, nil
}

// Backup captures a consistent snapshot of live set, archive, and metrics.
func (e *Engine) Backup() (*store.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, err := e.db.Snapshot()
	if err != nil {
		return nil, storageErr("backup", err)
	}
	return snap, nil
}

// Restore overwrites the full state with the snapshot. Idempotent given
// the same snapshot.
func (e *Engine) Restore(snap *store.Snapshot) error {
	if snap == nil {
		return &ValidationError{Field: "snapshot", Reason: "must not be nil"}
	}
	for i := range snap.Memories {
		snap.Memories[i].Weight = clamp01(snap.Memories[i].Weight)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.db.Restore(snap); err != nil {
		return storageErr("restore", err)
	}
	return nil
}

// StartScheduler runs passive consolidation at the given interval until
// Stop is called.
func (e *Engine) StartScheduler(interval time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				res, err := e.Consolidate(context.Background(), ConsolidateOptions{})
				if err != nil {
					log.Printf("scheduled consolidation: %v", err)
					continue
				}
				if res.Merges > 0 || res.Pruned > 0 {
					log.Printf("consolidation: %d merges, %d pruned, %d remain",
						res.Merges, res.Pruned, res.FinalCount)
				}
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down background work and waits for in-flight notifications.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
}
