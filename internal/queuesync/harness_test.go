package queuesync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jmagar/nugs-dl/internal/apiclient"
	"github.com/jmagar/nugs-dl/pkg/api"
)

// fakeQueueServer mimics the nugs-dl server's snapshot, deletion, and
// status-stream endpoints.
type fakeQueueServer struct {
	t *testing.T

	mu   sync.Mutex
	jobs []api.DownloadJob
	subs map[chan string]bool

	failSnapshot  atomic.Bool
	snapshotGate  chan struct{} // when set, the next snapshot blocks on it
	streamConns   atomic.Int64
	snapshotCalls atomic.Int64

	srv *httptest.Server
}

func newFakeQueueServer(t *testing.T) *fakeQueueServer {
	t.Helper()
	f := &fakeQueueServer{t: t, subs: make(map[chan string]bool)}

	r := chi.NewRouter()
	r.Get("/api/downloads", f.handleSnapshot)
	r.Delete("/api/downloads/{jobID}", f.handleDelete)
	r.Get("/api/status-stream", f.handleStream)

	f.srv = httptest.NewServer(r)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeQueueServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	f.snapshotCalls.Add(1)
	if f.failSnapshot.Load() {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "queue unavailable"})
		return
	}
	f.mu.Lock()
	gate := f.snapshotGate
	jobs := append([]api.DownloadJob(nil), f.jobs...)
	f.mu.Unlock()
	if gate != nil {
		// Serve the view captured before the gate once released; this is
		// the stale in-flight response the epoch guard must ignore.
		<-gate
	}
	_ = json.NewEncoder(w).Encode(jobs)
}

func (f *fakeQueueServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, job := range f.jobs {
		if job.ID == jobID {
			f.jobs = append(f.jobs[:i], f.jobs[i+1:]...)
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "job not found"})
}

func (f *fakeQueueServer) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		f.t.Fatal("response writer does not support flushing")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := make(chan string, 16)
	f.mu.Lock()
	f.subs[ch] = true
	f.mu.Unlock()
	f.streamConns.Add(1)
	defer func() {
		f.mu.Lock()
		delete(f.subs, ch)
		f.mu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case payload, open := <-ch:
			if !open {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// broadcastRaw sends an already-encoded payload to every open stream.
func (f *fakeQueueServer) broadcastRaw(payload string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		ch <- payload
	}
}

func (f *fakeQueueServer) broadcast(eventType api.StreamEventType, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		f.t.Fatalf("marshal event data: %v", err)
	}
	envelope, err := json.Marshal(api.StreamEvent{Type: eventType, Data: raw})
	if err != nil {
		f.t.Fatalf("marshal event envelope: %v", err)
	}
	f.broadcastRaw(string(envelope))
}

// dropConnections severs every open stream, as a proxy restart would.
func (f *fakeQueueServer) dropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		close(ch)
	}
	f.subs = make(map[chan string]bool)
}

func (f *fakeQueueServer) setJobs(jobs ...api.DownloadJob) {
	f.mu.Lock()
	f.jobs = jobs
	f.mu.Unlock()
}

func newTestEngine(t *testing.T, f *fakeQueueServer, now time.Time) *Engine {
	t.Helper()
	client, err := apiclient.New(apiclient.Options{BaseURL: f.srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	eng, err := New(Options{
		Client:         client,
		ReconnectDelay: 20 * time.Millisecond,
		Clock:          func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(eng.Deactivate)
	return eng
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func queuedJob(id string, createdAt time.Time) api.DownloadJob {
	return api.DownloadJob{
		ID:          id,
		OriginalUrl: "https://play.nugs.net/release/" + id,
		Status:      api.StatusQueued,
		CreatedAt:   createdAt,
	}
}

func TestEngine_SnapshotThenStream(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now.Add(-time.Minute)))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	store := eng.Store()
	if store.Len() != 1 {
		t.Fatalf("snapshot not loaded: %d jobs", store.Len())
	}
	waitFor(t, "stream to open", func() bool { return eng.ConnState() == StateOpen })

	// A full record creates a new entry.
	f.broadcast(api.StreamJobAdded, queuedJob("b", now))
	waitFor(t, "jobAdded to land", func() bool { return store.Len() == 2 })

	// Track-based progress, then completion.
	f.broadcast(api.StreamProgressUpdate, api.ProgressUpdate{
		JobID:        "a",
		Status:       api.StatusProcessing,
		CurrentTrack: 2,
		TotalTracks:  4,
	})
	waitFor(t, "progress update to land", func() bool {
		job, ok := store.Get("a")
		return ok && job.Status == api.StatusProcessing
	})
	job, _ := store.Get("a")
	if job.Progress != 25 {
		t.Fatalf("expected progress 25, got %v", job.Progress)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(now) {
		t.Fatalf("startedAt not stamped with injected clock: %v", job.StartedAt)
	}

	f.broadcast(api.StreamProgressUpdate, api.ProgressUpdate{
		JobID:  "a",
		Status: api.StatusComplete,
	})
	waitFor(t, "completion to land", func() bool {
		job, ok := store.Get("a")
		return ok && job.Status == api.StatusComplete
	})
	job, _ = store.Get("a")
	if job.Progress != 100 {
		t.Fatalf("progress not forced to 100: %v", job.Progress)
	}
	if job.CompletedAt == nil {
		t.Fatal("completedAt not stamped")
	}
}

func TestEngine_SnapshotFailureDoesNotStartStream(t *testing.T) {
	f := newFakeQueueServer(t)
	f.failSnapshot.Store(true)

	eng := newTestEngine(t, f, time.Now())
	if err := eng.Activate(context.Background()); err == nil {
		t.Fatal("expected activation error")
	}
	if eng.Store().Len() != 0 {
		t.Fatalf("store not empty after failed snapshot: %d", eng.Store().Len())
	}

	time.Sleep(100 * time.Millisecond)
	if n := f.streamConns.Load(); n != 0 {
		t.Fatalf("stream started despite snapshot failure: %d connections", n)
	}
}

func TestEngine_ReconnectsAfterDrop(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, "first connection", func() bool { return f.streamConns.Load() == 1 })

	f.dropConnections()

	// The store keeps its last-known view during the gap.
	if eng.Store().Len() != 1 {
		t.Fatalf("store changed during disconnect: %d", eng.Store().Len())
	}

	waitFor(t, "automatic reconnect", func() bool { return f.streamConns.Load() >= 2 })
	waitFor(t, "stream reopen", func() bool { return eng.ConnState() == StateOpen })

	// Events on the new connection still apply.
	f.broadcast(api.StreamJobAdded, queuedJob("b", now))
	waitFor(t, "post-reconnect event", func() bool { return eng.Store().Len() == 2 })
}

func TestEngine_WakeShortCircuitsReconnectDelay(t *testing.T) {
	f := newFakeQueueServer(t)

	client, err := apiclient.New(apiclient.Options{BaseURL: f.srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	eng, err := New(Options{
		Client:         client,
		ReconnectDelay: time.Hour, // only Wake can reconnect within the test window
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(eng.Deactivate)

	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, "first connection", func() bool { return f.streamConns.Load() == 1 })

	f.dropConnections()
	waitFor(t, "disconnect observed", func() bool { return eng.ConnState() == StateDisconnected })

	eng.Wake()
	waitFor(t, "immediate reconnect on wake", func() bool { return f.streamConns.Load() >= 2 })
}

func TestEngine_DeactivateStopsReconnects(t *testing.T) {
	f := newFakeQueueServer(t)
	eng := newTestEngine(t, f, time.Now())

	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, "connection", func() bool { return f.streamConns.Load() >= 1 })

	eng.Deactivate()
	if eng.ConnState() != StateDisconnected {
		t.Fatalf("state after deactivate: %v", eng.ConnState())
	}

	seen := f.streamConns.Load()
	time.Sleep(100 * time.Millisecond) // several reconnect delays
	if f.streamConns.Load() != seen {
		t.Fatal("reconnect attempts continued after deactivate")
	}
}

func TestEngine_MalformedAndUnknownEventsAreSkipped(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, "stream open", func() bool { return eng.ConnState() == StateOpen })

	f.broadcastRaw("this is not json")
	f.broadcastRaw(`{"type":"jobRemoved","data":{"id":"a"}}`)
	f.broadcastRaw(`{"type":"progressUpdate","data":{"jobId":123}}`)

	// The connection survives and later events still apply.
	f.broadcast(api.StreamJobAdded, queuedJob("b", now))
	waitFor(t, "valid event after garbage", func() bool { return eng.Store().Len() == 2 })
	if eng.ConnState() != StateOpen {
		t.Fatalf("stream did not survive malformed events: %v", eng.ConnState())
	}
}

func TestEngine_ProgressForUnknownJobIsDropped(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	waitFor(t, "stream open", func() bool { return eng.ConnState() == StateOpen })

	phantom := uuid.NewString()
	f.broadcast(api.StreamProgressUpdate, api.ProgressUpdate{
		JobID:  phantom,
		Status: api.StatusProcessing,
	})
	// Use a second event as the ordering barrier.
	f.broadcast(api.StreamJobAdded, queuedJob("b", now))
	waitFor(t, "barrier event", func() bool { return eng.Store().Len() == 2 })

	if _, ok := eng.Store().Get(phantom); ok {
		t.Fatal("progress update materialized a job")
	}
}

func TestEngine_RefreshReplacesStore(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	f.setJobs(queuedJob("b", now), queuedJob("c", now))
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if eng.Store().Len() != 2 {
		t.Fatalf("refresh did not replace store: %d", eng.Store().Len())
	}
	if _, ok := eng.Store().Get("a"); ok {
		t.Fatal("stale job survived refresh")
	}
}

func TestEngine_StaleSnapshotResponseIsIgnored(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)

	// First load freezes the old view and blocks until released.
	gate := make(chan struct{})
	f.setJobs(queuedJob("old", now))
	f.mu.Lock()
	f.snapshotGate = gate
	f.mu.Unlock()

	eng := newTestEngine(t, f, now)

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- eng.Refresh(context.Background())
	}()
	waitFor(t, "first refresh in flight", func() bool { return f.snapshotCalls.Load() == 1 })

	// Second load supersedes the first and completes immediately.
	f.mu.Lock()
	f.snapshotGate = nil
	f.jobs = []api.DownloadJob{queuedJob("new", now)}
	f.mu.Unlock()
	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}

	close(gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	if _, ok := eng.Store().Get("new"); !ok {
		t.Fatal("winning snapshot missing from store")
	}
	if _, ok := eng.Store().Get("old"); ok {
		t.Fatal("stale snapshot overwrote the newer one")
	}
}

func TestEngine_RemoveJobConfirmsBeforeStoreRemoval(t *testing.T) {
	now := time.Now()
	f := newFakeQueueServer(t)
	f.setJobs(queuedJob("a", now), queuedJob("b", now))

	eng := newTestEngine(t, f, now)
	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := eng.RemoveJob(context.Background(), "a"); err != nil {
		t.Fatalf("remove job: %v", err)
	}
	if _, ok := eng.Store().Get("a"); ok {
		t.Fatal("job not removed from store after confirmation")
	}

	// A rejected deletion leaves the store untouched.
	if err := eng.RemoveJob(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown job")
	}
	if eng.Store().Len() != 1 {
		t.Fatalf("store changed on failed removal: %d", eng.Store().Len())
	}
}

func TestEngine_ActivateTwiceFails(t *testing.T) {
	f := newFakeQueueServer(t)
	eng := newTestEngine(t, f, time.Now())

	if err := eng.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := eng.Activate(context.Background()); err == nil {
		t.Fatal("expected error on double activation")
	}
}
