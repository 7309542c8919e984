package queuesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmagar/nugs-dl/internal/apiclient"
	"github.com/jmagar/nugs-dl/internal/logger"
)

const DefaultReconnectDelay = 2 * time.Second

// ConnState is the stream connection's lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "disconnected"
	}
}

type Options struct {
	Client *apiclient.Client

	// ReconnectDelay is the fixed wait between stream reconnect attempts.
	// Zero means DefaultReconnectDelay.
	ReconnectDelay time.Duration

	Logger *slog.Logger

	// Clock supplies the timestamps stamped onto merged records. Tests
	// inject a fixed clock; zero means time.Now.
	Clock func() time.Time
}

// Engine keeps a Store consistent with the server's job queue: one snapshot
// fetch on activation, then incremental merge of stream events, reconnecting
// for as long as it stays active.
type Engine struct {
	client *apiclient.Client
	store  *Store
	log    *slog.Logger
	delay  time.Duration
	clock  func() time.Time

	mu     sync.Mutex
	active bool
	epoch  uint64
	cancel context.CancelFunc
	done   chan struct{}

	wake      chan struct{}
	connState atomic.Int32
}

func New(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("api client is required")
	}
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		client: opts.Client,
		store:  NewStore(),
		log:    log,
		delay:  delay,
		clock:  clock,
		wake:   make(chan struct{}, 1),
	}, nil
}

// Store exposes the job mapping. External consumers treat it as read-only.
func (e *Engine) Store() *Store {
	return e.store
}

// Activate loads the initial snapshot and, only if that succeeds, starts the
// event stream subscriber. On snapshot failure the store is left empty, the
// stream is not started, and the error is returned to the caller.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return fmt.Errorf("engine already active")
	}
	e.epoch++
	epoch := e.epoch
	e.mu.Unlock()

	jobs, err := e.client.ListJobs(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		// A later load superseded this one while it was in flight.
		return nil
	}
	if err != nil {
		e.store.Replace(nil)
		return fmt.Errorf("initial snapshot: %w", err)
	}
	e.store.Replace(jobs)

	runCtx, cancel := context.WithCancel(context.Background())
	e.active = true
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.runStream(runCtx, e.done)
	return nil
}

// Deactivate closes the stream, cancels any pending reconnect, and blocks
// until the subscriber goroutine has exited. Safe to call when inactive.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	if !e.active {
		e.mu.Unlock()
		return
	}
	e.active = false
	e.epoch++ // in-flight snapshot responses become no-ops
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.mu.Unlock()

	cancel()
	<-done
}

// Refresh re-fetches the snapshot and atomically replaces the store. When
// loads race, the last call wins: a stale response is dropped by the epoch
// guard. A failed refresh leaves the current view intact.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	e.epoch++
	epoch := e.epoch
	e.mu.Unlock()

	jobs, err := e.client.ListJobs(ctx)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil
	}
	if err != nil {
		return fmt.Errorf("refresh snapshot: %w", err)
	}
	e.store.Replace(jobs)
	return nil
}

// RemoveJob deletes the job on the server and, once confirmed, removes it
// from the local store.
func (e *Engine) RemoveJob(ctx context.Context, jobID string) error {
	if err := e.client.RemoveJob(ctx, jobID); err != nil {
		return err
	}
	e.store.Remove(jobID)
	return nil
}

// Wake short-circuits a pending reconnect delay, reconnecting immediately if
// the stream is down. Hosts call it when they resume from suspension.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// ConnState reports the stream connection state.
func (e *Engine) ConnState() ConnState {
	return ConnState(e.connState.Load())
}

func (e *Engine) setConnState(s ConnState) {
	e.connState.Store(int32(s))
}
