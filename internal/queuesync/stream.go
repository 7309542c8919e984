package queuesync

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/jmagar/nugs-dl/internal/sse"
	"github.com/jmagar/nugs-dl/pkg/api"
)

// runStream is the subscriber loop: connect, drain events, and on any drop
// wait out the reconnect delay before trying again. Only ctx cancellation
// (Deactivate) ends the loop; there is no retry budget.
func (e *Engine) runStream(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer e.setConnState(StateDisconnected)

	for {
		if ctx.Err() != nil {
			return
		}

		e.setConnState(StateConnecting)
		body, err := e.client.OpenStream(ctx)
		if err != nil {
			e.setConnState(StateDisconnected)
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("status stream connect failed", "error", err)
			if !e.waitReconnect(ctx) {
				return
			}
			continue
		}

		e.setConnState(StateOpen)
		e.log.Debug("status stream open")
		e.readEvents(ctx, body)
		e.setConnState(StateDisconnected)

		if ctx.Err() != nil {
			return
		}
		e.log.Warn("status stream disconnected, will reconnect", "delay", e.delay)
		if !e.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect sleeps for the fixed delay. A Wake call ends the sleep
// early; cancellation reports false.
func (e *Engine) waitReconnect(ctx context.Context) bool {
	timer := time.NewTimer(e.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-e.wake:
		return true
	}
}

func (e *Engine) readEvents(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	// The scanner blocks in Read; closing the body is the only way to
	// unblock it when the engine is deactivated mid-stream.
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			body.Close()
		case <-closed:
		}
	}()

	scanner := sse.NewScanner(body)
	for scanner.Next() {
		if ctx.Err() != nil {
			return
		}
		e.handleEvent(scanner.Event())
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		e.log.Warn("status stream read error", "error", err)
	}
}

// handleEvent decodes one stream event and folds it into the store. A
// malformed payload or unknown event kind is logged and dropped; it never
// tears down the connection.
func (e *Engine) handleEvent(ev sse.Event) {
	var envelope api.StreamEvent
	if err := json.Unmarshal([]byte(ev.Data), &envelope); err != nil {
		e.log.Warn("malformed stream event, skipping", "error", err)
		return
	}

	switch envelope.Type {
	case api.StreamJobAdded:
		var job api.DownloadJob
		if err := json.Unmarshal(envelope.Data, &job); err != nil {
			e.log.Warn("malformed jobAdded payload, skipping", "error", err)
			return
		}
		if job.ID == "" {
			e.log.Warn("jobAdded payload without job ID, skipping")
			return
		}
		e.store.Upsert(job)

	case api.StreamProgressUpdate:
		var update api.ProgressUpdate
		if err := json.Unmarshal(envelope.Data, &update); err != nil {
			e.log.Warn("malformed progressUpdate payload, skipping", "error", err)
			return
		}
		e.applyProgress(update)

	default:
		e.log.Warn("unknown stream event type, dropping", "type", string(envelope.Type))
	}
}

func (e *Engine) applyProgress(update api.ProgressUpdate) {
	var rejectedFrom api.JobStatus
	rejected := false
	ok := e.store.Apply(update.JobID, func(job api.DownloadJob) api.DownloadJob {
		if RejectsStatus(job, update) {
			rejected = true
			rejectedFrom = job.Status
		}
		return MergeProgress(job, update, e.clock())
	})
	if !ok {
		// A delta can never materialize a job; only a snapshot entry or a
		// jobAdded event creates one.
		e.log.Warn("progress update for unknown job, dropping", "jobID", update.JobID)
		return
	}
	if rejected {
		e.log.Warn("ignoring status transition out of current state",
			"jobID", update.JobID, "from", string(rejectedFrom), "to", string(update.Status))
	}
}
