package queuesync

import (
	"math"
	"time"

	"github.com/jmagar/nugs-dl/pkg/api"
)

// MergeProgress folds a sparse progress update into an existing job record
// and returns the next record. The input is never mutated.
//
// Field rules:
//   - only fields present in the update are applied; absent fields keep
//     their current values
//   - track counters beat the raw percentage: with both currentTrack and
//     totalTracks present, progress counts completed tracks
//   - a negative percentage is the indeterminate sentinel and passes
//     through untouched
//   - errorMessage exists exactly while the last status-bearing update
//     said failed
//   - startedAt and completedAt are write-once
//   - a status change the transition table rejects (reopening a terminal
//     job, or an unknown status) is discarded; the rest of the update
//     still merges
func MergeProgress(job api.DownloadJob, update api.ProgressUpdate, now time.Time) api.DownloadJob {
	next := job

	if update.CurrentFile != "" {
		next.CurrentFile = update.CurrentFile
	}
	if update.CurrentTrack > 0 {
		next.CurrentTrack = update.CurrentTrack
	}
	if update.TotalTracks > 0 {
		next.TotalTracks = update.TotalTracks
	}
	if update.SpeedBPS != nil {
		next.SpeedBPS = *update.SpeedBPS
	}

	if update.CurrentTrack > 0 && update.TotalTracks > 0 {
		// Progress counts finished tracks, not the position inside the
		// track currently downloading.
		next.Progress = math.Round(float64(update.CurrentTrack-1) / float64(update.TotalTracks) * 100)
	} else if update.Percentage != nil {
		next.Progress = *update.Percentage
	}

	status := update.Status
	if status != "" && !api.CanTransition(job.Status, status) {
		status = ""
	}
	if status != "" {
		next.Status = status

		if status == api.StatusFailed {
			if update.Message != "" {
				next.ErrorMessage = update.Message
			}
		} else {
			next.ErrorMessage = ""
		}

		if status == api.StatusProcessing && next.StartedAt == nil {
			t := now
			next.StartedAt = &t
		}
		if status.IsTerminal() && next.CompletedAt == nil {
			t := now
			next.CompletedAt = &t
		}
		if status == api.StatusComplete {
			next.Progress = 100
		}
	}

	return next
}

// RejectsStatus reports whether the update carries a status change the job's
// current state does not permit. Callers use it to log the anomaly; the
// merge itself silently drops the change.
func RejectsStatus(job api.DownloadJob, update api.ProgressUpdate) bool {
	return update.Status != "" && !api.CanTransition(job.Status, update.Status)
}
