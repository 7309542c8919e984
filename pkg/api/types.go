package api

import (
	"encoding/json"
	"time"
)

// ProgressIndeterminate marks a job whose total size or track count is not
// known yet. Consumers should render it as an activity indicator rather
// than a percentage.
const ProgressIndeterminate = -1

// DownloadOptions are the per-job processing flags captured at submission
// time. They never change after the job is created.
type DownloadOptions struct {
	ForceVideo   bool `json:"forceVideo"`
	SkipVideos   bool `json:"skipVideos"`
	SkipChapters bool `json:"skipChapters"`
}

// DownloadJob is the server's canonical record for one requested download.
type DownloadJob struct {
	ID           string          `json:"id"`
	OriginalUrl  string          `json:"originalUrl"`
	Title        string          `json:"title,omitempty"`
	Options      DownloadOptions `json:"options"`
	Status       JobStatus       `json:"status"`
	ErrorMessage string          `json:"errorMessage,omitempty"`
	Progress     float64         `json:"progress"`
	CurrentFile  string          `json:"currentFile,omitempty"`
	CurrentTrack int             `json:"currentTrack,omitempty"`
	TotalTracks  int             `json:"totalTracks,omitempty"`
	SpeedBPS     int64           `json:"speedBps"`
	CreatedAt    time.Time       `json:"createdAt"`
	StartedAt    *time.Time      `json:"startedAt,omitempty"`
	CompletedAt  *time.Time      `json:"completedAt,omitempty"`
	ArtworkURL   string          `json:"artworkUrl,omitempty"`
}

// ProgressUpdate is a sparse delta for one existing job. Percentage and
// SpeedBPS are pointers so an absent field is distinguishable from zero
// and from the indeterminate sentinel.
type ProgressUpdate struct {
	JobID           string    `json:"jobId"`
	Status          JobStatus `json:"status,omitempty"`
	Message         string    `json:"message,omitempty"`
	CurrentFile     string    `json:"currentFile,omitempty"`
	CurrentTrack    int       `json:"currentTrack,omitempty"`
	TotalTracks     int       `json:"totalTracks,omitempty"`
	Percentage      *float64  `json:"percentage,omitempty"`
	SpeedBPS        *int64    `json:"speedBps,omitempty"`
	BytesDownloaded int64     `json:"bytesDownloaded,omitempty"`
	TotalBytes      int64     `json:"totalBytes,omitempty"`
}

// AddDownloadRequest is the body for submitting new download jobs. The
// server creates one job per URL.
type AddDownloadRequest struct {
	Urls    []string        `json:"urls"`
	Options DownloadOptions `json:"options"`
}

// AddDownloadResponseItem reports the outcome of adding a single URL.
type AddDownloadResponseItem struct {
	Url   string `json:"url"`
	JobID string `json:"jobId,omitempty"`
	Error string `json:"error,omitempty"`
}

type StreamEventType string

const (
	StreamJobAdded       StreamEventType = "jobAdded"
	StreamProgressUpdate StreamEventType = "progressUpdate"
)

// StreamEvent is the envelope carried in each SSE data payload. Data is
// decoded per Type by the receiver; unknown types are dropped.
type StreamEvent struct {
	Type StreamEventType `json:"type"`
	Data json.RawMessage `json:"data"`
}
