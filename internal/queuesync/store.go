package queuesync

import (
	"sort"
	"sync"

	"github.com/jmagar/nugs-dl/pkg/api"
)

// Store is the observable job-id -> job mapping the rest of the application
// reads. Writers are the snapshot loader (Replace) and the merge path
// (Upsert/Remove); readers always get copies, never aliases into the map.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]api.DownloadJob
	subs map[chan struct{}]bool
}

func NewStore() *Store {
	return &Store{
		jobs: make(map[string]api.DownloadJob),
		subs: make(map[chan struct{}]bool),
	}
}

// Get returns a copy of the job with the given ID.
func (s *Store) Get(id string) (api.DownloadJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Jobs returns all jobs ordered by creation time, oldest first. Ties fall
// back to ID so the ordering is stable across renders.
func (s *Store) Jobs() []api.DownloadJob {
	s.mu.RLock()
	jobs := make([]api.DownloadJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Replace swaps the entire contents for a fresh snapshot. Consumers never
// observe an intermediate empty-then-filled state.
func (s *Store) Replace(jobs []api.DownloadJob) {
	next := make(map[string]api.DownloadJob, len(jobs))
	for _, job := range jobs {
		if job.ID == "" {
			continue
		}
		next[job.ID] = job
	}

	s.mu.Lock()
	s.jobs = next
	s.notifyLocked()
	s.mu.Unlock()
}

// Upsert inserts or fully replaces one record.
func (s *Store) Upsert(job api.DownloadJob) {
	if job.ID == "" {
		return
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.notifyLocked()
	s.mu.Unlock()
}

// Apply rewrites one record under a single write lock and reports whether
// the job existed. The whole read-modify-write holds the lock, so a
// concurrent Replace or Remove can never interleave and resurrect a job
// the snapshot or a confirmed deletion just dropped. fn must not call back
// into the store.
func (s *Store) Apply(id string, fn func(api.DownloadJob) api.DownloadJob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false
	}
	s.jobs[id] = fn(job)
	s.notifyLocked()
	return true
}

// Remove drops a job after its deletion was confirmed externally.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	s.notifyLocked()
	return true
}

// Subscribe returns a channel that receives a tick after every mutation.
// Ticks are coalesced: a slow reader sees at least one tick for any burst
// of changes, not one per change.
func (s *Store) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs[ch] = true
	s.mu.Unlock()
	return ch
}

func (s *Store) Unsubscribe(ch chan struct{}) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

func (s *Store) notifyLocked() {
	for ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
