package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/metrics"
	"github.com/dgnsrekt/pdown/internal/share"
	"github.com/google/uuid"
)

type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	// JobFailed means at least one share in the job failed.
	JobFailed JobStatus = "failed"
)

// ShareResult is the per-share outcome reported by list and download calls.
type ShareResult struct {
	ID    string          `json:"id"`
	URL   string          `json:"url"`
	Files *share.FileInfo `json:"files,omitempty"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

func failedResult(t share.Target, err error) ShareResult {
	return ShareResult{ID: t.ID, URL: t.URL, Error: err.Error(), Code: engine.CodeOf(err)}
}

// Job is an asynchronous download of one or more shares.
type Job struct {
	ID         string        `json:"id"`
	Status     JobStatus     `json:"status"`
	Dir        string        `json:"dir"`
	Shares     []string      `json:"shares"`
	CreatedAt  time.Time     `json:"created_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	Results    []ShareResult `json:"results,omitempty"`
}

type jobStore struct {
	ctx context.Context
	svc Service

	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
	wg    sync.WaitGroup
}

func newJobStore(ctx context.Context, svc Service) *jobStore {
	return &jobStore{ctx: ctx, svc: svc, jobs: make(map[string]*Job)}
}

// start registers a job and runs it in the background. The returned copy
// reflects the job as created.
func (s *jobStore) start(targets []share.Target, dir string) Job {
	job := &Job{
		ID:        uuid.New().String(),
		Status:    JobRunning,
		Dir:       dir,
		CreatedAt: time.Now().UTC(),
	}
	for _, t := range targets {
		job.Shares = append(job.Shares, t.ID)
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.order = append(s.order, job.ID)
	snapshot := copyJob(job)
	s.mu.Unlock()

	slog.Info("download job started", "job_id", job.ID, "shares", len(targets), "dir", dir)
	s.wg.Add(1)
	metrics.DownloadJobStarted()
	go func() {
		defer s.wg.Done()
		defer metrics.DownloadJobFinished()
		outcomes := s.svc.Download(s.ctx, targets, dir)
		s.finish(job.ID, outcomes)
	}()
	return snapshot
}

func (s *jobStore) finish(id string, outcomes []engine.Outcome[struct{}]) {
	results := make([]ShareResult, 0, len(outcomes))
	status := JobCompleted
	for _, o := range outcomes {
		recordShare("download", o.Err)
		if o.Err != nil {
			status = JobFailed
			results = append(results, failedResult(o.Target, o.Err))
			continue
		}
		results = append(results, ShareResult{ID: o.Target.ID, URL: o.Target.URL})
	}
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Results = results
	job.FinishedAt = &now
	slog.Info("download job finished", "job_id", id, "status", status)
}

func (s *jobStore) get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return copyJob(job), true
}

func (s *jobStore) list() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, copyJob(s.jobs[id]))
	}
	return out
}

// wait blocks until every started job has finished.
func (s *jobStore) wait() {
	s.wg.Wait()
}

func copyJob(j *Job) Job {
	out := *j
	out.Shares = append([]string(nil), j.Shares...)
	out.Results = append([]ShareResult(nil), j.Results...)
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
