package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/pdown/internal/engine"
	"github.com/dgnsrekt/pdown/internal/events"
	"github.com/dgnsrekt/pdown/internal/metrics"
	"github.com/dgnsrekt/pdown/internal/share"
	"github.com/dgnsrekt/pdown/internal/snapshot"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the part of the engine the HTTP API drives.
type Service interface {
	List(ctx context.Context, targets []share.Target, recursive bool) []engine.Outcome[engine.ListResult]
	Download(ctx context.Context, targets []share.Target, dir string) []engine.Outcome[struct{}]
}

// Options configures NewServer.
type Options struct {
	// BaseURL is the origin share IDs are resolved against.
	BaseURL string
	// DownloadDir is used when a download request names no directory, and
	// confines the directories a request may name.
	DownloadDir string
	// Bus feeds /api/v1/events. The stream is not mounted when nil.
	Bus *events.Bus
	// Snapshots serves failure screenshots. Optional.
	Snapshots SnapshotStore
}

// Server is the HTTP API. It tracks the download jobs started through it so
// shutdown can wait for them before the browsers go away.
type Server struct {
	http.Handler
	jobs *jobStore
}

// WaitJobs blocks until every started download job has finished or ctx is
// done.
func (s *Server) WaitJobs(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.jobs.wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewServer builds the HTTP API. Download jobs started through it run
// until they finish or ctx is cancelled.
func NewServer(ctx context.Context, svc Service, opts Options) *Server {
	if opts.BaseURL == "" {
		opts.BaseURL = share.DefaultBaseURL
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if abs, err := filepath.Abs(opts.DownloadDir); err == nil {
		opts.DownloadDir = abs
	}

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger)
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("pdown API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(docsHTML)); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	router.Get("/docs/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write([]byte(eventsDocsHTML)); err != nil {
			slog.Debug("events docs response write failed", "error", err)
		}
	})
	router.Handle("/metrics", metrics.Handler())
	if opts.Bus != nil {
		router.Get("/api/v1/events", events.SSEHandler(opts.Bus))
		context.AfterFunc(ctx, metrics.RecordEvents(opts.Bus))
	}

	jobs := newJobStore(ctx, svc)
	registerHealthHandlers(api, opts.Bus)
	registerListHandlers(api, svc, opts)
	registerDownloadHandlers(api, jobs, opts)
	if opts.Snapshots != nil {
		registerSnapshotHandlers(api, opts.Snapshots)
	}

	return &Server{Handler: router, jobs: jobs}
}

func registerHealthHandlers(api huma.API, bus *events.Bus) {
	type healthOutput struct {
		Body struct {
			Status      string `json:"status"`
			Subscribers int    `json:"subscribers"`
			Dropped     int64  `json:"dropped"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "health", Method: http.MethodGet, Path: "/api/v1/health", Summary: "Health check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			if bus != nil {
				out.Body.Subscribers = bus.SubscriberCount()
				out.Body.Dropped = bus.Dropped()
			}
			return out, nil
		})
}

func registerListHandlers(api huma.API, svc Service, opts Options) {
	type listOutput struct {
		Body struct {
			Results []ShareResult `json:"results"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "list-shares", Method: http.MethodPost, Path: "/api/v1/list", Summary: "List the file trees of one or more shares", Tags: []string{"Shares"}},
		func(ctx context.Context, input *struct {
			Body struct {
				URLs     []string `json:"urls" minItems:"1" doc:"Share URLs or bare share IDs"`
				Password string   `json:"password,omitempty" doc:"Password for protected shares"`
				Shallow  bool     `json:"shallow,omitempty" doc:"Only list the top level of folder shares"`
			}
		}) (*listOutput, error) {
			targets, err := parseTargets(opts.BaseURL, input.Body.URLs, input.Body.Password)
			if err != nil {
				return nil, mapErr(err)
			}
			outcomes := svc.List(ctx, targets, !input.Body.Shallow)

			out := &listOutput{}
			out.Body.Results = make([]ShareResult, 0, len(outcomes))
			var firstErr error
			failed := 0
			for _, o := range outcomes {
				recordShare("list", o.Err)
				if o.Err != nil {
					failed++
					if firstErr == nil {
						firstErr = o.Err
					}
					out.Body.Results = append(out.Body.Results, failedResult(o.Target, o.Err))
					continue
				}
				files := o.Value.Files
				out.Body.Results = append(out.Body.Results, ShareResult{ID: o.Target.ID, URL: o.Target.URL, Files: &files})
			}
			if failed == len(outcomes) {
				return nil, mapErr(firstErr)
			}
			return out, nil
		})
}

func registerDownloadHandlers(api huma.API, jobs *jobStore, opts Options) {
	type jobOutput struct {
		Body Job
	}

	type listJobsOutput struct {
		Body struct {
			Jobs []Job `json:"jobs"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "start-download", Method: http.MethodPost, Path: "/api/v1/downloads", Summary: "Start downloading one or more shares", Tags: []string{"Downloads"}, DefaultStatus: http.StatusAccepted},
		func(ctx context.Context, input *struct {
			Body struct {
				URLs     []string `json:"urls" minItems:"1" doc:"Share URLs or bare share IDs"`
				Password string   `json:"password,omitempty" doc:"Password for protected shares"`
				Dir      string   `json:"dir,omitempty" doc:"Download directory, relative to the server's download directory"`
			}
		}) (*jobOutput, error) {
			targets, err := parseTargets(opts.BaseURL, input.Body.URLs, input.Body.Password)
			if err != nil {
				return nil, mapErr(err)
			}
			dir, err := confineDir(opts.DownloadDir, input.Body.Dir)
			if err != nil {
				return nil, mapErr(err)
			}
			return &jobOutput{Body: jobs.start(targets, dir)}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "list-downloads", Method: http.MethodGet, Path: "/api/v1/downloads", Summary: "List download jobs", Tags: []string{"Downloads"}},
		func(ctx context.Context, input *struct{}) (*listJobsOutput, error) {
			out := &listJobsOutput{}
			out.Body.Jobs = jobs.list()
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-download", Method: http.MethodGet, Path: "/api/v1/downloads/{job_id}", Summary: "Get a download job", Tags: []string{"Downloads"}},
		func(ctx context.Context, input *struct {
			JobID string `path:"job_id"`
		}) (*jobOutput, error) {
			job, ok := jobs.get(input.JobID)
			if !ok {
				return nil, huma.Error404NotFound(fmt.Sprintf("download job %q not found", input.JobID))
			}
			return &jobOutput{Body: job}, nil
		})
}

// recordShare counts one settled share task. Uncoded failures count as
// UNKNOWN so they never pass for successes.
func recordShare(operation string, err error) {
	if err == nil {
		metrics.RecordShare(operation, "")
		return
	}
	code := engine.CodeOf(err)
	if code == "" {
		code = "UNKNOWN"
	}
	metrics.RecordShare(operation, code)
}

func parseTargets(baseURL string, inputs []string, password string) ([]share.Target, error) {
	targets := share.ParseTargets(baseURL, inputs, password)
	if len(targets) == 0 {
		return nil, engine.NewError(engine.CodeValidation, "no valid share URLs or IDs", nil)
	}
	return targets, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, snapshot.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, snapshot.ErrInvalidID):
		return huma.Error400BadRequest(err.Error())
	}
	var coded *engine.CodedError
	if errors.As(err, &coded) {
		switch coded.Code {
		case engine.CodeValidation:
			return huma.Error400BadRequest(coded.Message)
		case engine.CodeShareNotFound:
			return huma.Error404NotFound(coded.Message)
		case engine.CodeInvalidPassword, engine.CodePermissionDenied:
			return huma.Error403Forbidden(coded.Message)
		case engine.CodeMalformedItem, engine.CodeEnumerationInconsistency:
			return huma.Error422UnprocessableEntity(coded.Message)
		case engine.CodeTimeout:
			return huma.Error504GatewayTimeout(coded.Message)
		case engine.CodeBrowserUnavailable:
			return huma.Error503ServiceUnavailable(coded.Message)
		case engine.CodeNavigationFailed:
			return huma.Error502BadGateway(coded.Message)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, coded.Message))
		}
	}
	return huma.Error500InternalServerError(err.Error())
}

// confineDir resolves a requested download directory inside root. Relative
// paths are joined to root; absolute ones must already lie within it.
func confineDir(root, requested string) (string, error) {
	if requested == "" {
		return root, nil
	}
	dir := requested
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(root, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(root, dir)
	if err != nil || !filepath.IsLocal(rel) {
		return "", engine.NewError(engine.CodeValidation, fmt.Sprintf("dir %q is outside the download directory", requested), nil)
	}
	return dir, nil
}
