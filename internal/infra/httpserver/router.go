package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appenrich "github.com/bryanwahyu/automaton-audit/internal/application/enrich"
	appreports "github.com/bryanwahyu/automaton-audit/internal/application/reports"
	domai "github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/projects"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

const maxReportBytes = 10 << 20 // uploaded reports are markdown, 10MB is generous

type Router struct {
	reportsSvc *appreports.Service
	enrichSvc  *appenrich.Service
	enricher   domai.Enricher
}

func NewRouter(reportsSvc *appreports.Service, enrichSvc *appenrich.Service, enricher domai.Enricher, allowedOrigins []string) http.Handler {
	r := &Router{reportsSvc: reportsSvc, enrichSvc: enrichSvc, enricher: enricher}

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/projects", r.wrap(r.handleIngest))
		rt.Get("/projects", r.wrap(r.handleListProjects))
		rt.Get("/projects/{id}/findings", r.wrap(r.handleListFindings))
		rt.Post("/projects/{id}/enrich", r.wrap(r.handleStartEnrichment))
		rt.Post("/enrich/stop", r.wrap(r.handleStopEnrichment))
		rt.Get("/enrich/status", r.wrap(r.handleEnrichmentStatus))
		rt.Post("/ai/test-key", r.wrap(r.handleTestKey))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequestError marks caller mistakes detected in handlers themselves.
type badRequestError struct{ err error }

func (e badRequestError) Error() string { return e.err.Error() }

func badRequest(err error) error { return badRequestError{err: err} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var br badRequestError
		switch {
		case errors.As(err, &br):
			http.Error(w, br.Error(), http.StatusBadRequest)
		case errors.Is(err, appreports.ErrNoFindings), errors.Is(err, domai.ErrAPIKeyMissing):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, projects.ErrDuplicateReport), errors.Is(err, appenrich.ErrAlreadyRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, appenrich.ErrNotRunning), errors.Is(err, sql.ErrNoRows):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// POST /v1/projects
// Accepts JSON {"name": ..., "report": ...} or a multipart form with
// "projectName" and "file" fields (the dashboard drag-and-drop uses the
// latter).
func (r *Router) handleIngest(w http.ResponseWriter, req *http.Request) error {
	name, report, err := readIngestRequest(req)
	if err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateProjectName(name); err != nil {
		return badRequest(err)
	}
	if report == "" {
		return badRequest(errors.New("report content is required"))
	}

	result, err := r.reportsSvc.Ingest(req.Context(), middleware.SanitizeString(name), report)
	if err != nil {
		return err
	}

	middleware.IncrementReportsIngested()
	return writeJSON(w, http.StatusCreated, result)
}

func readIngestRequest(req *http.Request) (name, report string, err error) {
	ct, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if ct == "multipart/form-data" {
		if err := req.ParseMultipartForm(maxReportBytes); err != nil {
			return "", "", err
		}
		file, _, err := req.FormFile("file")
		if err != nil {
			return "", "", errors.New("report file is required")
		}
		defer file.Close()
		content, err := io.ReadAll(io.LimitReader(file, maxReportBytes))
		if err != nil {
			return "", "", err
		}
		return req.FormValue("projectName"), string(content), nil
	}

	var body struct {
		Name   string `json:"name"`
		Report string `json:"report"`
	}
	if err := json.NewDecoder(io.LimitReader(req.Body, maxReportBytes)).Decode(&body); err != nil {
		return "", "", err
	}
	return body.Name, body.Report, nil
}

// GET /v1/projects
func (r *Router) handleListProjects(w http.ResponseWriter, req *http.Request) error {
	list, err := r.reportsSvc.ListProjects(req.Context())
	if err != nil {
		return err
	}

	type item struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	out := make([]item, 0, len(list))
	for _, p := range list {
		out = append(out, item{ID: string(p.ID), Name: p.Name})
	}
	return writeJSON(w, http.StatusOK, out)
}

// GET /v1/projects/{id}/findings?scanner=&level=
func (r *Router) handleListFindings(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	scanner := req.URL.Query().Get("scanner")
	level := req.URL.Query().Get("level")

	if err := middleware.ValidateScanner(scanner); err != nil {
		return badRequest(err)
	}
	if err := middleware.ValidateLevel(level); err != nil {
		return badRequest(err)
	}

	if _, err := r.reportsSvc.GetProject(req.Context(), projects.ProjectID(id)); err != nil {
		return err
	}

	filter := findings.Filter{}
	if scanner != "" && scanner != "all" {
		filter.Scanner = findings.Scanner(scanner)
	}
	if level != "" && level != "all" {
		filter.Level = findings.Severity(level)
	}

	list, err := r.reportsSvc.ListFindings(req.Context(), id, filter)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*findings.Finding{}
	}
	return writeJSON(w, http.StatusOK, list)
}

// POST /v1/projects/{id}/enrich
// Body: {"api_key": "<key>"}. Starts the background run.
func (r *Router) handleStartEnrichment(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}

	if _, err := r.reportsSvc.GetProject(req.Context(), projects.ProjectID(id)); err != nil {
		return err
	}

	if err := r.enrichSvc.Start(id, body.APIKey); err != nil {
		return err
	}

	middleware.IncrementEnrichmentRuns()
	return writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Enrichment process started.",
	})
}

// POST /v1/enrich/stop
func (r *Router) handleStopEnrichment(w http.ResponseWriter, req *http.Request) error {
	if err := r.enrichSvc.Stop(); err != nil {
		return err
	}

	middleware.IncrementEnrichmentStops()
	return writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Stop signal sent. Finishing current item...",
	})
}

// GET /v1/enrich/status
func (r *Router) handleEnrichmentStatus(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.enrichSvc.Status())
}

// POST /v1/ai/test-key
// Body: {"api_key": "<key>"}. Verifies the key with a minimal request.
func (r *Router) handleTestKey(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest(err)
	}

	if err := r.enricher.Ping(req.Context(), body.APIKey); err != nil {
		return writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   err.Error(),
		})
	}
	return writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
