package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/core/ports"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/reporting/xlsxreport"
	"github.com/kirillkom/archive-assistant/internal/observability/metrics"
)

// LinkVerifier checks the signature and deadline on a pre-authorized file
// link.
type LinkVerifier interface {
	Verify(key, exp, sig string, now time.Time) error
}

type Options struct {
	RateLimitRPS   int
	RateLimitBurst int
	MaxConcurrent  int
	QueryTimeout   time.Duration
}

type Router struct {
	ingest    ports.DocumentIngestor
	jobs      ports.IngestJobReader
	query     ports.QueryService
	refs      ports.ReferenceResolver
	history   ports.ConversationHistory
	analytics ports.AnalyticsRecorder
	storage   ports.ObjectStorage
	verifier  LinkVerifier
	metrics   *metrics.HTTPServerMetrics
	options   Options
}

func NewRouter(
	ingest ports.DocumentIngestor,
	jobs ports.IngestJobReader,
	query ports.QueryService,
	refs ports.ReferenceResolver,
	history ports.ConversationHistory,
	analytics ports.AnalyticsRecorder,
	storage ports.ObjectStorage,
	verifier LinkVerifier,
	serverMetrics *metrics.HTTPServerMetrics,
	options Options,
) *Router {
	if options.QueryTimeout <= 0 {
		options.QueryTimeout = 15 * time.Minute
	}
	return &Router{
		ingest:    ingest,
		jobs:      jobs,
		query:     query,
		refs:      refs,
		history:   history,
		analytics: analytics,
		storage:   storage,
		verifier:  verifier,
		metrics:   serverMetrics,
		options:   options,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.uploadDocument)
	mux.HandleFunc("/v1/documents/", rt.getJobByID)
	mux.HandleFunc("/v1/query", rt.askQuery)
	mux.HandleFunc("/v1/conversations/", rt.getConversationTurns)
	mux.HandleFunc("/v1/refs/", rt.resolveReference)
	mux.HandleFunc("/v1/files/", rt.serveFile)
	mux.HandleFunc("/v1/admin/analytics.xlsx", rt.exportAnalytics)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.options.MaxConcurrent, 100*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.options.RateLimitRPS, rt.options.RateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	job, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getJobByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	job, err := rt.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

type queryRequestBody struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Language       string `json:"language"`
	SessionID      string `json:"session_id"`
	UserID         string `json:"user_id"`
	Stream         *bool  `json:"stream"`
}

func (rt *Router) askQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var body queryRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	streaming := strings.Contains(r.Header.Get("Accept"), "text/event-stream")
	if raw := r.URL.Query().Get("stream"); raw != "" {
		streaming = raw == "true" || raw == "1"
	}
	if body.Stream != nil {
		streaming = *body.Stream
	}

	ctx, cancel := context.WithTimeout(r.Context(), rt.options.QueryTimeout)
	defer cancel()

	req := domain.QueryRequest{
		Message:        body.Message,
		ConversationID: body.ConversationID,
		Language:       body.Language,
		SessionID:      body.SessionID,
		UserID:         body.UserID,
	}

	if streaming {
		sink := newSSESink(w)
		if _, err := rt.query.Ask(ctx, req, sink); err != nil {
			// Validation and duplicate errors occur before the stream opens.
			if !sink.opened {
				writeError(w, err)
				return
			}
		}
		sink.Finish()
		return
	}

	sink := &collectSink{}
	answer, err := rt.query.Ask(ctx, req, sink)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) getConversationTurns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/conversations/"), "/turns")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation id is required"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	turns, err := rt.history.ListTurns(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversation_id": id, "turns": turns})
}

func (rt *Router) resolveReference(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/v1/refs/")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "reference token is required"})
		return
	}

	location, err := rt.refs.Resolve(r.Context(), token)
	if err != nil {
		outcome := "error"
		switch {
		case domain.IsKind(err, domain.ErrReferenceNotFound):
			outcome = "not_found"
		case domain.IsKind(err, domain.ErrReferenceExpired):
			outcome = "expired"
		}
		if rt.metrics != nil {
			rt.metrics.RecordReferenceResolution("api", outcome)
		}
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordReferenceResolution("api", "ok")
	}
	http.Redirect(w, r, location, http.StatusFound)
}

func (rt *Router) serveFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/v1/files/")
	key, err := url.PathUnescape(key)
	if err != nil || key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file key is required"})
		return
	}

	exp := r.URL.Query().Get("exp")
	sig := r.URL.Query().Get("sig")
	if err := rt.verifier.Verify(key, exp, sig, time.Now().UTC()); err != nil {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "link is invalid or expired"})
		return
	}

	rc, err := rt.storage.Open(r.Context(), key)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (rt *Router) exportAnalytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	since := time.Now().UTC().AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "since must be YYYY-MM-DD"})
			return
		}
		since = parsed
	}

	events, err := rt.analytics.ListEvents(r.Context(), since, 10000)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="analytics.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if err := xlsxreport.Write(w, events); err != nil {
		// Headers are already sent; nothing useful left to report.
		return
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}
