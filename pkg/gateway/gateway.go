// Package gateway exposes the orchestrator over HTTP for the host
// application: JSON generation calls, SSE streaming, and read-only usage,
// cache, and circuit endpoints. Adapted presentation glue; all request
// semantics live in pkg/orchestrator.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/elan-ai/elan/pkg/audit"
	"github.com/elan-ai/elan/pkg/breaker"
	"github.com/elan-ai/elan/pkg/cache"
	"github.com/elan-ai/elan/pkg/config"
	"github.com/elan-ai/elan/pkg/models"
	"github.com/elan-ai/elan/pkg/orchestrator"
	"github.com/elan-ai/elan/pkg/tracker"
	"github.com/elan-ai/elan/pkg/usagedb"
)

// Server is the Elan HTTP gateway.
type Server struct {
	cfg      *config.Config
	gen      *orchestrator.Orchestrator
	tracker  *tracker.Tracker
	cache    *cache.Cache
	breakers *breaker.Registry
	auditor  *audit.Logger
	usage    *usagedb.Store
	log      *zap.Logger
	mux      *http.ServeMux
}

// New creates a gateway Server wired with all dependencies. The cache,
// auditor, and usage store may be nil.
func New(
	cfg *config.Config,
	gen *orchestrator.Orchestrator,
	tr *tracker.Tracker,
	c *cache.Cache,
	br *breaker.Registry,
	a *audit.Logger,
	u *usagedb.Store,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		gen:      gen,
		tracker:  tr,
		cache:    c,
		breakers: br,
		auditor:  a,
		usage:    u,
		log:      log,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("/v1/generate", s.handleGenerate)
	s.mux.HandleFunc("/v1/usage", s.handleUsage)
	s.mux.HandleFunc("/v1/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("/v1/circuits", s.handleCircuits)
	s.mux.HandleFunc("/healthz", s.handleHealthz)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the gateway with graceful shutdown support and a
// background loop archiving usage totals.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	if s.usage != nil {
		go s.flushLoop(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("gateway listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.flushUsage()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// flushLoop periodically archives tracker totals to the usage store.
func (s *Server) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Usage.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flushUsage()
		}
	}
}

func (s *Server) flushUsage() {
	if s.usage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.usage.Archive(ctx, s.tracker.Snapshot()); err != nil {
		s.log.Warn("usage archive failed", zap.Error(err))
	}
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	Category   string `json:"category"`
	Complexity string `json:"complexity"`
	Tier       string `json:"tier"`
	SubjectID  string `json:"subject_id"`
	Stream     bool   `json:"stream"`
}

// toModel validates and normalizes the wire request.
func (g generateRequest) toModel() (models.GenerationRequest, error) {
	if g.Prompt == "" {
		return models.GenerationRequest{}, fmt.Errorf("prompt is required")
	}

	complexity := models.Complexity(g.Complexity)
	if g.Complexity == "" {
		complexity = models.ComplexityMedium
	} else if !complexity.Valid() {
		return models.GenerationRequest{}, fmt.Errorf("unknown complexity %q", g.Complexity)
	}

	tier := models.Tier(g.Tier)
	if g.Tier == "" {
		tier = models.TierFree
	} else if !tier.Valid() {
		return models.GenerationRequest{}, fmt.Errorf("unknown tier %q", g.Tier)
	}

	subject := g.SubjectID
	if subject == "" {
		subject = "anonymous"
	}

	return models.GenerationRequest{
		Prompt:     g.Prompt,
		Category:   g.Category,
		Complexity: complexity,
		Tier:       tier,
		SubjectID:  subject,
		Stream:     g.Stream,
	}, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var wire generateRequest
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req, err := wire.toModel()
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	requestID := uuid.NewString()
	reqStart := time.Now()

	if req.Stream {
		s.handleGenerateStream(w, r, requestID, req, reqStart)
		return
	}

	result, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		s.auditOutcome(requestID, req, nil, err, reqStart)
		s.writeGenerateError(w, err)
		return
	}
	result.RequestID = requestID

	s.auditOutcome(requestID, req, result, nil, reqStart)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Elan-Cache", cacheHeader(result.FromCache))
	_ = json.NewEncoder(w).Encode(result)
}

// streamEvent is one SSE payload: a delta while streaming, then a final
// event carrying the structured result.
type streamEvent struct {
	Delta  string                   `json:"delta,omitempty"`
	Done   bool                     `json:"done,omitempty"`
	Result *models.GenerationResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func (s *Server) handleGenerateStream(w http.ResponseWriter, r *http.Request, requestID string, req models.GenerationRequest, reqStart time.Time) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	stream, err := s.gen.GenerateStream(r.Context(), req)
	if err != nil {
		s.auditOutcome(requestID, req, nil, err, reqStart)
		s.writeGenerateError(w, err)
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Elan-Cache", cacheHeader(stream.FromCache()))
	w.WriteHeader(http.StatusOK)

	var streamErr error
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			writeEvent(w, streamEvent{Error: err.Error()})
			flusher.Flush()
			break
		}
		writeEvent(w, streamEvent{Delta: chunk})
		flusher.Flush()
	}

	result := stream.Result()
	if result != nil {
		result.RequestID = requestID
		writeEvent(w, streamEvent{Done: true, Result: result})
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()

	s.auditOutcome(requestID, req, result, streamErr, reqStart)
}

func writeEvent(w http.ResponseWriter, evt streamEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

// auditOutcome writes the audit entry off the request path.
func (s *Server) auditOutcome(requestID string, req models.GenerationRequest, result *models.GenerationResult, genErr error, reqStart time.Time) {
	if s.auditor == nil {
		return
	}

	hash, prefix := audit.HashSubject(req.SubjectID)
	entry := models.AuditEntry{
		RequestID:     requestID,
		SubjectHash:   hash,
		SubjectPrefix: prefix,
		Category:      req.Category,
		Complexity:    string(req.Complexity),
		Tier:          string(req.Tier),
		Status:        statusOf(genErr),
		Prompt:        req.Prompt,
		LatencyMs:     time.Since(reqStart).Milliseconds(),
		CreatedAt:     time.Now().UTC(),
	}
	if result != nil {
		entry.Provider = result.Provider
		entry.FromCache = result.FromCache
		entry.Degraded = result.Degraded
		entry.PromptTokens = result.PromptTokens
		entry.CompletionTokens = result.CompletionTokens
		entry.Cost = result.Cost
	}

	go func() {
		if err := s.auditor.Log(context.Background(), entry); err != nil {
			s.log.Warn("audit log failed", zap.Error(err))
		}
	}()
}

func statusOf(err error) string {
	var rle *orchestrator.RateLimitError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &rle):
		return "rate_limited"
	case errors.Is(err, orchestrator.ErrUpstreamTimeout):
		return "timeout"
	default:
		return "upstream_error"
	}
}

// writeGenerateError maps the orchestrator's error taxonomy onto HTTP.
func (s *Server) writeGenerateError(w http.ResponseWriter, err error) {
	var rle *orchestrator.RateLimitError
	switch {
	case errors.As(err, &rle):
		retryAfter := max(int(time.Until(rle.ResetAt).Seconds()), 0)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeJSONError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, orchestrator.ErrUpstreamTimeout):
		writeJSONError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, orchestrator.ErrProviderUnavailable):
		writeJSONError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful to write.
	default:
		s.log.Error("generate failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var totals models.UsageTotals
	if subject := r.URL.Query().Get("subject"); subject != "" {
		totals = s.tracker.TotalsForSubject(subject)
	} else {
		totals = s.tracker.Totals()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(totals)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.cache == nil {
		writeJSONError(w, http.StatusNotFound, "cache disabled")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.cache.Stats())
}

func (s *Server) handleCircuits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.breakers.Snapshot())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

func cacheHeader(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}
