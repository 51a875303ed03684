package chi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookbook/internal/domain"
	logpkg "github.com/kailas-cloud/lookbook/internal/logger"
	"github.com/kailas-cloud/lookbook/internal/transport/hfdatasets"
	describeuc "github.com/kailas-cloud/lookbook/internal/usecase/describe"
	healthuc "github.com/kailas-cloud/lookbook/internal/usecase/health"
	recommenduc "github.com/kailas-cloud/lookbook/internal/usecase/recommend"
	usageuc "github.com/kailas-cloud/lookbook/internal/usecase/usage"
)

// Recommender runs the pipeline.
type Recommender interface {
	Recommend(ctx context.Context, req recommenduc.Request) (domain.Recommendation, error)
	Normalize(ctx context.Context, query, itemDescription string) (domain.NormalizedIntent, error)
}

// Describer turns an image into an item description.
type Describer interface {
	Describe(ctx context.Context, img describeuc.Image) (string, error)
}

// Catalog resolves item ids against the loaded index.
type Catalog interface {
	Item(id int) (domain.CatalogItem, bool)
}

// ImageLookup finds the dataset image for an item id.
type ImageLookup interface {
	Row(ctx context.Context, idx int) (hfdatasets.Row, error)
}

// HealthChecker reports component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// UsageReporter reports generation token spend.
type UsageReporter interface {
	GetReport(ctx context.Context, period usageuc.Period) usageuc.Report
}

// Limits bounds caller-supplied pipeline parameters.
type Limits struct {
	MaxN         int
	MaxK         int
	MaxBodyBytes int64
	// RequestTimeout bounds a handler's context. Keep it below the server's
	// write timeout so a failed pipeline still reaches the client. 0 = none.
	RequestTimeout time.Duration
}

// Deps lists the server collaborators. Describer, Images and Usage are optional.
type Deps struct {
	Recommender Recommender
	Describer   Describer
	Catalog     Catalog
	Images      ImageLookup
	Health      HealthChecker
	Usage       UsageReporter
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	deps          Deps
	limits        Limits
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, limits Limits, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.MaxBodyBytes <= 0 {
		limits.MaxBodyBytes = 10 << 20
	}
	s := &Server{deps: deps, limits: limits, logger: logger}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidRequest, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrBudgetExceeded, http.StatusTooManyRequests, ErrorCodeBudgetExceeded),
		sentinelHandler(domain.ErrEmptyCandidates, http.StatusNotFound, ErrorCodeEmptyCandidates),
		sentinelHandler(domain.ErrItemNotFound, http.StatusNotFound, ErrorCodeItemNotFound),
		sentinelHandler(domain.ErrRerankFormat, http.StatusBadGateway, ErrorCodeRerankFormatInvalid),
		sentinelHandler(domain.ErrCaption, http.StatusBadGateway, ErrorCodeCaptionFailed),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, ErrorCodeGenerationFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProviderError),
	}
	return s
}

// Recommend handles POST /api/v1/recommendations.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, k := derefInt(req.N), derefInt(req.K)
	if req.N != nil && (n < 1 || (s.limits.MaxN > 0 && n > s.limits.MaxN)) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			"n must be between 1 and "+strconv.Itoa(s.limits.MaxN))
		return
	}
	if req.K != nil && (k < 1 || (s.limits.MaxK > 0 && k > s.limits.MaxK)) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			"k must be between 1 and "+strconv.Itoa(s.limits.MaxK))
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())

	itemDesc := req.ItemDescription
	if req.ImageURL != "" || req.ImageBase64 != "" {
		if itemDesc != "" {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
				"item_description and an image are mutually exclusive")
			return
		}
		desc, ok := s.describe(ctx, w, req.ImageURL, req.ImageBase64)
		if !ok {
			return
		}
		itemDesc = desc
	}

	rec, err := s.deps.Recommender.Recommend(ctx, recommenduc.Request{
		Query:           req.Query,
		ItemDescription: itemDesc,
		N:               n,
		K:               k,
	})
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}

	items := make([]ItemResponse, len(rec.Items))
	for i, it := range rec.Items {
		items[i] = ItemResponse{ID: it.ID, Description: it.Description}
	}
	resp := RecommendResponse{
		NormalizedIntent: rec.NormalizedIntent.String(),
		Items:            items,
	}
	if req.ItemDescription == "" {
		resp.ItemDescription = itemDesc
	}
	writeJSON(w, http.StatusOK, resp)
}

// NormalizeIntent handles POST /api/v1/intents.
func (s *Server) NormalizeIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	intent, err := s.deps.Recommender.Normalize(ctx, req.Query, req.ItemDescription)
	setUsageHeaders(w, usage)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, IntentResponse{NormalizedIntent: intent.String()})
}

// DescribeImage handles POST /api/v1/descriptions.
func (s *Server) DescribeImage(w http.ResponseWriter, r *http.Request) {
	var req DescribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	ctx, usage := domain.NewContextWithUsage(r.Context())
	desc, ok := s.describe(ctx, w, req.ImageURL, req.ImageBase64)
	setUsageHeaders(w, usage)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DescribeResponse{Description: desc})
}

// GetItem handles GET /api/v1/items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "item id must be a non-negative integer")
		return
	}
	item, ok := s.deps.Catalog.Item(id)
	if !ok {
		writeError(w, http.StatusNotFound, ErrorCodeItemNotFound, domain.ErrItemNotFound.Error())
		return
	}
	resp := ItemResponse{ID: item.ID, Description: item.Description}
	if s.deps.Images != nil {
		// The image is decoration; the item is served without it on failure.
		if row, err := s.deps.Images.Row(r.Context(), id); err == nil {
			resp.ImageURL = row.ImageURL
		} else {
			logpkg.FromContext(r.Context(), s.logger).Warn("Item image lookup failed",
				zap.Int("item_id", id), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUsage handles GET /api/v1/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "usage reporting is not configured")
		return
	}
	period, err := usageuc.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}
	rep := s.deps.Usage.GetReport(r.Context(), period)
	writeJSON(w, http.StatusOK, UsageResponse{
		Period:      string(rep.Period),
		PeriodStart: rep.PeriodStart,
		PeriodEnd:   rep.PeriodEnd,
		TokensUsed:  rep.TokensUsed,
		TokensLimit: rep.TokensLimit,
		Remaining:   rep.Remaining,
		Exhausted:   rep.Exhausted,
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:       string(report.Status),
		Checks:       checks,
		IndexItems:   report.IndexItems,
		IndexBuildID: report.IndexBuildID,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) describe(ctx context.Context, w http.ResponseWriter, imageURL, imageB64 string) (string, bool) {
	if s.deps.Describer == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "image description is not configured")
		return "", false
	}
	img := describeuc.Image{URL: imageURL}
	if imageB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(imageB64)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "image_base64 is not valid base64")
			return "", false
		}
		img.Bytes = raw
	}
	desc, err := s.deps.Describer.Describe(ctx, img)
	if err != nil {
		s.handleDomainError(ctx, w, err)
		return "", false
	}
	return desc, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.limits.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage == nil {
		return
	}
	if usage.Embedded {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
	if usage.GenerationTokens > 0 {
		w.Header().Set("X-Generation-Tokens", strconv.Itoa(usage.GenerationTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidRequest,
		domain.ErrBudgetExceeded,
		domain.ErrEmptyCandidates,
		domain.ErrItemNotFound,
		domain.ErrRerankFormat,
		domain.ErrCaption,
		domain.ErrGeneration,
		domain.ErrEmbeddingProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			// Validation detail is the caller's own input, safe to echo.
			if s == domain.ErrInvalidRequest {
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// A pipeline stage attached to err is reported alongside the code.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		resp := ErrorResponse{Code: code, Message: msg}
		if stage, ok := domain.StageOf(err); ok {
			resp.Stage = string(stage)
		}
		writeJSON(w, status, resp)
		return true
	}
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx, s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	resp := ErrorResponse{Code: ErrorCodeInternalError, Message: "internal error"}
	if stage, ok := domain.StageOf(err); ok {
		resp.Stage = string(stage)
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
