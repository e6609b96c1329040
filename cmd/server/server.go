package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/Simplici0/marginlab/internal/export"
	"github.com/Simplici0/marginlab/internal/margin"
	"github.com/Simplici0/marginlab/internal/metrics"
	"github.com/Simplici0/marginlab/internal/ratelimit"
	"github.com/Simplici0/marginlab/internal/store"
)

const (
	maxBodyBytes   = 1 << 20
	maxTitleLength = 200
)

type server struct {
	store    *store.Store
	auth     *authService
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	log      *logrus.Logger
	defaults margin.Thresholds
}

type saveCalculationRequest struct {
	Title string       `json:"title"`
	Notes string       `json:"notes"`
	Input margin.Input `json:"input"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/calculate", s.handleCalculate)
		r.Post("/auth/token", s.handleToken)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)
			r.Post("/calculations", s.handleCalculationCreate)
			r.Get("/calculations", s.handleCalculationList)
			r.Get("/calculations/{id}", s.handleCalculationGet)
			r.Delete("/calculations/{id}", s.handleCalculationDelete)
			r.Get("/calculations/{id}/export", s.handleCalculationExport)
			r.Get("/thresholds", s.handleThresholdsGet)
			r.Put("/thresholds", s.handleThresholdsUpdate)
		})
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		s.log.WithError(err).Error("health check failed")
		errorResponse(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r) {
		return
	}

	var input margin.Input
	if err := decodeJSON(w, r, &input); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.calculate(r.Context(), input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, result)
}

func (s *server) handleCalculationCreate(w http.ResponseWriter, r *http.Request) {
	var req saveCalculationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		s.writeError(w, r, fieldError("title", "is required"))
		return
	}
	if len(req.Title) > maxTitleLength {
		s.writeError(w, r, fieldError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength)))
		return
	}

	result, err := s.calculate(r.Context(), req.Input)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	calc := store.Calculation{
		OwnerEmail: emailFromContext(r.Context()),
		Title:      req.Title,
		Notes:      strings.TrimSpace(req.Notes),
		Input:      req.Input,
		Result:     result,
	}
	if err := s.store.SaveCalculation(r.Context(), &calc); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.metrics.Saved()

	w.Header().Set("Location", "/api/calculations/"+calc.ID)
	jsonResponse(w, http.StatusCreated, calc)
}

func (s *server) handleCalculationList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, err := parseQueryInt(query.Get("limit"), "limit")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	offset, err := parseQueryInt(query.Get("offset"), "offset")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	items, err := s.store.ListCalculations(r.Context(), store.ListParams{
		Query:  query.Get("q"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.store.CountCalculations(r.Context(), query.Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"calculations": items,
		"count":        len(items),
		"total":        total,
	})
}

func (s *server) handleCalculationGet(w http.ResponseWriter, r *http.Request) {
	calc, err := s.store.GetCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, calc)
}

func (s *server) handleCalculationDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCalculation(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCalculationExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	calc, err := s.store.GetCalculation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := export.Render(format, calc)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(calc.Title, calc.ID, format)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *server) handleThresholdsGet(w http.ResponseWriter, r *http.Request) {
	t, err := s.thresholds(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

func (s *server) handleThresholdsUpdate(w http.ResponseWriter, r *http.Request) {
	var t margin.Thresholds
	if err := decodeJSON(w, r, &t); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateThresholds(r.Context(), t); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log.WithField("email", emailFromContext(r.Context())).Info("thresholds updated")
	jsonResponse(w, http.StatusOK, t)
}

// calculate runs input through a calculator built from the stored thresholds.
func (s *server) calculate(ctx context.Context, input margin.Input) (margin.Result, error) {
	t, err := s.thresholds(ctx)
	if err != nil {
		return margin.Result{}, err
	}
	calc, err := margin.NewCalculator(t)
	if err != nil {
		return margin.Result{}, fmt.Errorf("stored thresholds: %w", err)
	}

	result, err := calc.Calculate(input)
	if err != nil {
		s.metrics.ObserveCalculation(metrics.OutcomeInvalid, 0)
		return margin.Result{}, err
	}
	s.metrics.ObserveCalculation(metrics.OutcomeOK, result.MarginRate)
	return result, nil
}

func (s *server) thresholds(ctx context.Context) (margin.Thresholds, error) {
	t, err := s.store.GetThresholds(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return s.defaults, nil
	}
	return t, err
}

// allow applies the daily cap and writes a 429 when it is exceeded.
// Limiter failures are logged and the request goes through.
func (s *server) allow(w http.ResponseWriter, r *http.Request) bool {
	decision, err := s.limiter.Allow(r.Context(), clientKey(r))
	if err != nil {
		s.log.WithError(err).Warn("rate limiter unavailable")
		return true
	}
	if decision.Limit <= 0 {
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining(), 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
	if decision.Allowed {
		return true
	}

	s.metrics.RateLimited()
	w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(decision.ResetAt).Seconds())+1))
	errorResponse(w, http.StatusTooManyRequests, "daily calculation limit reached")
	return false
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *margin.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusBadRequest, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		errorResponse(w, http.StatusNotFound, "not found")
	default:
		s.log.WithError(err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
		errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  middleware.GetReqID(r.Context()),
		}).Info("request")
	})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("encode response")
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func parseQueryInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fieldError(field, "must be a non-negative integer")
	}
	return v, nil
}

func fieldError(field, message string) error {
	return &margin.ValidationError{Fields: []margin.FieldError{{Field: field, Message: message}}}
}

// clientKey identifies the caller for the daily cap. RealIP has already
// rewritten RemoteAddr from proxy headers.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
