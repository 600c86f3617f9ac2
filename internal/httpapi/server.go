// Package httpapi exposes the backtesting engines over an HTTP JSON API.
// All request validation happens here, before any engine is invoked;
// invalid input never reaches the core.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tradelab/internal/domain"
	"tradelab/internal/marketdata"
)

// BarSource provides historical price series. Implemented by
// marketdata.Service; tests substitute a stub.
type BarSource interface {
	GetBars(ctx context.Context, symbol string, timeframe domain.Timeframe, start, end time.Time) (domain.PriceSeries, error)
}

// Server serves the backtest HTTP API.
type Server struct {
	data           BarSource
	benchmarks     []string
	allowedOrigins []string
	log            *slog.Logger
}

// NewServer creates a Server fetching bars from data. benchmarks are the
// buy-and-hold comparison symbols added to backtest responses.
func NewServer(data BarSource, benchmarks, allowedOrigins []string, log *slog.Logger) *Server {
	return &Server{
		data:           data,
		benchmarks:     benchmarks,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/backtest/mean-reversion", s.handleMeanReversion)
	mux.HandleFunc("POST /api/portfolio", s.handlePortfolio)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// Handler returns the full handler chain: routes wrapped in request
// metrics and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.corsMiddleware(requestMetrics(mux))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && originAllowed(origin, s.allowedOrigins) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// originAllowed checks the configured origin list; localhost origins are
// always accepted so local frontends work without configuration.
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// writeFetchError maps the market-data error taxonomy onto HTTP statuses:
// no data in range is the caller's problem (404), a provider failure is a
// bad gateway (502), anything else is internal.
func (s *Server) writeFetchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketdata.ErrNoData):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, marketdata.ErrUpstream):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Error("backtest failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}
