// Package api provides the HTTP server for the VoltGrid node. It exposes
// the three ledgers over REST: token transfers, station registration and
// session submission/claiming, plus node status and Prometheus metrics.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voltgrid-network/voltgrid/internal/chain"
	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/rewards"
	"github.com/voltgrid-network/voltgrid/internal/stations"
	"github.com/voltgrid-network/voltgrid/internal/token"
)

// CallerHeader carries the principal a request acts as. Mutating endpoints
// reject requests without it.
const CallerHeader = "X-Voltgrid-Caller"

// Server is the VoltGrid HTTP API server.
type Server struct {
	host           *chain.Host
	log            *slog.Logger
	metricsEnabled bool
}

// NewServer creates a new API server on top of the serializing host.
func NewServer(host *chain.Host, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{host: host, log: log}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/status", s.handleStatus)

	r.Route("/v1/token", func(r chi.Router) {
		r.Get("/supply", s.handleTokenSupply)
		r.Get("/owner", s.handleTokenOwner)
		r.Get("/balances/{principal}", s.handleTokenBalance)
		r.Get("/allowances/{owner}/{spender}", s.handleTokenAllowance)
		r.Post("/initialize", s.handleTokenInitialize)
		r.Post("/transfers", s.handleTokenTransfer)
		r.Post("/transfer-from", s.handleTokenTransferFrom)
		r.Post("/approvals", s.handleTokenApprove)
		r.Delete("/approvals/{spender}", s.handleTokenRevoke)
		r.Post("/mint", s.handleTokenMint)
		r.Post("/burn", s.handleTokenBurn)
		r.Post("/owner", s.handleTokenSetOwner)
	})

	r.Route("/v1/stations", func(r chi.Router) {
		r.Get("/", s.handleStationList)
		r.Post("/", s.handleStationRegister)
		r.Get("/fee", s.handleStationFee)
		r.Post("/fee", s.handleStationSetFee)
		r.Post("/admin", s.handleStationSetAdmin)
		r.Get("/{id}", s.handleStationGet)
		r.Put("/{id}", s.handleStationUpdate)
		r.Post("/{id}/toggle", s.handleStationToggle)
		r.Post("/{id}/owner", s.handleStationTransfer)
		r.Delete("/{id}", s.handleStationDeregister)
	})

	r.Route("/v1/rewards", func(r chi.Router) {
		r.Get("/config", s.handleRewardsConfig)
		r.Post("/oracle", s.handleRewardsSetOracle)
		r.Post("/contracts", s.handleRewardsSetContracts)
		r.Post("/sessions", s.handleSessionSubmit)
		r.Get("/sessions/{id}", s.handleSessionGet)
		r.Get("/sessions/{id}/pending", s.handleSessionPending)
		r.Post("/sessions/{id}/claim", s.handleSessionClaim)
		r.Get("/users/{user}/today", s.handleRewardsToday)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// handleStatus reports the node's chain-level state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var resp struct {
		Height       uint64 `json:"height"`
		TotalSupply  string `json:"total_supply"`
		Stations     uint64 `json:"stations"`
		Sessions     uint64 `json:"sessions"`
		TotalRewards uint64 `json:"total_rewards"`
		Oracle       string `json:"oracle"`
	}
	s.host.View(func(tok *token.Ledger, reg *stations.Registry, dist *rewards.Distributor) {
		resp.TotalSupply = tok.TotalSupply().Dec()
		resp.Stations = reg.TotalStations()
		resp.Sessions = dist.Nonce()
		resp.TotalRewards = dist.TotalRewards()
		resp.Oracle = string(dist.Oracle())
	})
	resp.Height = s.host.Height()
	writeJSON(w, http.StatusOK, resp)
}

// requestLogger logs one line per request with method, path, status and
// duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}

// caller extracts the acting principal from the request header.
func caller(r *http.Request) (domain.Principal, bool) {
	p := domain.Principal(r.Header.Get(CallerHeader))
	return p, !p.Zero()
}

// decode parses the JSON request body into v.
func decode(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response. Ledger errors keep their
// contract-level code and kind in the body.
func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]interface{}{
		"message": err.Error(),
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		body["code"] = derr.Code
		body["kind"] = derr.Kind
	}
	writeJSON(w, status, map[string]interface{}{"error": body})
}

// writeLedgerError maps a ledger error to an HTTP status.
func writeLedgerError(w http.ResponseWriter, err error) {
	writeError(w, errStatus(err), err)
}

// errStatus maps the sentinel ledger errors to HTTP statuses. Sentinels are
// matched by identity: codes repeat across ledgers but the values do not.
func errStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotRegistered),
		errors.Is(err, domain.ErrInvalidSession):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyRegistered),
		errors.Is(err, domain.ErrAlreadyInitialized),
		errors.Is(err, domain.ErrNotInitialized),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrOracleNotSet),
		errors.Is(err, domain.ErrMintFailed),
		errors.Is(err, domain.ErrMaxRewardExceeded):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// requireCaller writes a 400 and returns false when the caller header is
// absent.
func requireCaller(w http.ResponseWriter, r *http.Request) (domain.Principal, bool) {
	p, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, errors.New("missing "+CallerHeader+" header"))
		return "", false
	}
	return p, true
}
