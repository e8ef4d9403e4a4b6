package api

import (
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/infra/observability"
	"github.com/voltgrid-network/voltgrid/internal/rewards"
	"github.com/voltgrid-network/voltgrid/internal/stations"
	"github.com/voltgrid-network/voltgrid/internal/token"
)

func sessionID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleRewardsConfig(w http.ResponseWriter, r *http.Request) {
	var resp struct {
		Oracle          string `json:"oracle"`
		TokenContract   string `json:"token_contract"`
		StationRegistry string `json:"station_registry"`
		UserRegistry    string `json:"user_registry"`
		Nonce           uint64 `json:"nonce"`
		TotalRewards    uint64 `json:"total_rewards"`
	}
	s.host.View(func(_ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) {
		resp.Oracle = string(dist.Oracle())
		resp.TokenContract, resp.StationRegistry, resp.UserRegistry = dist.Contracts()
		resp.Nonce = dist.Nonce()
		resp.TotalRewards = dist.TotalRewards()
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRewardsSetOracle(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Oracle string `json:"oracle"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("rewards.set-oracle", p, func(call domain.Call, _ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) error {
		return dist.SetOracle(call, domain.Principal(req.Oracle))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"oracle": req.Oracle})
}

// handleRewardsSetContracts updates the recorded contract bindings. Empty
// fields are left unchanged.
func (s *Server) handleRewardsSetContracts(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		TokenContract   string `json:"token_contract"`
		StationRegistry string `json:"station_registry"`
		UserRegistry    string `json:"user_registry"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("rewards.set-contracts", p, func(call domain.Call, _ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) error {
		if req.TokenContract != "" {
			if err := dist.SetTokenContract(call, req.TokenContract); err != nil {
				return err
			}
		}
		if req.StationRegistry != "" {
			if err := dist.SetStationRegistry(call, req.StationRegistry); err != nil {
				return err
			}
		}
		if req.UserRegistry != "" {
			if err := dist.SetUserRegistry(call, req.UserRegistry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSessionSubmit(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Station   string `json:"station"`
		KWh       uint64 `json:"kwh"`
		Timestamp uint64 `json:"timestamp"`
		Proof     string `json:"proof"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	proof, err := hex.DecodeString(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("proof must be hex encoded"))
		return
	}
	var id uint64
	err = s.host.Do("rewards.submit-session", p, func(call domain.Call, _ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) error {
		var err error
		id, err = dist.SubmitSession(call, domain.Principal(req.Station), req.KWh, req.Timestamp, proof)
		return err
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	observability.SessionsSubmitted.Inc()
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrInvalidSession)
		return
	}
	var sess rewards.Session
	var found bool
	s.host.View(func(_ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) {
		sess, found = dist.Session(id)
	})
	if !found {
		writeError(w, http.StatusNotFound, domain.ErrInvalidSession)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionPending(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrInvalidSession)
		return
	}
	var reward uint64
	var err error
	s.host.View(func(_ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) {
		reward, err = dist.PendingReward(id)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"pending": reward})
}

func (s *Server) handleSessionClaim(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := sessionID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrInvalidSession)
		return
	}
	var reward uint64
	err := s.host.Do("rewards.claim-reward", p, func(call domain.Call, _ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) error {
		var err error
		reward, err = dist.ClaimReward(call, id)
		return err
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	observability.SessionsClaimed.Inc()
	observability.RewardUnits.Add(float64(reward))
	writeJSON(w, http.StatusOK, map[string]uint64{"reward": reward})
}

func (s *Server) handleRewardsToday(w http.ResponseWriter, r *http.Request) {
	user := domain.Principal(chi.URLParam(r, "user"))
	height := s.host.Height()
	var amount uint64
	s.host.View(func(_ *token.Ledger, _ *stations.Registry, dist *rewards.Distributor) {
		amount = dist.RewardsToday(user, height)
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":   string(user),
		"day":    domain.Day(height),
		"amount": amount,
	})
}
