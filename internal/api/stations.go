package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/rewards"
	"github.com/voltgrid-network/voltgrid/internal/stations"
	"github.com/voltgrid-network/voltgrid/internal/token"
)

// stationRequest is the write shape shared by register and update.
type stationRequest struct {
	Name        string `json:"name"`
	Location    string `json:"location"`
	PowerKW     uint64 `json:"power_kw"`
	PricePerKWh uint64 `json:"price_per_kwh"`
}

func stationID(r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (s *Server) handleStationList(w http.ResponseWriter, r *http.Request) {
	var list []stations.Station
	var total uint64
	s.host.View(func(_ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) {
		list = reg.Stations()
		total = reg.TotalStations()
	})
	if list == nil {
		list = []stations.Station{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    total,
		"stations": list,
	})
}

func (s *Server) handleStationGet(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	var st stations.Station
	var found bool
	s.host.View(func(_ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) {
		st, found = reg.Get(id)
	})
	if !found {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleStationRegister(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req stationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var id uint64
	err := s.host.Do("stations.register", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		var err error
		id, err = reg.Register(call, req.Name, req.Location, req.PowerKW, req.PricePerKWh)
		return err
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

func (s *Server) handleStationUpdate(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := stationID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	var req stationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("stations.update", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.Update(call, id, req.Name, req.Location, req.PowerKW, req.PricePerKWh)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStationToggle(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := stationID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	err := s.host.Do("stations.toggle-status", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.ToggleStatus(call, id)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	var st stations.Station
	s.host.View(func(_ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) {
		st, _ = reg.Get(id)
	})
	writeJSON(w, http.StatusOK, map[string]bool{"active": st.Active})
}

func (s *Server) handleStationTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := stationID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	var req struct {
		NewOwner string `json:"new_owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("stations.transfer-ownership", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.TransferOwnership(call, id, domain.Principal(req.NewOwner))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStationDeregister(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := stationID(r)
	if !ok {
		writeError(w, http.StatusNotFound, domain.ErrNotRegistered)
		return
	}
	err := s.host.Do("stations.deregister", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.Deregister(call, id)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleStationFee(w http.ResponseWriter, r *http.Request) {
	var fee string
	s.host.View(func(_ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) {
		fee = reg.RegistrationFee().Dec()
	})
	writeJSON(w, http.StatusOK, map[string]string{"registration_fee": fee})
}

func (s *Server) handleStationSetFee(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Fee string `json:"fee"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	fee, err := parseAmount(req.Fee)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.host.Do("stations.set-registration-fee", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.SetRegistrationFee(call, fee)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"registration_fee": fee.Dec()})
}

func (s *Server) handleStationSetAdmin(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		NewAdmin string `json:"new_admin"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("stations.set-admin", p, func(call domain.Call, _ *token.Ledger, reg *stations.Registry, _ *rewards.Distributor) error {
		return reg.SetAdmin(call, domain.Principal(req.NewAdmin))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"admin": req.NewAdmin})
}
