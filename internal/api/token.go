package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/rewards"
	"github.com/voltgrid-network/voltgrid/internal/stations"
	"github.com/voltgrid-network/voltgrid/internal/token"
)

// parseAmount parses a decimal token amount from a request field.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, errors.New("missing amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, errors.New("invalid amount: " + s)
	}
	return v, nil
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, r *http.Request) {
	var supply string
	var initialized bool
	s.host.View(func(tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) {
		supply = tok.TotalSupply().Dec()
		initialized = tok.Initialized()
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_supply": supply,
		"initialized":  initialized,
	})
}

func (s *Server) handleTokenOwner(w http.ResponseWriter, r *http.Request) {
	var owner domain.Principal
	s.host.View(func(tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) {
		owner = tok.Owner()
	})
	writeJSON(w, http.StatusOK, map[string]string{"owner": string(owner)})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	p := domain.Principal(chi.URLParam(r, "principal"))
	var balance string
	s.host.View(func(tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) {
		balance = tok.BalanceOf(p).Dec()
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"principal": string(p),
		"balance":   balance,
	})
}

func (s *Server) handleTokenAllowance(w http.ResponseWriter, r *http.Request) {
	owner := domain.Principal(chi.URLParam(r, "owner"))
	spender := domain.Principal(chi.URLParam(r, "spender"))
	var amount string
	s.host.View(func(tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) {
		amount = tok.AllowanceOf(owner, spender).Dec()
	})
	writeJSON(w, http.StatusOK, map[string]string{
		"owner":     string(owner),
		"spender":   string(spender),
		"allowance": amount,
	})
}

func (s *Server) handleTokenInitialize(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Supply    string `json:"supply"`
		Recipient string `json:"recipient"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	supply, err := parseAmount(req.Supply)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.host.Do("token.initialize", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.Initialize(call, supply, domain.Principal(req.Recipient))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"total_supply": supply.Dec()})
}

func (s *Server) handleTokenTransfer(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount    string `json:"amount"`
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sender := domain.Principal(req.Sender)
	if sender.Zero() {
		sender = p
	}
	err = s.host.Do("token.transfer", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.Transfer(call, amount, sender, domain.Principal(req.Recipient))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenTransferFrom(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Owner     string `json:"owner"`
		Recipient string `json:"recipient"`
		Amount    string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.host.Do("token.transfer-from", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.TransferFrom(call, domain.Principal(req.Owner), domain.Principal(req.Recipient), amount)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenApprove(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Spender string `json:"spender"`
		Amount  string `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.host.Do("token.approve", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.Approve(call, domain.Principal(req.Spender), amount)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenRevoke(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	spender := domain.Principal(chi.URLParam(r, "spender"))
	err := s.host.Do("token.revoke-allowance", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.RevokeAllowance(call, spender)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenMint(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount    string `json:"amount"`
		Recipient string `json:"recipient"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = s.host.Do("token.mint", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.Mint(call, amount, domain.Principal(req.Recipient))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenBurn(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		Amount string `json:"amount"`
		Sender string `json:"sender"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sender := domain.Principal(req.Sender)
	if sender.Zero() {
		sender = p
	}
	err = s.host.Do("token.burn", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.Burn(call, amount, sender)
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleTokenSetOwner(w http.ResponseWriter, r *http.Request) {
	p, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req struct {
		NewOwner string `json:"new_owner"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := s.host.Do("token.set-owner", p, func(call domain.Call, tok *token.Ledger, _ *stations.Registry, _ *rewards.Distributor) error {
		return tok.SetOwner(call, domain.Principal(req.NewOwner))
	})
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": req.NewOwner})
}
