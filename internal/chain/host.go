// Package chain hosts the three ledgers behind a single serializing
// executor. Every public call runs under one mutex with an explicit caller
// and the host's current block height, so each operation observes and
// mutates a consistent state, all-or-nothing.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
	"github.com/voltgrid-network/voltgrid/internal/infra/observability"
	"github.com/voltgrid-network/voltgrid/internal/infra/sqlite"
	"github.com/voltgrid-network/voltgrid/internal/rewards"
	"github.com/voltgrid-network/voltgrid/internal/stations"
	"github.com/voltgrid-network/voltgrid/internal/token"
)

// Genesis is the bootstrap state for a fresh node. Ignored when the data
// directory already holds a snapshot.
type Genesis struct {
	TokenOwner    domain.Principal
	RegistryAdmin domain.Principal
	Oracle        domain.Principal

	RegistrationFee *uint256.Int

	// InitialSupply, when non-nil and non-zero, initializes the token
	// ledger at height 0 with the supply credited to SupplyRecipient.
	InitialSupply   *uint256.Int
	SupplyRecipient domain.Principal

	// Users is the registered-user allow list.
	Users []domain.Principal

	// On-chain contract bindings reported by the distributor's reads.
	TokenContract   string
	StationContract string
	UserContract    string
}

// Host owns the ledgers and serializes every call against them.
type Host struct {
	mu     sync.Mutex
	height uint64

	token    *token.Ledger
	stations *stations.Registry
	rewards  *rewards.Distributor
	users    map[domain.Principal]bool

	db  *sqlite.DB
	log *slog.Logger
}

// New builds a host from a prior snapshot when db holds one, otherwise from
// genesis. db may be nil for an ephemeral in-memory node.
func New(g Genesis, db *sqlite.DB, log *slog.Logger) (*Host, error) {
	if log == nil {
		log = slog.Default()
	}
	h := &Host{
		users: make(map[domain.Principal]bool, len(g.Users)),
		db:    db,
		log:   log,
	}
	for _, u := range g.Users {
		h.users[u] = true
	}

	// Registration fees are a plain value movement, caller to admin, and
	// land in the settlement book. The fee rail bypasses the token ledger's
	// public transfer surface: a zero fee is a no-op, and a nonzero fee
	// does not require the ledger to be initialized. Runs only inside a
	// serialized call.
	settle := func(amount *uint256.Int, from, to domain.Principal) error {
		if amount.IsZero() {
			return nil
		}
		if err := h.token.Settle(amount, from, to); err != nil {
			return err
		}
		if h.db != nil {
			if err := h.db.AppendSettlement(sqlite.SettlementRow{
				ID:     uuid.NewString(),
				Amount: amount.Dec(),
				From:   string(from),
				To:     string(to),
				Height: h.height,
			}); err != nil {
				h.log.Warn("settlement record failed", "error", err)
			}
		}
		return nil
	}

	usersReg := domain.RegistryFunc(func(p domain.Principal) bool { return h.users[p] })
	stationsReg := domain.RegistryFunc(func(p domain.Principal) bool { return h.stations.IsRegistered(p) })

	var snap sqlite.Snapshot
	var restored bool
	if db != nil {
		var err error
		snap, restored, err = db.LoadSnapshot()
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
	}

	if restored {
		if err := h.restore(snap, settle, usersReg, stationsReg); err != nil {
			return nil, err
		}
		log.Info("state restored",
			"height", h.height,
			"stations", h.stations.TotalStations(),
			"sessions", h.rewards.Nonce())
	} else {
		h.token = token.New(g.TokenOwner)
		h.stations = stations.New(g.RegistryAdmin, g.RegistrationFee, settle)
		h.rewards = rewards.New(g.Oracle, usersReg, stationsReg, &hostMinter{h: h})
		h.rewards.RestoreState(g.TokenContract, g.StationContract, g.UserContract, 0, 0, nil, nil)

		if g.InitialSupply != nil && !g.InitialSupply.IsZero() {
			call := domain.Call{Caller: g.TokenOwner, Height: 0}
			if err := h.token.Initialize(call, g.InitialSupply, g.SupplyRecipient); err != nil {
				return nil, fmt.Errorf("genesis supply: %w", err)
			}
		}
		log.Info("genesis state created",
			"token_owner", g.TokenOwner,
			"registry_admin", g.RegistryAdmin,
			"oracle", g.Oracle,
			"users", len(g.Users))
	}

	h.publishGauges()
	return h, nil
}

// hostMinter credits claimed rewards by minting as the token owner. Only
// invoked from inside a serialized call, so it touches the ledger directly.
type hostMinter struct {
	h *Host
}

func (m *hostMinter) Mint(amount *uint256.Int, recipient domain.Principal) error {
	call := domain.Call{Caller: m.h.token.Owner(), Height: m.h.height}
	return m.h.token.Mint(call, amount, recipient)
}

// ─── Call Execution ─────────────────────────────────────────────────────────

// Do runs one public ledger call under the host lock. fn receives the call
// context (caller plus current height) and the live ledgers, and performs
// exactly one operation against them. A nil return commits: the call is
// journaled and the snapshot persisted.
func (h *Host) Do(op string, caller domain.Principal, fn func(call domain.Call, tok *token.Ledger, reg *stations.Registry, dist *rewards.Distributor) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	call := domain.Call{Caller: caller, Height: h.height}
	start := time.Now()
	err := fn(call, h.token, h.stations, h.rewards)
	observability.CallDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		observability.CallsTotal.WithLabelValues(op, "rejected").Inc()
		var derr *domain.Error
		if errors.As(err, &derr) {
			observability.CallsRejected.WithLabelValues(derr.Kind).Inc()
		}
		h.log.Info("call rejected", "op", op, "caller", caller, "height", h.height, "error", err)
		return err
	}

	observability.CallsTotal.WithLabelValues(op, "applied").Inc()
	h.log.Info("call applied", "op", op, "caller", caller, "height", h.height)

	if h.db != nil {
		if jerr := h.db.AppendJournal(sqlite.JournalRow{
			ID:         uuid.NewString(),
			Op:         op,
			Caller:     string(caller),
			Height:     h.height,
			ExecutedAt: time.Now(),
		}); jerr != nil {
			h.log.Warn("journal append failed", "op", op, "error", jerr)
		}
		if perr := h.db.SaveSnapshot(h.snapshot()); perr != nil {
			h.log.Error("snapshot persist failed", "op", op, "error", perr)
		}
	}
	h.publishGauges()
	return nil
}

// View runs fn with read access to the ledgers under the host lock. fn must
// not retain the pointers past its return.
func (h *Host) View(fn func(tok *token.Ledger, reg *stations.Registry, dist *rewards.Distributor)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(h.token, h.stations, h.rewards)
}

// Height returns the current block height.
func (h *Host) Height() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

// IsUser reports whether p is on the registered-user allow list.
func (h *Host) IsUser(p domain.Principal) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.users[p]
}

// ─── Block Clock ────────────────────────────────────────────────────────────

// AdvanceBlock increments the block height and returns the new height.
func (h *Host) AdvanceBlock() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.height++
	observability.BlockHeight.Set(float64(h.height))
	if h.db != nil {
		if err := h.db.SaveSnapshot(h.snapshot()); err != nil {
			h.log.Error("snapshot persist failed", "op", "chain.advance-block", "error", err)
		}
	}
	return h.height
}

// StartClock advances the block height every interval until ctx is done.
// One block per minute matches the day arithmetic of the reward ledgers.
func (h *Host) StartClock(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				height := h.AdvanceBlock()
				if height%domain.BlocksPerDay == 0 {
					h.log.Info("accounting day rolled", "height", height, "day", domain.Day(height))
				}
			}
		}
	}()
}

// ─── Persistence ────────────────────────────────────────────────────────────

// snapshot captures the full ledger state. Caller holds the lock.
func (h *Host) snapshot() sqlite.Snapshot {
	s := sqlite.Snapshot{
		Height: h.height,
		Token: sqlite.TokenState{
			Owner:       string(h.token.Owner()),
			Initialized: h.token.Initialized(),
			TotalSupply: h.token.TotalSupply().Dec(),
		},
		Registry: sqlite.RegistryState{
			Admin:           string(h.stations.Admin()),
			RegistrationFee: h.stations.RegistrationFee().Dec(),
			NextID:          h.stations.NextID(),
		},
	}

	for p, amount := range h.token.Balances() {
		s.Balances = append(s.Balances, sqlite.BalanceRow{Principal: string(p), Amount: amount.Dec()})
	}
	for _, row := range h.token.Allowances() {
		s.Allowances = append(s.Allowances, sqlite.AllowanceRow{
			Owner:   string(row.Owner),
			Spender: string(row.Spender),
			Amount:  row.Amount.Dec(),
		})
	}
	for _, st := range h.stations.Stations() {
		s.Stations = append(s.Stations, sqlite.StationRow{
			ID:           st.ID,
			Name:         st.Name,
			Owner:        string(st.Owner),
			Location:     st.Location,
			PowerKW:      st.PowerKW,
			PricePerKWh:  st.PricePerKWh,
			Active:       st.Active,
			RegisteredAt: st.RegisteredAt,
		})
	}

	tokenC, stationC, userC := h.rewards.Contracts()
	s.Distributor = sqlite.DistributorState{
		Oracle:          string(h.rewards.Oracle()),
		TokenContract:   tokenC,
		StationRegistry: stationC,
		UserRegistry:    userC,
		Nonce:           h.rewards.Nonce(),
		TotalRewards:    h.rewards.TotalRewards(),
	}
	for _, sess := range h.rewards.Sessions() {
		s.Sessions = append(s.Sessions, sqlite.SessionRow{
			ID:        sess.ID,
			User:      string(sess.User),
			Station:   string(sess.Station),
			KWh:       sess.KWh,
			Timestamp: sess.Timestamp,
			OffPeak:   sess.OffPeak,
			Claimed:   sess.Claimed,
			Proof:     sess.Proof,
		})
	}
	for _, b := range h.rewards.DailyBuckets() {
		s.Daily = append(s.Daily, sqlite.DailyRow{User: string(b.User), Day: b.Day, Amount: b.Amount})
	}
	return s
}

// restore rebuilds the ledgers from a persisted snapshot.
func (h *Host) restore(snap sqlite.Snapshot, settle domain.SettlementTransfer, usersReg, stationsReg domain.Registry) error {
	h.height = snap.Height

	supply, err := uint256.FromDecimal(snap.Token.TotalSupply)
	if err != nil {
		return fmt.Errorf("total supply %q: %w", snap.Token.TotalSupply, err)
	}
	balances := make(map[domain.Principal]*uint256.Int, len(snap.Balances))
	for _, b := range snap.Balances {
		amount, err := uint256.FromDecimal(b.Amount)
		if err != nil {
			return fmt.Errorf("balance %s: %w", b.Principal, err)
		}
		balances[domain.Principal(b.Principal)] = amount
	}
	allowances := make([]token.AllowanceRow, 0, len(snap.Allowances))
	for _, a := range snap.Allowances {
		amount, err := uint256.FromDecimal(a.Amount)
		if err != nil {
			return fmt.Errorf("allowance %s/%s: %w", a.Owner, a.Spender, err)
		}
		allowances = append(allowances, token.AllowanceRow{
			Owner:   domain.Principal(a.Owner),
			Spender: domain.Principal(a.Spender),
			Amount:  amount,
		})
	}
	h.token = token.Restore(domain.Principal(snap.Token.Owner), snap.Token.Initialized, supply, balances, allowances)

	fee, err := uint256.FromDecimal(snap.Registry.RegistrationFee)
	if err != nil {
		return fmt.Errorf("registration fee %q: %w", snap.Registry.RegistrationFee, err)
	}
	list := make([]stations.Station, 0, len(snap.Stations))
	for _, st := range snap.Stations {
		list = append(list, stations.Station{
			ID:           st.ID,
			Name:         st.Name,
			Owner:        domain.Principal(st.Owner),
			Location:     st.Location,
			PowerKW:      st.PowerKW,
			PricePerKWh:  st.PricePerKWh,
			Active:       st.Active,
			RegisteredAt: st.RegisteredAt,
		})
	}
	h.stations = stations.Restore(domain.Principal(snap.Registry.Admin), fee, settle, snap.Registry.NextID, list)

	sessions := make([]rewards.Session, 0, len(snap.Sessions))
	for _, sess := range snap.Sessions {
		sessions = append(sessions, rewards.Session{
			ID:        sess.ID,
			User:      domain.Principal(sess.User),
			Station:   domain.Principal(sess.Station),
			KWh:       sess.KWh,
			Timestamp: sess.Timestamp,
			OffPeak:   sess.OffPeak,
			Claimed:   sess.Claimed,
			Proof:     sess.Proof,
		})
	}
	buckets := make([]rewards.DailyBucket, 0, len(snap.Daily))
	for _, d := range snap.Daily {
		buckets = append(buckets, rewards.DailyBucket{User: domain.Principal(d.User), Day: d.Day, Amount: d.Amount})
	}
	h.rewards = rewards.New(domain.Principal(snap.Distributor.Oracle), usersReg, stationsReg, &hostMinter{h: h})
	h.rewards.RestoreState(snap.Distributor.TokenContract, snap.Distributor.StationRegistry,
		snap.Distributor.UserRegistry, snap.Distributor.Nonce, snap.Distributor.TotalRewards,
		sessions, buckets)

	return nil
}

// publishGauges refreshes the state gauges. Caller holds the lock.
func (h *Host) publishGauges() {
	observability.BlockHeight.Set(float64(h.height))
	observability.SetTokenSupply(h.token.TotalSupply())
	observability.StationsRegistered.Set(float64(h.stations.TotalStations()))
}
