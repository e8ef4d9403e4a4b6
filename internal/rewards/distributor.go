// Package rewards implements the usage-based rewards distributor: charging
// sessions are submitted with an oracle-bound proof, then claimed exactly
// once by their user, under a rolling per-user daily cap.
//
// Session lifecycle is a two-state machine: Submitted, then Claimed. Claimed is
// terminal. The session nonce is strictly monotonic and doubles as the
// session id; because the proof digest covers the nonce and the submission
// height, no proof is ever valid twice.
package rewards

import (
	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

// Reward parameters. A kWh earns BaseRate units before the time-of-use
// multiplier; off-peak energy pays four times the on-peak rate.
const (
	BaseRate          = 100
	OffPeakMultiplier = 200
	OnPeakMultiplier  = 50
	MultiplierScale   = 100

	// MaxKWhPerSession bounds a single session's energy.
	MaxKWhPerSession = 500

	// DailyRewardCap is the most a user can be credited per accounting day.
	DailyRewardCap = 10000
)

// Session is a submitted charging session. Immutable after submission except
// for the Claimed flag, which is set exactly once.
type Session struct {
	ID        uint64           `json:"id"`
	User      domain.Principal `json:"user"`
	Station   domain.Principal `json:"station"`
	KWh       uint64           `json:"kwh"`
	Timestamp uint64           `json:"timestamp"`
	OffPeak   bool             `json:"off_peak"`
	Claimed   bool             `json:"claimed"`
	Proof     []byte           `json:"proof"`
}

// Reward computes the session's reward value from its energy and tariff
// window.
func (s *Session) Reward() uint64 {
	multiplier := uint64(OnPeakMultiplier)
	if s.OffPeak {
		multiplier = OffPeakMultiplier
	}
	return s.KWh * BaseRate * multiplier / MultiplierScale
}

// DailyBucket is one (user, day) row of cumulative credited reward, for
// persistence snapshots.
type DailyBucket struct {
	User   domain.Principal
	Day    uint64
	Amount uint64
}

type dayKey struct {
	user domain.Principal
	day  uint64
}

// Distributor holds the complete rewards state.
type Distributor struct {
	oracle domain.Principal

	// Contract bindings, as recorded on chain. The host wires the live
	// collaborators below; these strings are what the oracle-gated setters
	// mutate and what reads report.
	tokenContract   string
	stationContract string
	userContract    string

	users    domain.Registry
	stations domain.Registry
	minter   domain.Minter

	nonce        uint64
	totalRewards uint64
	sessions     map[uint64]*Session
	daily        map[dayKey]uint64
}

// New creates a distributor. The oracle is fixed at genesis (it must exist
// before the first submission; rotation afterwards goes through SetOracle).
// users and stationsReg are the registration predicates; minter credits
// claimed rewards.
func New(oracle domain.Principal, users, stationsReg domain.Registry, minter domain.Minter) *Distributor {
	return &Distributor{
		oracle:   oracle,
		users:    users,
		stations: stationsReg,
		minter:   minter,
		sessions: make(map[uint64]*Session),
		daily:    make(map[dayKey]uint64),
	}
}

// ─── Configuration ──────────────────────────────────────────────────────────
// Every setter is oracle-gated: no oracle, or a caller other than the
// oracle, means Unauthorized.

func (d *Distributor) gate(call domain.Call) error {
	if d.oracle.Zero() || call.Caller != d.oracle {
		return domain.ErrUnauthorized
	}
	return nil
}

// SetOracle rotates the oracle identity.
func (d *Distributor) SetOracle(call domain.Call, newOracle domain.Principal) error {
	if err := d.gate(call); err != nil {
		return err
	}
	d.oracle = newOracle
	return nil
}

// SetTokenContract records the token ledger binding.
func (d *Distributor) SetTokenContract(call domain.Call, contract string) error {
	if err := d.gate(call); err != nil {
		return err
	}
	d.tokenContract = contract
	return nil
}

// SetStationRegistry records the station registry binding.
func (d *Distributor) SetStationRegistry(call domain.Call, contract string) error {
	if err := d.gate(call); err != nil {
		return err
	}
	d.stationContract = contract
	return nil
}

// SetUserRegistry records the user registry binding.
func (d *Distributor) SetUserRegistry(call domain.Call, contract string) error {
	if err := d.gate(call); err != nil {
		return err
	}
	d.userContract = contract
	return nil
}

// ─── Session Lifecycle ──────────────────────────────────────────────────────

// SubmitSession validates and records a charging session for the caller,
// returning the assigned session id. The proof must be the oracle digest
// over (nonce, caller, station, kwh, timestamp, current height); see
// domain.SessionDigest.
func (d *Distributor) SubmitSession(call domain.Call, station domain.Principal, kwh, timestamp uint64, proof []byte) (uint64, error) {
	if d.oracle.Zero() {
		return 0, domain.ErrOracleNotSet
	}
	if !d.users.IsRegistered(call.Caller) {
		return 0, domain.ErrUserNotRegistered
	}
	if !d.stations.IsRegistered(station) {
		return 0, domain.ErrStationNotRegistered
	}
	if kwh == 0 || kwh > MaxKWhPerSession {
		return 0, domain.ErrInvalidAmount
	}
	// The session must sit inside the trailing one-day window and not in
	// the future. Written addition-side to stay safe near height zero.
	if timestamp+domain.BlocksPerDay < call.Height || timestamp > call.Height {
		return 0, domain.ErrInvalidTimestamp
	}
	if !domain.VerifySessionProof(proof, d.nonce, call.Caller, station, kwh, timestamp, call.Height) {
		return 0, domain.ErrInvalidProof
	}

	id := d.nonce
	stored := make([]byte, len(proof))
	copy(stored, proof)
	d.sessions[id] = &Session{
		ID:        id,
		User:      call.Caller,
		Station:   station,
		KWh:       kwh,
		Timestamp: timestamp,
		OffPeak:   domain.OffPeak(timestamp),
		Proof:     stored,
	}
	d.nonce++
	return id, nil
}

// ClaimReward pays out a submitted session to its user. At most once per
// session; the daily cap, the claimed flag, and the mint commit together or
// not at all. A failed mint leaves the session claimable and the bucket
// untouched, so a retry cannot double-credit.
func (d *Distributor) ClaimReward(call domain.Call, sessionID uint64) (uint64, error) {
	s, ok := d.sessions[sessionID]
	if !ok {
		return 0, domain.ErrInvalidSession
	}
	if s.User != call.Caller {
		return 0, domain.ErrUnauthorized
	}
	if s.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}

	reward := s.Reward()
	key := dayKey{user: s.User, day: domain.Day(call.Height)}
	if d.daily[key]+reward > DailyRewardCap {
		return 0, domain.ErrMaxRewardExceeded
	}

	if err := d.minter.Mint(uint256.NewInt(reward), s.User); err != nil {
		return 0, domain.ErrMintFailed
	}

	d.daily[key] += reward
	s.Claimed = true
	d.totalRewards += reward
	return reward, nil
}

// PendingReward previews a session's payout without touching state.
//
// A missing session reports AlreadyClaimed, the same code as a spent one.
// That ambiguity ships in the deployed contract and callers depend on it, so
// it stays.
func (d *Distributor) PendingReward(sessionID uint64) (uint64, error) {
	s, ok := d.sessions[sessionID]
	if !ok || s.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}
	return s.Reward(), nil
}

// RewardsToday returns the cumulative reward credited to user on the day
// containing height.
func (d *Distributor) RewardsToday(user domain.Principal, height uint64) uint64 {
	return d.daily[dayKey{user: user, day: domain.Day(height)}]
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// Session returns a copy of the session with the given id.
func (d *Distributor) Session(id uint64) (Session, bool) {
	s, ok := d.sessions[id]
	if !ok {
		return Session{}, false
	}
	out := *s
	out.Proof = append([]byte(nil), s.Proof...)
	return out, true
}

// Oracle returns the current oracle identity (empty if unset).
func (d *Distributor) Oracle() domain.Principal { return d.oracle }

// Nonce returns the next session id to be assigned.
func (d *Distributor) Nonce() uint64 { return d.nonce }

// TotalRewards returns the sum of all rewards ever claimed.
func (d *Distributor) TotalRewards() uint64 { return d.totalRewards }

// Contracts returns the recorded contract bindings
// (token, station registry, user registry).
func (d *Distributor) Contracts() (string, string, string) {
	return d.tokenContract, d.stationContract, d.userContract
}

// Sessions returns a copy of every session row, for persistence snapshots.
func (d *Distributor) Sessions() []Session {
	out := make([]Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		c := *s
		c.Proof = append([]byte(nil), s.Proof...)
		out = append(out, c)
	}
	return out
}

// DailyBuckets returns a copy of every (user, day) reward row, for
// persistence snapshots.
func (d *Distributor) DailyBuckets() []DailyBucket {
	out := make([]DailyBucket, 0, len(d.daily))
	for k, v := range d.daily {
		out = append(out, DailyBucket{User: k.user, Day: k.day, Amount: v})
	}
	return out
}

// ─── Restore ────────────────────────────────────────────────────────────────

// RestoreState rehydrates persisted distributor state onto a freshly
// constructed distributor (collaborators are wired by New and are not part
// of persisted state).
func (d *Distributor) RestoreState(tokenContract, stationContract, userContract string,
	nonce, totalRewards uint64, sessions []Session, buckets []DailyBucket) {

	d.tokenContract = tokenContract
	d.stationContract = stationContract
	d.userContract = userContract
	d.nonce = nonce
	d.totalRewards = totalRewards
	for _, s := range sessions {
		c := s
		c.Proof = append([]byte(nil), s.Proof...)
		d.sessions[c.ID] = &c
	}
	for _, b := range buckets {
		d.daily[dayKey{user: b.User, day: b.Day}] = b.Amount
	}
}
