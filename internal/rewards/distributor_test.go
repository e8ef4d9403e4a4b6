package rewards

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

const (
	oracleP = domain.Principal("ST1ORACLE")
	userP   = domain.Principal("ST1USER")
	stnP    = domain.Principal("ST1STATION")
	height  = uint64(1000)
)

// recordingMinter captures mints so tests can assert the credited amounts.
type recordingMinter struct {
	mints []mintRecord
	fail  error
}

type mintRecord struct {
	amount    *uint256.Int
	recipient domain.Principal
}

func (m *recordingMinter) Mint(amount *uint256.Int, recipient domain.Principal) error {
	if m.fail != nil {
		return m.fail
	}
	m.mints = append(m.mints, mintRecord{amount: amount, recipient: recipient})
	return nil
}

func as(p domain.Principal) domain.Call { return domain.Call{Caller: p, Height: height} }

func atHeight(p domain.Principal, h uint64) domain.Call { return domain.Call{Caller: p, Height: h} }

// newTestDistributor registers exactly ST1USER and ST1STATION, mirroring the
// oracle fixtures.
func newTestDistributor() (*Distributor, *recordingMinter) {
	known := domain.RegistryFunc(func(p domain.Principal) bool {
		return p == userP || p == stnP
	})
	m := &recordingMinter{}
	return New(oracleP, known, known, m), m
}

// submit is a helper that submits a correctly proven session.
func submit(t *testing.T, d *Distributor, kwh, timestamp uint64) uint64 {
	t.Helper()
	proof := domain.SessionDigest(d.Nonce(), userP, stnP, kwh, timestamp, height)
	id, err := d.SubmitSession(as(userP), stnP, kwh, timestamp, proof)
	if err != nil {
		t.Fatalf("SubmitSession(kwh=%d, ts=%d) error: %v", kwh, timestamp, err)
	}
	return id
}

// ─── Configuration ──────────────────────────────────────────────────────────

func TestConfigSetters_OracleGated(t *testing.T) {
	d, _ := newTestDistributor()

	if err := d.SetTokenContract(as("ST2HACKER"), "evil.token"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("SetTokenContract() by stranger = %v, want ErrUnauthorized", err)
	}
	if err := d.SetTokenContract(as(oracleP), "energy-token"); err != nil {
		t.Fatalf("SetTokenContract() error: %v", err)
	}
	if err := d.SetStationRegistry(as(oracleP), "station-registry"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetUserRegistry(as(oracleP), "user-registry"); err != nil {
		t.Fatal(err)
	}

	tok, stn, usr := d.Contracts()
	if tok != "energy-token" || stn != "station-registry" || usr != "user-registry" {
		t.Errorf("Contracts() = (%q, %q, %q)", tok, stn, usr)
	}
}

func TestSetOracle_Rotation(t *testing.T) {
	d, _ := newTestDistributor()

	if err := d.SetOracle(as(oracleP), "ST2ORACLE"); err != nil {
		t.Fatalf("SetOracle() error: %v", err)
	}
	if d.Oracle() != "ST2ORACLE" {
		t.Errorf("Oracle() = %q, want ST2ORACLE", d.Oracle())
	}
	// The old oracle is out.
	if err := d.SetOracle(as(oracleP), oracleP); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("SetOracle() by former oracle = %v, want ErrUnauthorized", err)
	}
}

func TestConfigSetters_NoOracle(t *testing.T) {
	known := domain.RegistryFunc(func(domain.Principal) bool { return true })
	d := New("", known, known, &recordingMinter{})

	if err := d.SetOracle(as(oracleP), oracleP); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("SetOracle() with unset oracle = %v, want ErrUnauthorized", err)
	}
}

// ─── Submission ─────────────────────────────────────────────────────────────

func TestSubmitSession(t *testing.T) {
	d, _ := newTestDistributor()

	id := submit(t, d, 100, 900)
	if id != 0 {
		t.Errorf("first session id = %d, want 0", id)
	}
	if d.Nonce() != 1 {
		t.Errorf("nonce after submit = %d, want 1", d.Nonce())
	}

	s, ok := d.Session(0)
	if !ok {
		t.Fatal("Session(0) not found")
	}
	if s.User != userP || s.Station != stnP || s.KWh != 100 || s.Timestamp != 900 {
		t.Errorf("unexpected session: %+v", s)
	}
	if s.OffPeak {
		// timestamp 900 is hour 15, on-peak
		t.Error("session marked off-peak, want on-peak")
	}
	if s.Claimed {
		t.Error("fresh session marked claimed")
	}
}

func TestSubmitSession_NoOracle(t *testing.T) {
	known := domain.RegistryFunc(func(domain.Principal) bool { return true })
	d := New("", known, known, &recordingMinter{})

	proof := domain.SessionDigest(0, userP, stnP, 100, 900, height)
	_, err := d.SubmitSession(as(userP), stnP, 100, 900, proof)
	if !errors.Is(err, domain.ErrOracleNotSet) {
		t.Errorf("SubmitSession() = %v, want ErrOracleNotSet", err)
	}
}

func TestSubmitSession_UnregisteredUser(t *testing.T) {
	d, _ := newTestDistributor()
	proof := domain.SessionDigest(0, "ST3UNKNOWN", stnP, 100, 900, height)

	_, err := d.SubmitSession(as("ST3UNKNOWN"), stnP, 100, 900, proof)
	if !errors.Is(err, domain.ErrUserNotRegistered) {
		t.Errorf("SubmitSession() = %v, want ErrUserNotRegistered", err)
	}
}

func TestSubmitSession_UnregisteredStation(t *testing.T) {
	d, _ := newTestDistributor()
	proof := domain.SessionDigest(0, userP, "ST3NOWHERE", 100, 900, height)

	_, err := d.SubmitSession(as(userP), "ST3NOWHERE", 100, 900, proof)
	if !errors.Is(err, domain.ErrStationNotRegistered) {
		t.Errorf("SubmitSession() = %v, want ErrStationNotRegistered", err)
	}
}

func TestSubmitSession_KWhBounds(t *testing.T) {
	tests := []struct {
		name string
		kwh  uint64
		ok   bool
	}{
		{"zero", 0, false},
		{"one", 1, true},
		{"limit", 500, true},
		{"over limit", 501, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDistributor()
			proof := domain.SessionDigest(0, userP, stnP, tt.kwh, 900, height)
			_, err := d.SubmitSession(as(userP), stnP, tt.kwh, 900, proof)
			if tt.ok && err != nil {
				t.Errorf("SubmitSession(kwh=%d) = %v, want nil", tt.kwh, err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidAmount) {
				t.Errorf("SubmitSession(kwh=%d) = %v, want ErrInvalidAmount", tt.kwh, err)
			}
		})
	}
}

func TestSubmitSession_TimestampWindow(t *testing.T) {
	const callHeight = uint64(3000)
	tests := []struct {
		name string
		ts   uint64
		ok   bool
	}{
		{"window start", callHeight - domain.BlocksPerDay, true},
		{"just before window", callHeight - domain.BlocksPerDay - 1, false},
		{"current height", callHeight, true},
		{"future", callHeight + 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDistributor()
			proof := domain.SessionDigest(0, userP, stnP, 100, tt.ts, callHeight)
			_, err := d.SubmitSession(atHeight(userP, callHeight), stnP, 100, tt.ts, proof)
			if tt.ok && err != nil {
				t.Errorf("SubmitSession(ts=%d) = %v, want nil", tt.ts, err)
			}
			if !tt.ok && !errors.Is(err, domain.ErrInvalidTimestamp) {
				t.Errorf("SubmitSession(ts=%d) = %v, want ErrInvalidTimestamp", tt.ts, err)
			}
		})
	}
}

func TestSubmitSession_InvalidProof(t *testing.T) {
	d, _ := newTestDistributor()

	_, err := d.SubmitSession(as(userP), stnP, 100, 900, make([]byte, domain.ProofSize))
	if !errors.Is(err, domain.ErrInvalidProof) {
		t.Errorf("SubmitSession() with zero proof = %v, want ErrInvalidProof", err)
	}
}

func TestSubmitSession_ProofReplay(t *testing.T) {
	d, _ := newTestDistributor()
	proof := domain.SessionDigest(0, userP, stnP, 100, 900, height)

	// Valid at nonce 0, height 1000.
	if _, err := d.SubmitSession(as(userP), stnP, 100, 900, proof); err != nil {
		t.Fatalf("first SubmitSession() error: %v", err)
	}
	// Replay against nonce 1: rejected.
	if _, err := d.SubmitSession(as(userP), stnP, 100, 900, proof); !errors.Is(err, domain.ErrInvalidProof) {
		t.Errorf("replayed proof at next nonce = %v, want ErrInvalidProof", err)
	}

	// A fresh distributor puts the nonce back to 0, but a height change
	// still kills the replay.
	d2, _ := newTestDistributor()
	if _, err := d2.SubmitSession(atHeight(userP, height+1), stnP, 100, 900, proof); !errors.Is(err, domain.ErrInvalidProof) {
		t.Errorf("replayed proof at other height = %v, want ErrInvalidProof", err)
	}
}

// ─── Claiming ───────────────────────────────────────────────────────────────

func TestClaimReward_OnPeak(t *testing.T) {
	d, m := newTestDistributor()
	id := submit(t, d, 100, 720) // noon, on-peak

	reward, err := d.ClaimReward(as(userP), id)
	if err != nil {
		t.Fatalf("ClaimReward() error: %v", err)
	}
	// 100 kWh * 100 * 50 / 100 = 5000
	if reward != 5000 {
		t.Errorf("reward = %d, want 5000", reward)
	}
	if len(m.mints) != 1 {
		t.Fatalf("mints = %d, want 1", len(m.mints))
	}
	if !m.mints[0].amount.Eq(uint256.NewInt(5000)) || m.mints[0].recipient != userP {
		t.Errorf("mint = %s to %s", m.mints[0].amount.Dec(), m.mints[0].recipient)
	}
	if d.TotalRewards() != 5000 {
		t.Errorf("TotalRewards() = %d, want 5000", d.TotalRewards())
	}
	if got := d.RewardsToday(userP, height); got != 5000 {
		t.Errorf("RewardsToday() = %d, want 5000", got)
	}
}

func TestClaimReward_OffPeakMultiplier(t *testing.T) {
	d, _ := newTestDistributor()
	id := submit(t, d, 20, 120) // 2am, off-peak

	reward, err := d.ClaimReward(as(userP), id)
	if err != nil {
		t.Fatalf("ClaimReward() error: %v", err)
	}
	// 20 kWh * 100 * 200 / 100 = 4000: off-peak pays four times on-peak.
	if reward != 4000 {
		t.Errorf("reward = %d, want 4000", reward)
	}
}

func TestClaimReward_NonOwner(t *testing.T) {
	d, _ := newTestDistributor()
	id := submit(t, d, 100, 900)

	_, err := d.ClaimReward(as("ST2HACKER"), id)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("ClaimReward() by stranger = %v, want ErrUnauthorized", err)
	}
}

func TestClaimReward_MissingSession(t *testing.T) {
	d, _ := newTestDistributor()
	if _, err := d.ClaimReward(as(userP), 42); !errors.Is(err, domain.ErrInvalidSession) {
		t.Errorf("ClaimReward(42) = %v, want ErrInvalidSession", err)
	}
}

func TestClaimReward_Twice(t *testing.T) {
	d, m := newTestDistributor()
	id := submit(t, d, 100, 900)

	if _, err := d.ClaimReward(as(userP), id); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ClaimReward(as(userP), id); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("second ClaimReward() = %v, want ErrAlreadyClaimed", err)
	}
	if len(m.mints) != 1 {
		t.Errorf("mints after double claim = %d, want 1", len(m.mints))
	}
}

func TestClaimReward_DailyCap(t *testing.T) {
	d, _ := newTestDistributor()

	// 500 kWh off-peak (2am) pays 500*100*200/100 = 100000, way past the
	// 10000 cap.
	id := submit(t, d, 500, 120)
	s, _ := d.Session(id)
	if s.Reward() != 100000 {
		t.Fatalf("off-peak 500kWh reward = %d, want 100000", s.Reward())
	}
	if _, err := d.ClaimReward(as(userP), id); !errors.Is(err, domain.ErrMaxRewardExceeded) {
		t.Errorf("over-cap ClaimReward() = %v, want ErrMaxRewardExceeded", err)
	}

	// The rejected claim left everything untouched.
	if got := d.RewardsToday(userP, height); got != 0 {
		t.Errorf("bucket after rejected claim = %d, want 0", got)
	}
	if s, _ := d.Session(id); s.Claimed {
		t.Error("rejected claim marked the session claimed")
	}
}

func TestClaimReward_CapAccumulates(t *testing.T) {
	d, _ := newTestDistributor()

	// 100 kWh on-peak = 5000. Claim it, then a second 100 kWh on-peak claim
	// (another 5000) exactly reaches the cap and is allowed.
	first := submit(t, d, 100, 720)
	if _, err := d.ClaimReward(as(userP), first); err != nil {
		t.Fatal(err)
	}
	second := submit(t, d, 100, 721)
	if _, err := d.ClaimReward(as(userP), second); err != nil {
		t.Fatalf("claim exactly reaching the cap = %v, want nil", err)
	}
	if got := d.RewardsToday(userP, height); got != 10000 {
		t.Errorf("bucket = %d, want 10000", got)
	}

	// One more unit over the cap is rejected.
	third := submit(t, d, 1, 722)
	if _, err := d.ClaimReward(as(userP), third); !errors.Is(err, domain.ErrMaxRewardExceeded) {
		t.Errorf("claim past the cap = %v, want ErrMaxRewardExceeded", err)
	}
	if got := d.RewardsToday(userP, height); got != 10000 {
		t.Errorf("bucket after rejection = %d, want 10000 (unchanged)", got)
	}
}

func TestClaimReward_CapResetsNextDay(t *testing.T) {
	d, _ := newTestDistributor()
	first := submit(t, d, 100, 720)
	second := submit(t, d, 100, 721)

	if _, err := d.ClaimReward(as(userP), first); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ClaimReward(as(userP), second); err != nil {
		t.Fatal(err)
	}

	// The next day is a fresh bucket.
	nextDay := (domain.Day(height) + 1) * domain.BlocksPerDay
	if got := d.RewardsToday(userP, nextDay); got != 0 {
		t.Errorf("next-day bucket = %d, want 0", got)
	}
}

func TestClaimReward_MintFailureRollsBack(t *testing.T) {
	d, m := newTestDistributor()
	id := submit(t, d, 100, 900)

	m.fail = errors.New("token ledger says no")
	if _, err := d.ClaimReward(as(userP), id); !errors.Is(err, domain.ErrMintFailed) {
		t.Fatalf("ClaimReward() with failing mint = %v, want ErrMintFailed", err)
	}

	// Nothing committed: the session is still claimable once minting works.
	if s, _ := d.Session(id); s.Claimed {
		t.Error("failed mint left the session claimed")
	}
	if got := d.RewardsToday(userP, height); got != 0 {
		t.Errorf("failed mint left bucket = %d, want 0", got)
	}

	m.fail = nil
	if _, err := d.ClaimReward(as(userP), id); err != nil {
		t.Errorf("retry after mint recovery = %v, want nil", err)
	}
	if len(m.mints) != 1 {
		t.Errorf("mints = %d, want exactly 1", len(m.mints))
	}
}

// ─── Pending Preview ────────────────────────────────────────────────────────

func TestPendingReward(t *testing.T) {
	d, _ := newTestDistributor()
	id := submit(t, d, 100, 720)

	got, err := d.PendingReward(id)
	if err != nil {
		t.Fatalf("PendingReward() error: %v", err)
	}
	if got != 5000 {
		t.Errorf("PendingReward() = %d, want 5000", got)
	}

	d.ClaimReward(as(userP), id)
	if _, err := d.PendingReward(id); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("PendingReward() after claim = %v, want ErrAlreadyClaimed", err)
	}
}

func TestPendingReward_MissingSession(t *testing.T) {
	// The contract reuses AlreadyClaimed for "no such session" here. Odd,
	// but load-bearing for callers, so pin it.
	d, _ := newTestDistributor()
	if _, err := d.PendingReward(99); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("PendingReward(99) = %v, want ErrAlreadyClaimed", err)
	}
}

// ─── Restore ────────────────────────────────────────────────────────────────

func TestRestoreState_RoundTrip(t *testing.T) {
	d, _ := newTestDistributor()
	d.SetTokenContract(as(oracleP), "energy-token")
	claimed := submit(t, d, 100, 720)
	d.ClaimReward(as(userP), claimed)
	open := submit(t, d, 50, 120)

	known := domain.RegistryFunc(func(p domain.Principal) bool {
		return p == userP || p == stnP
	})
	m := &recordingMinter{}
	r := New(d.Oracle(), known, known, m)
	tok, stn, usr := d.Contracts()
	r.RestoreState(tok, stn, usr, d.Nonce(), d.TotalRewards(), d.Sessions(), d.DailyBuckets())

	if r.Nonce() != 2 {
		t.Errorf("restored nonce = %d, want 2", r.Nonce())
	}
	if r.TotalRewards() != 5000 {
		t.Errorf("restored totalRewards = %d, want 5000", r.TotalRewards())
	}
	if got := r.RewardsToday(userP, height); got != 5000 {
		t.Errorf("restored bucket = %d, want 5000", got)
	}
	if _, err := r.ClaimReward(as(userP), claimed); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("re-claim of restored claimed session = %v, want ErrAlreadyClaimed", err)
	}
	if _, err := r.ClaimReward(as(userP), open); err != nil {
		t.Errorf("claim of restored open session = %v, want nil", err)
	}
}
