package sqlite

import (
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleSnapshot() Snapshot {
	return Snapshot{
		Height: 2881,
		Token: TokenState{
			Owner:       "ST1OWNER",
			Initialized: true,
			TotalSupply: "1000000",
		},
		Balances: []BalanceRow{
			{Principal: "ST1ALICE", Amount: "600000"},
			{Principal: "ST1BOB", Amount: "400000"},
			{Principal: "ST1EMPTY", Amount: "0"},
		},
		Allowances: []AllowanceRow{
			{Owner: "ST1ALICE", Spender: "ST1BOB", Amount: "0"},
		},
		Registry: RegistryState{
			Admin:           "ST1ADMIN",
			RegistrationFee: "100",
			NextID:          3,
		},
		Stations: []StationRow{
			{ID: 1, Name: "Downtown Fast Charge", Owner: "ST1ALICE",
				Location: "123 Main St", PowerKW: 150, PricePerKWh: 45,
				Active: true, RegisteredAt: 12},
			{ID: 2, Name: "Airport Hub", Owner: "ST1BOB",
				Location: "1 Terminal Rd", PowerKW: 350, PricePerKWh: 60,
				Active: false, RegisteredAt: 30},
		},
		Distributor: DistributorState{
			Oracle:          "ST1ORACLE",
			TokenContract:   "ST1OWNER.energy-token",
			StationRegistry: "ST1OWNER.station-registry",
			UserRegistry:    "ST1OWNER.user-registry",
			Nonce:           2,
			TotalRewards:    5000,
		},
		Sessions: []SessionRow{
			{ID: 0, User: "ST1ALICE", Station: "ST1BOB", KWh: 25,
				Timestamp: 120, OffPeak: true, Claimed: true,
				Proof: []byte("0123456789abcdef0123456789abcdef")},
			{ID: 1, User: "ST1ALICE", Station: "ST1BOB", KWh: 40,
				Timestamp: 900, OffPeak: false, Claimed: false,
				Proof: []byte("fedcba9876543210fedcba9876543210")},
		},
		Daily: []DailyRow{
			{User: "ST1ALICE", Day: 2, Amount: 5000},
		},
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	db := newTestDB(t)

	_, ok, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if ok {
		t.Fatal("LoadSnapshot() on fresh database reported a snapshot")
	}

	want := sampleSnapshot()
	if err := db.SaveSnapshot(want); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, ok, err := db.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if !ok {
		t.Fatal("LoadSnapshot() found no snapshot after save")
	}

	if got.Height != want.Height {
		t.Errorf("Height = %d, want %d", got.Height, want.Height)
	}
	if got.Token != want.Token {
		t.Errorf("Token = %+v, want %+v", got.Token, want.Token)
	}
	if len(got.Balances) != len(want.Balances) {
		t.Fatalf("len(Balances) = %d, want %d", len(got.Balances), len(want.Balances))
	}
	if len(got.Allowances) != 1 || got.Allowances[0] != want.Allowances[0] {
		t.Errorf("Allowances = %+v, want %+v", got.Allowances, want.Allowances)
	}
	if got.Registry != want.Registry {
		t.Errorf("Registry = %+v, want %+v", got.Registry, want.Registry)
	}
	if len(got.Stations) != 2 {
		t.Fatalf("len(Stations) = %d, want 2", len(got.Stations))
	}
	if got.Stations[0] != want.Stations[0] || got.Stations[1] != want.Stations[1] {
		t.Errorf("Stations = %+v, want %+v", got.Stations, want.Stations)
	}
	if got.Distributor != want.Distributor {
		t.Errorf("Distributor = %+v, want %+v", got.Distributor, want.Distributor)
	}
	if len(got.Sessions) != 2 {
		t.Fatalf("len(Sessions) = %d, want 2", len(got.Sessions))
	}
	for i := range got.Sessions {
		g, w := got.Sessions[i], want.Sessions[i]
		if g.ID != w.ID || g.User != w.User || g.Station != w.Station ||
			g.KWh != w.KWh || g.Timestamp != w.Timestamp ||
			g.OffPeak != w.OffPeak || g.Claimed != w.Claimed ||
			string(g.Proof) != string(w.Proof) {
			t.Errorf("Sessions[%d] = %+v, want %+v", i, g, w)
		}
	}
	if len(got.Daily) != 1 || got.Daily[0] != want.Daily[0] {
		t.Errorf("Daily = %+v, want %+v", got.Daily, want.Daily)
	}
}

func TestSnapshotDuplicateOwner(t *testing.T) {
	// Ownership transfer can leave one principal owning two stations; the
	// schema must accept and round-trip that state.
	db := newTestDB(t)

	s := sampleSnapshot()
	for i := range s.Stations {
		s.Stations[i].Owner = "ST1BOB"
	}
	if err := db.SaveSnapshot(s); err != nil {
		t.Fatalf("SaveSnapshot() with duplicate owner error = %v", err)
	}

	got, ok, err := db.LoadSnapshot()
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot() = ok %v, err %v", ok, err)
	}
	if len(got.Stations) != 2 {
		t.Fatalf("len(Stations) = %d, want 2", len(got.Stations))
	}
	for i, st := range got.Stations {
		if st.Owner != "ST1BOB" {
			t.Errorf("Stations[%d].Owner = %s, want ST1BOB", i, st.Owner)
		}
	}
}

func TestSaveSnapshotReplacesRows(t *testing.T) {
	db := newTestDB(t)

	first := sampleSnapshot()
	if err := db.SaveSnapshot(first); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	second := sampleSnapshot()
	second.Height = 3000
	second.Balances = []BalanceRow{{Principal: "ST1CAROL", Amount: "1000000"}}
	second.Stations = second.Stations[:1]
	second.Sessions = nil
	if err := db.SaveSnapshot(second); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	got, ok, err := db.LoadSnapshot()
	if err != nil || !ok {
		t.Fatalf("LoadSnapshot() = ok %v, err %v", ok, err)
	}
	if got.Height != 3000 {
		t.Errorf("Height = %d, want 3000", got.Height)
	}
	if len(got.Balances) != 1 || got.Balances[0].Principal != "ST1CAROL" {
		t.Errorf("Balances = %+v, want single ST1CAROL row", got.Balances)
	}
	if len(got.Stations) != 1 {
		t.Errorf("len(Stations) = %d, want 1", len(got.Stations))
	}
	if len(got.Sessions) != 0 {
		t.Errorf("len(Sessions) = %d, want 0", len(got.Sessions))
	}
}

func TestJournal(t *testing.T) {
	db := newTestDB(t)

	n, err := db.JournalCount()
	if err != nil {
		t.Fatalf("JournalCount() error = %v", err)
	}
	if n != 0 {
		t.Errorf("JournalCount() = %d, want 0", n)
	}

	base := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	entries := []JournalRow{
		{ID: "j-1", Op: "token.transfer", Caller: "ST1ALICE", Height: 10, ExecutedAt: base},
		{ID: "j-2", Op: "rewards.submit-session", Caller: "ST1ORACLE", Height: 11, ExecutedAt: base.Add(time.Minute)},
		{ID: "j-3", Op: "rewards.claim-reward", Caller: "ST1ALICE", Height: 12, ExecutedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := db.AppendJournal(e); err != nil {
			t.Fatalf("AppendJournal(%s) error = %v", e.ID, err)
		}
	}

	n, err = db.JournalCount()
	if err != nil {
		t.Fatalf("JournalCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("JournalCount() = %d, want 3", n)
	}

	recent, err := db.RecentJournal(2)
	if err != nil {
		t.Fatalf("RecentJournal() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("len(RecentJournal(2)) = %d, want 2", len(recent))
	}
	if recent[0].ID != "j-3" || recent[1].ID != "j-2" {
		t.Errorf("RecentJournal order = [%s %s], want [j-3 j-2]", recent[0].ID, recent[1].ID)
	}
	if recent[0].Op != "rewards.claim-reward" || recent[0].Height != 12 {
		t.Errorf("recent[0] = %+v", recent[0])
	}
}

func TestSettlements(t *testing.T) {
	db := newTestDB(t)

	rows := []SettlementRow{
		{ID: "s-1", Amount: "100", From: "ST1ALICE", To: "ST1ADMIN", Height: 5},
		{ID: "s-2", Amount: "250", From: "ST1BOB", To: "ST1ADMIN", Height: 9},
	}
	for _, s := range rows {
		if err := db.AppendSettlement(s); err != nil {
			t.Fatalf("AppendSettlement(%s) error = %v", s.ID, err)
		}
	}

	got, err := db.Settlements(10)
	if err != nil {
		t.Fatalf("Settlements() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(Settlements()) = %d, want 2", len(got))
	}
	if got[0].ID != "s-2" || got[0].Amount != "250" || got[0].From != "ST1BOB" {
		t.Errorf("Settlements()[0] = %+v, want s-2", got[0])
	}
}
