package sqlite

import (
	"database/sql"
	"fmt"
	"time"
)

// ─── Row Types ──────────────────────────────────────────────────────────────
// Amounts with 256-bit range travel as decimal strings; everything else fits
// native integers.

// TokenState is the token ledger's single-row meta state.
type TokenState struct {
	Owner       string
	Initialized bool
	TotalSupply string
}

// BalanceRow is one principal's balance.
type BalanceRow struct {
	Principal string
	Amount    string
}

// AllowanceRow is one (owner, spender) allowance.
type AllowanceRow struct {
	Owner   string
	Spender string
	Amount  string
}

// RegistryState is the station registry's single-row meta state.
type RegistryState struct {
	Admin           string
	RegistrationFee string
	NextID          uint64
}

// StationRow is one registered station.
type StationRow struct {
	ID           uint64
	Name         string
	Owner        string
	Location     string
	PowerKW      uint64
	PricePerKWh  uint64
	Active       bool
	RegisteredAt uint64
}

// DistributorState is the rewards distributor's single-row meta state.
type DistributorState struct {
	Oracle          string
	TokenContract   string
	StationRegistry string
	UserRegistry    string
	Nonce           uint64
	TotalRewards    uint64
}

// SessionRow is one charging session.
type SessionRow struct {
	ID        uint64
	User      string
	Station   string
	KWh       uint64
	Timestamp uint64
	OffPeak   bool
	Claimed   bool
	Proof     []byte
}

// DailyRow is one (user, day) reward bucket.
type DailyRow struct {
	User   string
	Day    uint64
	Amount uint64
}

// Snapshot is the full committed ledger state at a block height.
type Snapshot struct {
	Height      uint64
	Token       TokenState
	Balances    []BalanceRow
	Allowances  []AllowanceRow
	Registry    RegistryState
	Stations    []StationRow
	Distributor DistributorState
	Sessions    []SessionRow
	Daily       []DailyRow
}

// JournalRow is one applied public call.
type JournalRow struct {
	ID         string
	Op         string
	Caller     string
	Height     uint64
	ExecutedAt time.Time
}

// SettlementRow is one registration-fee value transfer.
type SettlementRow struct {
	ID     string
	Amount string
	From   string
	To     string
	Height uint64
}

// ─── Snapshot Operations ────────────────────────────────────────────────────

// SaveSnapshot replaces the persisted ledger state with s in a single
// transaction: either the whole snapshot commits or none of it does.
func (db *DB) SaveSnapshot(s Snapshot) error {
	tx, err := db.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"balances", "allowances", "stations", "sessions", "daily_rewards"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO chain_state (id, height, updated_at) VALUES (1, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET height = excluded.height, updated_at = datetime('now')
	`, s.Height); err != nil {
		return fmt.Errorf("chain state: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO token_state (id, owner, initialized, total_supply) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner        = excluded.owner,
			initialized  = excluded.initialized,
			total_supply = excluded.total_supply
	`, s.Token.Owner, boolInt(s.Token.Initialized), s.Token.TotalSupply); err != nil {
		return fmt.Errorf("token state: %w", err)
	}
	for _, b := range s.Balances {
		if _, err := tx.Exec(`INSERT INTO balances (principal, amount) VALUES (?, ?)`,
			b.Principal, b.Amount); err != nil {
			return fmt.Errorf("balance %s: %w", b.Principal, err)
		}
	}
	for _, a := range s.Allowances {
		if _, err := tx.Exec(`INSERT INTO allowances (owner, spender, amount) VALUES (?, ?, ?)`,
			a.Owner, a.Spender, a.Amount); err != nil {
			return fmt.Errorf("allowance %s/%s: %w", a.Owner, a.Spender, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO registry_state (id, admin, registration_fee, next_id) VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			admin            = excluded.admin,
			registration_fee = excluded.registration_fee,
			next_id          = excluded.next_id
	`, s.Registry.Admin, s.Registry.RegistrationFee, s.Registry.NextID); err != nil {
		return fmt.Errorf("registry state: %w", err)
	}
	for _, st := range s.Stations {
		if _, err := tx.Exec(`
			INSERT INTO stations (id, name, owner, location, power_kw, price_per_kwh, active, registered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, st.ID, st.Name, st.Owner, st.Location, st.PowerKW, st.PricePerKWh, boolInt(st.Active), st.RegisteredAt); err != nil {
			return fmt.Errorf("station %d: %w", st.ID, err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO distributor_state (id, oracle, token_contract, station_registry, user_registry, nonce, total_rewards)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			oracle           = excluded.oracle,
			token_contract   = excluded.token_contract,
			station_registry = excluded.station_registry,
			user_registry    = excluded.user_registry,
			nonce            = excluded.nonce,
			total_rewards    = excluded.total_rewards
	`, s.Distributor.Oracle, s.Distributor.TokenContract, s.Distributor.StationRegistry,
		s.Distributor.UserRegistry, s.Distributor.Nonce, s.Distributor.TotalRewards); err != nil {
		return fmt.Errorf("distributor state: %w", err)
	}
	for _, sess := range s.Sessions {
		if _, err := tx.Exec(`
			INSERT INTO sessions (id, user, station, kwh, timestamp, off_peak, claimed, proof)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, sess.User, sess.Station, sess.KWh, sess.Timestamp,
			boolInt(sess.OffPeak), boolInt(sess.Claimed), sess.Proof); err != nil {
			return fmt.Errorf("session %d: %w", sess.ID, err)
		}
	}
	for _, d := range s.Daily {
		if _, err := tx.Exec(`INSERT INTO daily_rewards (user, day, amount) VALUES (?, ?, ?)`,
			d.User, d.Day, d.Amount); err != nil {
			return fmt.Errorf("daily bucket %s/%d: %w", d.User, d.Day, err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads the persisted ledger state. The second return is false
// when the database holds no snapshot yet (fresh node).
func (db *DB) LoadSnapshot() (Snapshot, bool, error) {
	var s Snapshot

	var initInt int
	err := db.db.QueryRow(`SELECT owner, initialized, total_supply FROM token_state WHERE id = 1`).
		Scan(&s.Token.Owner, &initInt, &s.Token.TotalSupply)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("token state: %w", err)
	}
	s.Token.Initialized = initInt == 1

	if err := db.db.QueryRow(`SELECT height FROM chain_state WHERE id = 1`).Scan(&s.Height); err != nil {
		return Snapshot{}, false, fmt.Errorf("chain state: %w", err)
	}

	rows, err := db.db.Query(`SELECT principal, amount FROM balances`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var b BalanceRow
		if err := rows.Scan(&b.Principal, &b.Amount); err != nil {
			return Snapshot{}, false, err
		}
		s.Balances = append(s.Balances, b)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	arows, err := db.db.Query(`SELECT owner, spender, amount FROM allowances`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer arows.Close()
	for arows.Next() {
		var a AllowanceRow
		if err := arows.Scan(&a.Owner, &a.Spender, &a.Amount); err != nil {
			return Snapshot{}, false, err
		}
		s.Allowances = append(s.Allowances, a)
	}
	if err := arows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	if err := db.db.QueryRow(`SELECT admin, registration_fee, next_id FROM registry_state WHERE id = 1`).
		Scan(&s.Registry.Admin, &s.Registry.RegistrationFee, &s.Registry.NextID); err != nil {
		return Snapshot{}, false, fmt.Errorf("registry state: %w", err)
	}

	strows, err := db.db.Query(`
		SELECT id, name, owner, location, power_kw, price_per_kwh, active, registered_at
		FROM stations ORDER BY id
	`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer strows.Close()
	for strows.Next() {
		var st StationRow
		var activeInt int
		if err := strows.Scan(&st.ID, &st.Name, &st.Owner, &st.Location,
			&st.PowerKW, &st.PricePerKWh, &activeInt, &st.RegisteredAt); err != nil {
			return Snapshot{}, false, err
		}
		st.Active = activeInt == 1
		s.Stations = append(s.Stations, st)
	}
	if err := strows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	if err := db.db.QueryRow(`
		SELECT oracle, token_contract, station_registry, user_registry, nonce, total_rewards
		FROM distributor_state WHERE id = 1
	`).Scan(&s.Distributor.Oracle, &s.Distributor.TokenContract, &s.Distributor.StationRegistry,
		&s.Distributor.UserRegistry, &s.Distributor.Nonce, &s.Distributor.TotalRewards); err != nil {
		return Snapshot{}, false, fmt.Errorf("distributor state: %w", err)
	}

	serows, err := db.db.Query(`
		SELECT id, user, station, kwh, timestamp, off_peak, claimed, proof
		FROM sessions ORDER BY id
	`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer serows.Close()
	for serows.Next() {
		var sess SessionRow
		var offInt, claimedInt int
		if err := serows.Scan(&sess.ID, &sess.User, &sess.Station, &sess.KWh,
			&sess.Timestamp, &offInt, &claimedInt, &sess.Proof); err != nil {
			return Snapshot{}, false, err
		}
		sess.OffPeak = offInt == 1
		sess.Claimed = claimedInt == 1
		s.Sessions = append(s.Sessions, sess)
	}
	if err := serows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	drows, err := db.db.Query(`SELECT user, day, amount FROM daily_rewards`)
	if err != nil {
		return Snapshot{}, false, err
	}
	defer drows.Close()
	for drows.Next() {
		var d DailyRow
		if err := drows.Scan(&d.User, &d.Day, &d.Amount); err != nil {
			return Snapshot{}, false, err
		}
		s.Daily = append(s.Daily, d)
	}
	if err := drows.Err(); err != nil {
		return Snapshot{}, false, err
	}

	return s, true, nil
}

// ─── Journal Operations ─────────────────────────────────────────────────────

// AppendJournal records one applied call.
func (db *DB) AppendJournal(e JournalRow) error {
	_, err := db.db.Exec(`
		INSERT INTO call_journal (id, op, caller, height, executed_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.Op, e.Caller, e.Height, e.ExecutedAt.UTC().Format(time.RFC3339))
	return err
}

// JournalCount returns the number of journal entries.
func (db *DB) JournalCount() (int64, error) {
	var n int64
	err := db.db.QueryRow(`SELECT COUNT(*) FROM call_journal`).Scan(&n)
	return n, err
}

// RecentJournal returns the most recent journal entries, newest first.
func (db *DB) RecentJournal(limit int) ([]JournalRow, error) {
	rows, err := db.db.Query(`
		SELECT id, op, caller, height, executed_at
		FROM call_journal ORDER BY executed_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalRow
	for rows.Next() {
		var e JournalRow
		var at string
		if err := rows.Scan(&e.ID, &e.Op, &e.Caller, &e.Height, &at); err != nil {
			return nil, err
		}
		e.ExecutedAt, _ = time.Parse(time.RFC3339, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ─── Settlement Operations ──────────────────────────────────────────────────

// AppendSettlement records one registration-fee transfer.
func (db *DB) AppendSettlement(s SettlementRow) error {
	_, err := db.db.Exec(`
		INSERT INTO settlements (id, amount, from_p, to_p, height)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Amount, s.From, s.To, s.Height)
	return err
}

// Settlements returns up to limit settlement rows, newest first.
func (db *DB) Settlements(limit int) ([]SettlementRow, error) {
	rows, err := db.db.Query(`
		SELECT id, amount, from_p, to_p, height
		FROM settlements ORDER BY recorded_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SettlementRow
	for rows.Next() {
		var s SettlementRow
		if err := rows.Scan(&s.ID, &s.Amount, &s.From, &s.To, &s.Height); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
