// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of the module; it depends on nothing.
package domain

// ─── Principals ─────────────────────────────────────────────────────────────

// Principal is an authenticated identity. Authentication happens upstream in
// the host; by the time a Principal reaches a ledger it is trusted to be who
// it says it is.
type Principal string

// Zero reports whether the principal is unset.
func (p Principal) Zero() bool { return p == "" }

// ─── Call Context ───────────────────────────────────────────────────────────

// Call carries the per-call ambient state the host supplies to every ledger
// operation: who is calling, and at what block height. It is an explicit
// parameter everywhere; there is no hidden tx-sender.
type Call struct {
	Caller Principal
	Height uint64
}

// ─── Chain Time ─────────────────────────────────────────────────────────────

// BlocksPerDay is the block-height scale for daily accounting. One "minute"
// of session time is one block, so a day is 1440 blocks.
const BlocksPerDay = 1440

// Day maps a block height to its reward-accounting day.
func Day(height uint64) uint64 { return height / BlocksPerDay }

// OffPeak reports whether a session timestamp falls in the off-peak tariff
// window. The timestamp is reduced modulo one day; hours 22..23 and 0..5 are
// off-peak.
func OffPeak(timestamp uint64) bool {
	hour := (timestamp % BlocksPerDay) / 60
	return hour >= 22 || hour < 6
}
