// Package token implements the fungible energy-token ledger: balances,
// allowances, and supply, with owner-gated mint/burn.
//
// The ledger is an owned state struct with no package-level mutable state. The
// host serializes calls, so methods assume exactly one writer at a time; every
// method validates completely before mutating anything, and applies its
// effects as an indivisible unit.
package token

import (
	"github.com/holiman/uint256"

	"github.com/voltgrid-network/voltgrid/internal/domain"
)

// allowanceKey identifies an allowance row. One row per (owner, spender)
// pair; a later approve overwrites, never accumulates.
type allowanceKey struct {
	owner   domain.Principal
	spender domain.Principal
}

// AllowanceRow is an allowance entry as exposed to callers and persistence.
type AllowanceRow struct {
	Owner   domain.Principal
	Spender domain.Principal
	Amount  *uint256.Int
}

// Ledger holds the complete token state.
//
// Invariant: totalSupply always equals the sum of all balances. It is
// maintained incrementally by mint/burn, never recomputed by a scan.
type Ledger struct {
	owner       domain.Principal
	initialized bool
	totalSupply *uint256.Int
	balances    map[domain.Principal]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
}

// New creates an empty, uninitialized ledger owned by owner.
func New(owner domain.Principal) *Ledger {
	return &Ledger{
		owner:       owner,
		totalSupply: uint256.NewInt(0),
		balances:    make(map[domain.Principal]*uint256.Int),
		allowances:  make(map[allowanceKey]*uint256.Int),
	}
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// Initialize seeds the ledger: credits recipient with initialSupply and sets
// the total supply. One-shot, owner-only.
func (l *Ledger) Initialize(call domain.Call, initialSupply *uint256.Int, recipient domain.Principal) error {
	if l.initialized {
		return domain.ErrAlreadyInitialized
	}
	if call.Caller != l.owner {
		return domain.ErrUnauthorized
	}
	l.credit(recipient, initialSupply)
	l.totalSupply = initialSupply.Clone()
	l.initialized = true
	return nil
}

// Transfer moves amount from sender to recipient. The caller must be one of
// the two parties.
func (l *Ledger) Transfer(call domain.Call, amount *uint256.Int, sender, recipient domain.Principal) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	if call.Caller != sender && call.Caller != recipient {
		return domain.ErrUnauthorized
	}
	if l.balance(sender).Lt(amount) {
		return domain.ErrInsufficientBalance
	}
	l.debit(sender, amount)
	l.credit(recipient, amount)
	return nil
}

// Settle moves amount from one principal to another outside the public
// transfer surface. The host uses it as the value rail for registration
// fees: plain balance custody, so it carries no caller authorization and is
// not gated on initialization, only on the balance check.
func (l *Ledger) Settle(amount *uint256.Int, from, to domain.Principal) error {
	if l.balance(from).Lt(amount) {
		return domain.ErrInsufficientBalance
	}
	l.debit(from, amount)
	l.credit(to, amount)
	return nil
}

// Approve sets the allowance for (caller, spender) to exactly amount,
// replacing any previous value. No balance check happens at approval time.
func (l *Ledger) Approve(call domain.Call, spender domain.Principal, amount *uint256.Int) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	l.allowances[allowanceKey{call.Caller, spender}] = amount.Clone()
	return nil
}

// TransferFrom spends the caller's allowance on owner's balance, crediting
// recipient. The allowance row is decremented in place and persists even at
// zero; only RevokeAllowance removes it.
func (l *Ledger) TransferFrom(call domain.Call, owner, recipient domain.Principal, amount *uint256.Int) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	key := allowanceKey{owner, call.Caller}
	allowance, ok := l.allowances[key]
	if !ok || allowance.Lt(amount) {
		return domain.ErrUnauthorized
	}
	if l.balance(owner).Lt(amount) {
		return domain.ErrInsufficientBalance
	}
	l.debit(owner, amount)
	l.credit(recipient, amount)
	allowance.Sub(allowance, amount)
	return nil
}

// Mint creates amount new tokens for recipient. Owner-only.
func (l *Ledger) Mint(call domain.Call, amount *uint256.Int, recipient domain.Principal) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	if call.Caller != l.owner {
		return domain.ErrUnauthorized
	}
	l.credit(recipient, amount)
	l.totalSupply.Add(l.totalSupply, amount)
	return nil
}

// Burn destroys amount tokens from sender's balance. The caller must be
// sender or the ledger owner.
func (l *Ledger) Burn(call domain.Call, amount *uint256.Int, sender domain.Principal) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	if call.Caller != sender && call.Caller != l.owner {
		return domain.ErrUnauthorized
	}
	if l.balance(sender).Lt(amount) {
		return domain.ErrInsufficientBalance
	}
	l.debit(sender, amount)
	l.totalSupply.Sub(l.totalSupply, amount)
	return nil
}

// SetOwner hands ledger ownership to newOwner. Owner-only; allowed even
// before initialization.
func (l *Ledger) SetOwner(call domain.Call, newOwner domain.Principal) error {
	if call.Caller != l.owner {
		return domain.ErrUnauthorized
	}
	l.owner = newOwner
	return nil
}

// RevokeAllowance deletes the (caller, spender) allowance row. No-op if the
// row does not exist.
func (l *Ledger) RevokeAllowance(call domain.Call, spender domain.Principal) error {
	if !l.initialized {
		return domain.ErrNotInitialized
	}
	delete(l.allowances, allowanceKey{call.Caller, spender})
	return nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────
// Accessors never fail, never mutate, and return defensive copies.

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() *uint256.Int { return l.totalSupply.Clone() }

// BalanceOf returns account's balance; zero for accounts never credited.
func (l *Ledger) BalanceOf(account domain.Principal) *uint256.Int {
	return l.balance(account).Clone()
}

// AllowanceOf returns the allowance for (owner, spender); zero when no row
// exists.
func (l *Ledger) AllowanceOf(owner, spender domain.Principal) *uint256.Int {
	if a, ok := l.allowances[allowanceKey{owner, spender}]; ok {
		return a.Clone()
	}
	return uint256.NewInt(0)
}

// HasAllowance reports whether an allowance row exists for (owner, spender),
// regardless of its remaining amount.
func (l *Ledger) HasAllowance(owner, spender domain.Principal) bool {
	_, ok := l.allowances[allowanceKey{owner, spender}]
	return ok
}

// Owner returns the current ledger owner.
func (l *Ledger) Owner() domain.Principal { return l.owner }

// Initialized reports whether Initialize has run.
func (l *Ledger) Initialized() bool { return l.initialized }

// Balances returns a copy of every balance row (zero balances included), for
// persistence snapshots.
func (l *Ledger) Balances() map[domain.Principal]*uint256.Int {
	out := make(map[domain.Principal]*uint256.Int, len(l.balances))
	for p, b := range l.balances {
		out[p] = b.Clone()
	}
	return out
}

// Allowances returns a copy of every allowance row, for persistence
// snapshots.
func (l *Ledger) Allowances() []AllowanceRow {
	out := make([]AllowanceRow, 0, len(l.allowances))
	for k, a := range l.allowances {
		out = append(out, AllowanceRow{Owner: k.owner, Spender: k.spender, Amount: a.Clone()})
	}
	return out
}

// ─── Restore ────────────────────────────────────────────────────────────────

// Restore rebuilds a ledger from persisted state. The caller is responsible
// for handing it state that satisfied the invariants when saved.
func Restore(owner domain.Principal, initialized bool, totalSupply *uint256.Int,
	balances map[domain.Principal]*uint256.Int, allowances []AllowanceRow) *Ledger {

	l := New(owner)
	l.initialized = initialized
	l.totalSupply = totalSupply.Clone()
	for p, b := range balances {
		l.balances[p] = b.Clone()
	}
	for _, row := range allowances {
		l.allowances[allowanceKey{row.Owner, row.Spender}] = row.Amount.Clone()
	}
	return l
}

// ─── Internals ──────────────────────────────────────────────────────────────

func (l *Ledger) balance(p domain.Principal) *uint256.Int {
	if b, ok := l.balances[p]; ok {
		return b
	}
	return uint256.NewInt(0)
}

func (l *Ledger) credit(p domain.Principal, amount *uint256.Int) {
	b, ok := l.balances[p]
	if !ok {
		b = uint256.NewInt(0)
		l.balances[p] = b
	}
	b.Add(b, amount)
}

// debit assumes the balance check already passed.
func (l *Ledger) debit(p domain.Principal, amount *uint256.Int) {
	b, ok := l.balances[p]
	if !ok {
		b = uint256.NewInt(0)
		l.balances[p] = b
	}
	b.Sub(b, amount)
}
