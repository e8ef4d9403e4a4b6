package domain

import "github.com/holiman/uint256"

// ─── Collaborator Interfaces ────────────────────────────────────────────────
// These interfaces are the contract boundaries between the ledgers. The
// rewards distributor consumes them; the host decides what stands behind
// each one (the in-process ledgers, or a stub in tests).

// Registry is a membership predicate over principals. Both the user registry
// (an external service) and the station registry satisfy it.
type Registry interface {
	IsRegistered(p Principal) bool
}

// Minter creates new token supply for a recipient. The host backs it with
// the token ledger, calling as the token owner.
type Minter interface {
	Mint(amount *uint256.Int, recipient Principal) error
}

// SettlementTransfer moves native settlement value between principals. It is
// an opaque side effect: the station registry invokes it for the registration
// fee and treats any error as grounds to abort the whole registration.
type SettlementTransfer func(amount *uint256.Int, from, to Principal) error

// RegistryFunc adapts a plain predicate to the Registry interface.
type RegistryFunc func(p Principal) bool

func (f RegistryFunc) IsRegistered(p Principal) bool { return f(p) }
