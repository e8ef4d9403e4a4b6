package domain

import "fmt"

// ─── Ledger Errors ──────────────────────────────────────────────────────────
// Every fallible ledger operation returns one of the sentinel *Error values
// below, a closed set of kinds matched with errors.Is. The numeric codes
// are the on-chain error codes of the deployed contracts; each ledger has its
// own code space, so codes repeat across ledgers while the sentinels stay
// distinct.

// Error is a tagged ledger failure. It carries nothing beyond the kind and
// its contract-level code.
type Error struct {
	Code uint
	Kind string
}

func (e *Error) Error() string { return fmt.Sprintf("%s (err u%d)", e.Kind, e.Code) }

// Shared across all ledgers.
var ErrUnauthorized = &Error{Code: 100, Kind: "unauthorized"}

// Token ledger.
var (
	ErrInsufficientBalance = &Error{Code: 102, Kind: "insufficient balance"}
	ErrAlreadyInitialized  = &Error{Code: 106, Kind: "already initialized"}
	ErrNotInitialized      = &Error{Code: 107, Kind: "not initialized"}
)

// Station registry.
var (
	ErrAlreadyRegistered = &Error{Code: 101, Kind: "already registered"}
	ErrNotRegistered     = &Error{Code: 102, Kind: "not registered"}
	ErrInvalidName       = &Error{Code: 103, Kind: "invalid name"}
	ErrInvalidLocation   = &Error{Code: 103, Kind: "invalid location"}
	ErrInvalidPower      = &Error{Code: 104, Kind: "invalid power rating"}
	ErrInvalidPrice      = &Error{Code: 106, Kind: "invalid price"}
)

// Rewards distributor.
var (
	ErrInvalidSession       = &Error{Code: 101, Kind: "invalid session"}
	ErrAlreadyClaimed       = &Error{Code: 102, Kind: "already claimed"}
	ErrInvalidAmount        = &Error{Code: 103, Kind: "invalid amount"}
	ErrInvalidTimestamp     = &Error{Code: 104, Kind: "invalid timestamp"}
	ErrOracleNotSet         = &Error{Code: 105, Kind: "oracle not set"}
	ErrStationNotRegistered = &Error{Code: 106, Kind: "station not registered"}
	ErrUserNotRegistered    = &Error{Code: 107, Kind: "user not registered"}
	ErrMintFailed           = &Error{Code: 110, Kind: "mint failed"}
	ErrInvalidProof         = &Error{Code: 111, Kind: "invalid proof"}
	ErrMaxRewardExceeded    = &Error{Code: 112, Kind: "max daily reward exceeded"}
)
