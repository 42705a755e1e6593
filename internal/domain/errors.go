package domain

import (
	"errors"
	"fmt"
	"math/big"
)

// Sentinel errors shared across the ledger. Callers match them with
// errors.Is; wrapping layers add context with fmt.Errorf("...: %w", err).
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrPaused        = errors.New("trading is paused")

	// Precondition violations (recoverable by the caller).
	ErrWrongPhase         = errors.New("wrong project phase")
	ErrNotOwner           = errors.New("caller is not the token owner")
	ErrNotWhitelisted     = errors.New("address is not whitelisted")
	ErrZeroAddress        = errors.New("zero address")
	ErrInvalidAttributes  = errors.New("invalid attribute set")
	ErrPriceNotConfirmed  = errors.New("base price not confirmed")
	ErrAlreadyListed      = errors.New("token already in system market")
	ErrNotListed          = errors.New("token not in system market")
	ErrOrderExists        = errors.New("token already has an active order")
	ErrNoPlatformWallet   = errors.New("platform wallet not configured")
	ErrMintWindowClosed   = errors.New("mint window closed")
	ErrMintLimitReached   = errors.New("mint limit reached")
	ErrSupplyExhausted    = errors.New("max supply reached")
	ErrRarityMissing      = errors.New("rarity not assigned to every token")

	// Solvency violations.
	ErrInsufficientLiquidity = errors.New("insufficient pool liquidity")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrStalePrice            = errors.New("quoted price no longer valid")

	// Arithmetic violations (bad configuration rather than bad input).
	ErrArithmetic    = errors.New("arithmetic violation")
	ErrZeroBasePrice = errors.New("computed base price is zero")
)

// TradeError carries the structured detail of a rejected trade so callers
// and tests can tell failure causes apart without parsing prose.
type TradeError struct {
	Op      string   // operation, e.g. "sell_to_system"
	TokenID int64    // 0 when the failure is not token-specific
	Want    *big.Int // required amount, nil when not applicable
	Got     *big.Int // offered/available amount, nil when not applicable
	Err     error    // underlying sentinel
}

func (e *TradeError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.TokenID != 0 {
		msg += fmt.Sprintf(" (token %d)", e.TokenID)
	}
	if e.Want != nil && e.Got != nil {
		msg += fmt.Sprintf(" (want %s, got %s)", e.Want, e.Got)
	}
	return msg
}

func (e *TradeError) Unwrap() error { return e.Err }

// NewTradeError builds a TradeError for the given operation and token.
func NewTradeError(op string, tokenID int64, want, got *big.Int, err error) *TradeError {
	return &TradeError{Op: op, TokenID: tokenID, Want: want, Got: got, Err: err}
}
