package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ProjectPhase is the lifecycle state of the project. The only legal
// transition is Creation -> Confirmed; confirmation is irreversible.
type ProjectPhase string

const (
	PhaseCreation  ProjectPhase = "creation"
	PhaseConfirmed ProjectPhase = "confirmed"
)

// CanTransition reports whether moving from p to next is a legal phase
// change. All transitions other than Creation->Confirmed are rejected.
func (p ProjectPhase) CanTransition(next ProjectPhase) bool {
	return p == PhaseCreation && next == PhaseConfirmed
}

// Transition returns the next phase or ErrWrongPhase when the move is
// illegal, keeping every phase check on one code path.
func (p ProjectPhase) Transition(next ProjectPhase) (ProjectPhase, error) {
	if !p.CanTransition(next) {
		return p, fmt.Errorf("phase %s -> %s: %w", p, next, ErrWrongPhase)
	}
	return next, nil
}

// Project is the marketplace singleton. Creator, MaxSupply, and TotalValue
// are immutable after creation; TotalMinted grows up to MaxSupply while the
// project is in the Creation phase.
type Project struct {
	Creator     common.Address
	MaxSupply   int64
	TotalMinted int64
	TotalValue  *big.Int
	Phase       ProjectPhase
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}
