package service

import (
	"sync/atomic"

	"github.com/Tinycute00/NFT-DEX/internal/domain"
)

// Breaker is the administrative circuit breaker. While tripped, every
// trade-mutating entry point rejects with ErrPaused; read-only queries stay
// available.
type Breaker struct {
	paused atomic.Bool
}

// Pause trips the breaker. Returns true if the state changed.
func (b *Breaker) Pause() bool { return b.paused.CompareAndSwap(false, true) }

// Unpause resets the breaker. Returns true if the state changed.
func (b *Breaker) Unpause() bool { return b.paused.CompareAndSwap(true, false) }

// Paused reports the current state.
func (b *Breaker) Paused() bool { return b.paused.Load() }

// Check returns ErrPaused while the breaker is tripped.
func (b *Breaker) Check() error {
	if b.paused.Load() {
		return domain.ErrPaused
	}
	return nil
}
