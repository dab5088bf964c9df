package lottery

import (
	"fmt"

	"github.com/google/uuid"
)

// RequestRandomness records a randomness request for the given round and
// forwards it to the configured oracle. While an unfulfilled request exists
// for the round the call is idempotent and returns the existing handle.
func (e *Engine) RequestRandomness(asset string, roundID uint64) (*RandomnessRequest, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	round, err := e.loadRound(normalized, roundID)
	if err != nil {
		return nil, err
	}
	if round.Status == RoundClosed {
		return nil, ErrRoundNotOpen
	}
	if len(round.Tickets) == 0 {
		return nil, ErrNoTicketsInRound
	}
	if existing, ok := e.state.RequestForRound(normalized, roundID); ok {
		// A consumed request is never re-armed for the same round.
		if existing.Fulfilled {
			return nil, ErrRandomnessConsumed
		}
		return existing.Clone(), nil
	}
	req := &RandomnessRequest{
		ID:          uuid.NewString(),
		Asset:       normalized,
		RoundID:     roundID,
		RequestedAt: e.now(),
	}
	if err := e.state.RequestPut(req); err != nil {
		return nil, err
	}
	if e.randomness != nil {
		if err := e.randomness.Request(req.ID, normalized, roundID); err != nil {
			return nil, fmt.Errorf("lottery: forward randomness request: %w", err)
		}
	}
	return req.Clone(), nil
}

// FulfillRandomness consumes a delivered random value. The request transitions
// fulfilled exactly once; replays are rejected. Both the oracle callback and
// operator-supplied values arrive here, so a round can never resolve twice.
func (e *Engine) FulfillRandomness(handle string, randomness uint64) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	req, ok := e.state.RequestGet(handle)
	if !ok {
		return nil, ErrRandomnessNotRequested
	}
	if req.Fulfilled {
		return nil, ErrRandomnessConsumed
	}
	round, err := e.loadRound(req.Asset, req.RoundID)
	if err != nil {
		return nil, err
	}
	winnerIdx, err := selectWinner(round, randomness)
	if err != nil {
		return nil, err
	}
	req.Fulfilled = true
	req.Randomness = randomness
	if err := e.state.RequestPut(req); err != nil {
		return nil, err
	}
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}
	e.emit(WinnerPicked{
		Asset:       req.Asset,
		RoundID:     round.ID,
		Winner:      round.WinnerAddress,
		TicketIndex: winnerIdx,
		Prize:       cloneBigInt(round.PoolBalance),
		Timestamp:   e.now(),
	})
	return round.Clone(), nil
}

// ResolveWithRandomness closes a round with an operator-supplied value. It
// routes through the same request/fulfill sequence as the oracle path,
// creating the request first if none is outstanding.
func (e *Engine) ResolveWithRandomness(caller [20]byte, asset string, roundID uint64, randomness uint64) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if caller != e.authority {
		return nil, ErrUnauthorized
	}
	req, err := e.RequestRandomness(asset, roundID)
	if err != nil {
		return nil, err
	}
	return e.FulfillRandomness(req.ID, randomness)
}

// selectWinner resolves the round from the supplied randomness. It is a pure
// function of the ticket ledger and the value: identical inputs always yield
// the identical winner index. The commission was already applied at purchase
// time, so closing performs no further balance split.
func selectWinner(round *Round, randomness uint64) (uint32, error) {
	if round == nil {
		return 0, ErrRoundNotFound
	}
	if round.Status != RoundOpen && round.Status != RoundPendingRandomness {
		return 0, ErrRoundNotOpen
	}
	if len(round.Tickets) == 0 {
		return 0, ErrNoTicketsInRound
	}
	idx := uint32(randomness % uint64(len(round.Tickets)))
	round.WinnerSet = true
	round.WinnerAddress = round.Tickets[idx].Owner
	round.WinnerTicketIndex = idx
	round.Status = RoundClosed
	return idx, nil
}
