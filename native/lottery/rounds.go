package lottery

import (
	"errors"
	"math/big"
)

// getOrCreateActiveRound resolves the pool's active round at the supplied
// time. The latest round is reused while it is Open and its timer has not
// expired; otherwise a fresh round is created with the next monotonically
// increasing id. The returned round is not yet persisted when created is
// true; the caller stores it together with the rest of its mutation.
//
// An expired round with zero tickets stays Open here: it is simply superseded
// by the new round and skipped by upkeep.
func (e *Engine) getOrCreateActiveRound(reg *Registry, asset string, now int64) (round *Round, created bool, err error) {
	var nextID uint64
	latest, err := e.latestRound(asset)
	switch {
	case err == nil:
		if latest.Status == RoundOpen && now < latest.EndTime {
			return latest, false, nil
		}
		nextID = latest.ID + 1
	case errors.Is(err, ErrNoActiveRound):
		nextID = 0
	default:
		return nil, false, err
	}
	if reg.Paused {
		return nil, false, ErrLotteryPaused
	}
	round = &Round{
		ID:                nextID,
		Asset:             asset,
		Status:            RoundOpen,
		StartTime:         now,
		EndTime:           nextPeriodBoundary(now),
		PoolBalance:       big.NewInt(0),
		CommissionBalance: big.NewInt(0),
	}
	return round, true, nil
}

// nextPeriodBoundary aligns round end times to multiples of RoundDuration so
// every pool rotates on the same clock.
func nextPeriodBoundary(now int64) int64 {
	return now - (now % RoundDuration) + RoundDuration
}

// CloseForRandomness moves an expired, nonempty round out of Open so a
// randomness request can resolve it. The transition is rejected while the
// round timer is still running or the ledger is empty.
func (e *Engine) CloseForRandomness(asset string, roundID uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	round, err := e.loadRound(normalized, roundID)
	if err != nil {
		return err
	}
	if round.Status != RoundOpen {
		return ErrRoundNotOpen
	}
	now := e.now()
	if !round.Expired(now) {
		return ErrRoundStillActive
	}
	if len(round.Tickets) == 0 {
		return ErrNoTicketsInRound
	}
	round.Status = RoundPendingRandomness
	if err := e.state.RoundPut(round); err != nil {
		return err
	}
	e.emit(RoundPendingDraw{
		Asset:       normalized,
		RoundID:     round.ID,
		EndTime:     round.EndTime,
		TicketCount: uint32(len(round.Tickets)),
	})
	return nil
}
