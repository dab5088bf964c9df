package lottery

// UpkeepResult summarises one upkeep pass across the asset pools.
type UpkeepResult struct {
	NextRotation int64
	RoundsClosed []UpkeepRound
	Skipped      []UpkeepRound
}

// UpkeepRound identifies a round touched by an upkeep pass.
type UpkeepRound struct {
	Asset   string
	RoundID uint64
}

// CheckDue reports whether the rotation trigger should fire at the supplied
// time: the rotation clock must have passed and at least one round must be in
// flight.
func (e *Engine) CheckDue(now int64) (bool, error) {
	reg, err := e.registry()
	if err != nil {
		return false, err
	}
	return now > reg.LastRotation && reg.Active, nil
}

// openRounds returns every round of the pool still in Open status, oldest
// first. Pools are append-only, so a superseded round keeps showing up here
// until a draw moves it out of Open.
func (e *Engine) openRounds(asset string) ([]*Round, error) {
	count, err := e.state.RoundCount(asset)
	if err != nil {
		return nil, err
	}
	var rounds []*Round
	for id := uint64(0); id < count; id++ {
		round, err := e.loadRound(asset, id)
		if err != nil {
			return nil, err
		}
		if round.Status == RoundOpen {
			rounds = append(rounds, round)
		}
	}
	return rounds, nil
}

// PerformUpkeep is the sole automatic trigger moving rounds out of Open. When
// due, it walks every Open round of every pool: expired ticketed rounds get a
// close-for-randomness plus a randomness request, expired empty rounds are
// skipped and left Open, and rounds still running keep the rotation flag
// armed for the next boundary. The rotation clock and flag are persisted only
// after the fan-out so a failed pass is retried whole. Invoking upkeep while
// not due is rejected.
func (e *Engine) PerformUpkeep() (*UpkeepResult, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now <= reg.LastRotation || !reg.Active {
		return nil, ErrUpkeepNotDue
	}

	result := &UpkeepResult{NextRotation: nextPeriodBoundary(now)}
	live := false
	for _, asset := range reg.Assets {
		rounds, err := e.openRounds(asset.Symbol)
		if err != nil {
			return nil, err
		}
		for _, round := range rounds {
			ref := UpkeepRound{Asset: asset.Symbol, RoundID: round.ID}
			if !round.Expired(now) {
				if len(round.Tickets) > 0 {
					live = true
				}
				continue
			}
			if len(round.Tickets) == 0 {
				result.Skipped = append(result.Skipped, ref)
				continue
			}
			if err := e.CloseForRandomness(asset.Symbol, round.ID); err != nil {
				return nil, err
			}
			if _, err := e.RequestRandomness(asset.Symbol, round.ID); err != nil {
				return nil, err
			}
			result.RoundsClosed = append(result.RoundsClosed, ref)
		}
	}
	reg.LastRotation = result.NextRotation
	reg.Active = live
	if err := e.state.RegistryPut(reg); err != nil {
		return nil, err
	}
	e.emit(UpkeepPerformed{
		Timestamp:    now,
		NextRotation: result.NextRotation,
		RoundsClosed: uint32(len(result.RoundsClosed)),
	})
	return result, nil
}
