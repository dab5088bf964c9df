package lottery

// Admin operations mutate the shared registry. Each is gated by the engine's
// configured authority and either applies its full mutation or none of it.

// UpdateFeePercentage sets the commission percentage, rejecting values above
// the maximum.
func (e *Engine) UpdateFeePercentage(caller [20]byte, pct uint8) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	if pct > MaxFeePercentage {
		return ErrInvalidFeePercentage
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	old := reg.FeePercentage
	reg.FeePercentage = pct
	if err := e.state.RegistryPut(reg); err != nil {
		return err
	}
	e.emit(FeeUpdated{OldPercentage: old, NewPercentage: pct, Timestamp: e.now()})
	return nil
}

// UpdateBeneficiary swaps the commission recipient.
func (e *Engine) UpdateBeneficiary(caller, beneficiary [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	old := reg.Beneficiary
	reg.Beneficiary = beneficiary
	if err := e.state.RegistryPut(reg); err != nil {
		return err
	}
	e.emit(BeneficiaryUpdated{Old: old, New: beneficiary, Timestamp: e.now()})
	return nil
}

// AddSupportedAsset registers a purchase asset and its price feed. Duplicate
// symbols are rejected.
func (e *Engine) AddSupportedAsset(caller [20]byte, asset SupportedAsset) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	symbol, err := NormalizeAsset(asset.Symbol)
	if err != nil {
		return err
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	if _, exists := reg.AssetConfig(symbol); exists {
		return ErrAssetAlreadyExists
	}
	asset.Symbol = symbol
	reg.Assets = append(reg.Assets, asset)
	return e.state.RegistryPut(reg)
}

// EmergencyPause stops new round creation and disarms upkeep. In-flight
// rounds, outstanding randomness requests, and pending claims are unaffected.
func (e *Engine) EmergencyPause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	reg.Paused = true
	reg.Active = false
	if err := e.state.RegistryPut(reg); err != nil {
		return err
	}
	e.emit(EmergencyPaused{Timestamp: e.now()})
	return nil
}

// Resume lifts an emergency pause. The rotation trigger re-arms when any pool
// still holds an open ticketed round, expired or not; otherwise round
// creation picks up lazily on the next purchase.
func (e *Engine) Resume(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	reg.Paused = false
	for _, asset := range reg.Assets {
		rounds, err := e.openRounds(asset.Symbol)
		if err != nil {
			return err
		}
		for _, round := range rounds {
			if len(round.Tickets) > 0 {
				reg.Active = true
				break
			}
		}
		if reg.Active {
			break
		}
	}
	return e.state.RegistryPut(reg)
}
