package lottery

import "math/big"

// ClaimPrize releases a closed round's pool balance to the winner and its
// commission balance to the beneficiary. Each leg is released at most once:
// its flag is persisted right after the value moves, so a claim interrupted
// between the two legs retries only the outstanding one and never repeats a
// payment.
func (e *Engine) ClaimPrize(asset string, roundID uint64, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.rail == nil {
		return errNilRail
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	round, err := e.loadRound(normalized, roundID)
	if err != nil {
		return err
	}
	if round.Status != RoundClosed {
		return ErrRoundNotClosed
	}
	if !round.WinnerSet || round.WinnerAddress != caller {
		return ErrNotWinner
	}
	if round.PrizeClaimed && round.CommissionReleased {
		return ErrPrizeClaimed
	}
	vault, err := e.state.VaultAddress(normalized)
	if err != nil {
		return err
	}
	prize := cloneBigInt(round.PoolBalance)
	commission := cloneBigInt(round.CommissionBalance)
	if !round.PrizeClaimed {
		if prize.Sign() > 0 {
			if err := e.rail.Transfer(vault, round.WinnerAddress, normalized, prize); err != nil {
				return err
			}
			if err := e.state.VaultDebit(normalized, prize); err != nil {
				return err
			}
		}
		round.PrizeClaimed = true
		if err := e.state.RoundPut(round); err != nil {
			return err
		}
	}
	if !round.CommissionReleased {
		if commission.Sign() > 0 {
			if err := e.rail.Transfer(vault, reg.Beneficiary, normalized, commission); err != nil {
				return err
			}
			if err := e.state.VaultDebit(normalized, commission); err != nil {
				return err
			}
		}
		round.CommissionReleased = true
		if err := e.state.RoundPut(round); err != nil {
			return err
		}
	}
	e.emit(PrizeClaimed{
		Asset:     normalized,
		RoundID:   round.ID,
		Winner:    round.WinnerAddress,
		Amount:    prize,
		Timestamp: e.now(),
	})
	return nil
}

// WithdrawCommission pays out part of the per-asset custody vault to the
// beneficiary. The withdrawal is scoped to the aggregate vault balance and is
// independent of any single round's commission ledger.
func (e *Engine) WithdrawCommission(caller [20]byte, asset string, amount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.rail == nil {
		return errNilRail
	}
	if caller != e.authority {
		return ErrUnauthorized
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	reg, err := e.registry()
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return ErrInsufficientFunds
	}
	balance, err := e.state.VaultBalance(normalized)
	if err != nil {
		return err
	}
	if balance == nil || balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	vault, err := e.state.VaultAddress(normalized)
	if err != nil {
		return err
	}
	if err := e.rail.Transfer(vault, reg.Beneficiary, normalized, amt); err != nil {
		return err
	}
	if err := e.state.VaultDebit(normalized, amt); err != nil {
		return err
	}
	e.emit(CommissionWithdrawn{
		Asset:       normalized,
		Amount:      amt,
		Beneficiary: reg.Beneficiary,
		Timestamp:   e.now(),
	})
	return nil
}
