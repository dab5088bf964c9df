package lottery

import "math/big"

// Read-only views over the persisted state. Each returns a detached snapshot;
// mutating it never affects the ledger.

// RegistryView mirrors the process-wide configuration.
type RegistryView struct {
	FeePercentage uint8
	Beneficiary   [20]byte
	Assets        []SupportedAsset
	LastRotation  int64
	Active        bool
	Paused        bool
}

// RoundView summarises one round without exposing the full ticket ledger.
type RoundView struct {
	Asset              string
	RoundID            uint64
	Status             RoundStatus
	StartTime          int64
	EndTime            int64
	PoolBalance        *big.Int
	CommissionBalance  *big.Int
	TicketCount        uint32
	WinnerSet          bool
	WinnerAddress      [20]byte
	WinnerTicketIndex  uint32
	PrizeClaimed       bool
	CommissionReleased bool
}

// PlayerTicketsView lists a player's holdings in one round.
type PlayerTicketsView struct {
	Player         [20]byte
	Asset          string
	RoundID        uint64
	TicketIndices  []uint32
	TotalTickets   uint32
	HasBonusTicket bool
}

// Registry returns the current configuration snapshot.
func (e *Engine) Registry() (*RegistryView, error) {
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	return &RegistryView{
		FeePercentage: reg.FeePercentage,
		Beneficiary:   reg.Beneficiary,
		Assets:        append([]SupportedAsset(nil), reg.Assets...),
		LastRotation:  reg.LastRotation,
		Active:        reg.Active,
		Paused:        reg.Paused,
	}, nil
}

// RoundInfo returns the summary view of a round.
func (e *Engine) RoundInfo(asset string, roundID uint64) (*RoundView, error) {
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
	return &RoundView{
		Asset:              round.Asset,
		RoundID:            round.ID,
		Status:             round.Status,
		StartTime:          round.StartTime,
		EndTime:            round.EndTime,
		PoolBalance:        cloneBigInt(round.PoolBalance),
		CommissionBalance:  cloneBigInt(round.CommissionBalance),
		TicketCount:        uint32(len(round.Tickets)),
		WinnerSet:          round.WinnerSet,
		WinnerAddress:      round.WinnerAddress,
		WinnerTicketIndex:  round.WinnerTicketIndex,
		PrizeClaimed:       round.PrizeClaimed,
		CommissionReleased: round.CommissionReleased,
	}, nil
}

// PlayerTickets scans a round's ledger for the supplied player.
func (e *Engine) PlayerTickets(asset string, roundID uint64, player [20]byte) (*PlayerTicketsView, error) {
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
	view := &PlayerTicketsView{Player: player, Asset: normalized, RoundID: roundID}
	for i, ticket := range round.Tickets {
		if ticket == nil || ticket.Owner != player {
			continue
		}
		view.TicketIndices = append(view.TicketIndices, uint32(i))
		view.TotalTickets++
		if ticket.IsBonus {
			view.HasBonusTicket = true
		}
	}
	return view, nil
}

// TicketPrice quotes the current per-ticket price for a supported asset.
func (e *Engine) TicketPrice(asset string) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.pricer == nil {
		return nil, errNilPriceFeed
	}
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	cfg, ok := reg.AssetConfig(asset)
	if !ok {
		return nil, ErrAssetNotSupported
	}
	price, err := e.pricer.UnitPrice(cfg)
	if err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidUnitPrice
	}
	return price, nil
}
