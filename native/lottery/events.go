package lottery

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"blocklotto/core/types"
)

const (
	TypeTicketsPurchased    = "lottery.tickets.purchased"
	TypeBonusTicketAwarded  = "lottery.bonus.awarded"
	TypeRoundPendingDraw    = "lottery.round.pending_draw"
	TypeWinnerPicked        = "lottery.winner.picked"
	TypePrizeClaimed        = "lottery.prize.claimed"
	TypeFeeUpdated          = "lottery.config.fee_updated"
	TypeBeneficiaryUpdated  = "lottery.config.beneficiary_updated"
	TypeEmergencyPaused     = "lottery.config.paused"
	TypeCommissionWithdrawn = "lottery.commission.withdrawn"
	TypeUpkeepPerformed     = "lottery.upkeep.performed"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string { return strconv.FormatInt(v, 10) }

// TicketsPurchased is emitted for every successful purchase. It is
// informational only; later transitions never consult it.
type TicketsPurchased struct {
	Asset     string
	RoundID   uint64
	Buyer     [20]byte
	Count     uint32
	UnitPrice *big.Int
	Total     *big.Int
	Timestamp int64
}

func (TicketsPurchased) EventType() string { return TypeTicketsPurchased }

func (e TicketsPurchased) Event() *types.Event {
	return &types.Event{
		Type: TypeTicketsPurchased,
		Attributes: map[string]string{
			"asset":     e.Asset,
			"roundId":   strconv.FormatUint(e.RoundID, 10),
			"buyer":     hex.EncodeToString(e.Buyer[:]),
			"count":     strconv.FormatUint(uint64(e.Count), 10),
			"unitPrice": formatAmount(e.UnitPrice),
			"total":     formatAmount(e.Total),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// BonusTicketAwarded marks the zero-cost ticket granted to a round's first
// buyer.
type BonusTicketAwarded struct {
	Asset     string
	RoundID   uint64
	Buyer     [20]byte
	Timestamp int64
}

func (BonusTicketAwarded) EventType() string { return TypeBonusTicketAwarded }

func (e BonusTicketAwarded) Event() *types.Event {
	return &types.Event{
		Type: TypeBonusTicketAwarded,
		Attributes: map[string]string{
			"asset":     e.Asset,
			"roundId":   strconv.FormatUint(e.RoundID, 10),
			"buyer":     hex.EncodeToString(e.Buyer[:]),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// RoundPendingDraw is emitted when an expired round leaves Open and awaits
// randomness.
type RoundPendingDraw struct {
	Asset       string
	RoundID     uint64
	EndTime     int64
	TicketCount uint32
}

func (RoundPendingDraw) EventType() string { return TypeRoundPendingDraw }

func (e RoundPendingDraw) Event() *types.Event {
	return &types.Event{
		Type: TypeRoundPendingDraw,
		Attributes: map[string]string{
			"asset":       e.Asset,
			"roundId":     strconv.FormatUint(e.RoundID, 10),
			"endTime":     intToString(e.EndTime),
			"ticketCount": strconv.FormatUint(uint64(e.TicketCount), 10),
		},
	}
}

// WinnerPicked records a resolved round.
type WinnerPicked struct {
	Asset       string
	RoundID     uint64
	Winner      [20]byte
	TicketIndex uint32
	Prize       *big.Int
	Timestamp   int64
}

func (WinnerPicked) EventType() string { return TypeWinnerPicked }

func (e WinnerPicked) Event() *types.Event {
	return &types.Event{
		Type: TypeWinnerPicked,
		Attributes: map[string]string{
			"asset":       e.Asset,
			"roundId":     strconv.FormatUint(e.RoundID, 10),
			"winner":      hex.EncodeToString(e.Winner[:]),
			"ticketIndex": strconv.FormatUint(uint64(e.TicketIndex), 10),
			"prize":       formatAmount(e.Prize),
			"timestamp":   intToString(e.Timestamp),
		},
	}
}

// PrizeClaimed records the one-shot payout of a round.
type PrizeClaimed struct {
	Asset     string
	RoundID   uint64
	Winner    [20]byte
	Amount    *big.Int
	Timestamp int64
}

func (PrizeClaimed) EventType() string { return TypePrizeClaimed }

func (e PrizeClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypePrizeClaimed,
		Attributes: map[string]string{
			"asset":     e.Asset,
			"roundId":   strconv.FormatUint(e.RoundID, 10),
			"winner":    hex.EncodeToString(e.Winner[:]),
			"amount":    formatAmount(e.Amount),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// FeeUpdated records an admin fee change.
type FeeUpdated struct {
	OldPercentage uint8
	NewPercentage uint8
	Timestamp     int64
}

func (FeeUpdated) EventType() string { return TypeFeeUpdated }

func (e FeeUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeFeeUpdated,
		Attributes: map[string]string{
			"oldPercentage": strconv.FormatUint(uint64(e.OldPercentage), 10),
			"newPercentage": strconv.FormatUint(uint64(e.NewPercentage), 10),
			"timestamp":     intToString(e.Timestamp),
		},
	}
}

// BeneficiaryUpdated records a commission recipient swap.
type BeneficiaryUpdated struct {
	Old       [20]byte
	New       [20]byte
	Timestamp int64
}

func (BeneficiaryUpdated) EventType() string { return TypeBeneficiaryUpdated }

func (e BeneficiaryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeBeneficiaryUpdated,
		Attributes: map[string]string{
			"old":       hex.EncodeToString(e.Old[:]),
			"new":       hex.EncodeToString(e.New[:]),
			"timestamp": intToString(e.Timestamp),
		},
	}
}

// EmergencyPaused records an emergency stop.
type EmergencyPaused struct {
	Timestamp int64
}

func (EmergencyPaused) EventType() string { return TypeEmergencyPaused }

func (e EmergencyPaused) Event() *types.Event {
	return &types.Event{
		Type:       TypeEmergencyPaused,
		Attributes: map[string]string{"timestamp": intToString(e.Timestamp)},
	}
}

// CommissionWithdrawn records a treasury withdrawal from the custody vault.
type CommissionWithdrawn struct {
	Asset       string
	Amount      *big.Int
	Beneficiary [20]byte
	Timestamp   int64
}

func (CommissionWithdrawn) EventType() string { return TypeCommissionWithdrawn }

func (e CommissionWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeCommissionWithdrawn,
		Attributes: map[string]string{
			"asset":       e.Asset,
			"amount":      formatAmount(e.Amount),
			"beneficiary": hex.EncodeToString(e.Beneficiary[:]),
			"timestamp":   intToString(e.Timestamp),
		},
	}
}

// UpkeepPerformed records one rotation pass of the scheduler.
type UpkeepPerformed struct {
	Timestamp    int64
	NextRotation int64
	RoundsClosed uint32
}

func (UpkeepPerformed) EventType() string { return TypeUpkeepPerformed }

func (e UpkeepPerformed) Event() *types.Event {
	return &types.Event{
		Type: TypeUpkeepPerformed,
		Attributes: map[string]string{
			"timestamp":    intToString(e.Timestamp),
			"nextRotation": intToString(e.NextRotation),
			"roundsClosed": strconv.FormatUint(uint64(e.RoundsClosed), 10),
		},
	}
}
