package lottery

import (
	"fmt"
	"math/big"
	"strings"
)

// RoundDuration is the fixed length of a lottery round in seconds. Round end
// times are aligned to multiples of this value.
const RoundDuration int64 = 900

// MaxTicketsPerPlayer bounds the ticket count of a single purchase.
const MaxTicketsPerPlayer uint32 = 5

// MaxFeePercentage caps the platform commission.
const MaxFeePercentage uint8 = 20

// TicketPriceSatoshis is the canonical ticket price denominated in BTC
// satoshis. Purchase assets are priced against it via the quote feeds.
const TicketPriceSatoshis uint64 = 5000

// RoundStatus tracks the lifecycle of a single lottery round.
type RoundStatus uint8

const (
	RoundOpen RoundStatus = iota
	RoundPendingRandomness
	RoundClosed
)

// Valid reports whether the status value is within the supported range.
func (s RoundStatus) Valid() bool {
	switch s {
	case RoundOpen, RoundPendingRandomness, RoundClosed:
		return true
	default:
		return false
	}
}

func (s RoundStatus) String() string {
	switch s {
	case RoundOpen:
		return "open"
	case RoundPendingRandomness:
		return "pending_randomness"
	case RoundClosed:
		return "closed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// SupportedAsset binds a purchase asset to the price feed used to quote it.
type SupportedAsset struct {
	Symbol    string
	PriceFeed string
	Decimals  uint8
}

// Registry is the process-wide lottery configuration. It is mutated only
// through the engine's admin operations.
type Registry struct {
	FeePercentage uint8
	Beneficiary   [20]byte
	Assets        []SupportedAsset
	LastRotation  int64
	// Active arms the upkeep rotation. It is set whenever a round is opened
	// and stays armed while any open ticketed round remains; upkeep clears it
	// once every such round has been handed to the draw pipeline.
	Active bool
	// Paused is the emergency gate. It blocks new round creation without
	// touching in-flight rounds or pending claims.
	Paused bool
}

// Clone returns a deep copy of the registry.
func (r *Registry) Clone() *Registry {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Assets = append([]SupportedAsset(nil), r.Assets...)
	return &clone
}

// AssetConfig resolves the configuration for the supplied symbol.
func (r *Registry) AssetConfig(symbol string) (SupportedAsset, bool) {
	if r == nil {
		return SupportedAsset{}, false
	}
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return SupportedAsset{}, false
	}
	for _, asset := range r.Assets {
		if asset.Symbol == normalized {
			return asset, true
		}
	}
	return SupportedAsset{}, false
}

// Ticket is one unit of chance inside a round. The slice index of a ticket is
// its selection index and never changes once appended.
type Ticket struct {
	Owner       [20]byte
	Price       *big.Int
	PurchasedAt int64
	IsBonus     bool
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Price != nil {
		clone.Price = new(big.Int).Set(t.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Round is one fixed-duration lottery period within an asset pool. Rounds are
// appended to the pool in round-id order and never removed.
type Round struct {
	ID                uint64
	Asset             string
	Status            RoundStatus
	StartTime         int64
	EndTime           int64
	PoolBalance       *big.Int
	CommissionBalance *big.Int
	Tickets           []*Ticket
	WinnerSet         bool
	WinnerAddress     [20]byte
	WinnerTicketIndex uint32
	// The two release legs are tracked independently so a claim interrupted
	// between them resumes with only the outstanding leg.
	PrizeClaimed       bool
	CommissionReleased bool
}

// Clone returns a deep copy of the round so callers can safely mutate the
// copy without affecting the stored instance.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	clone := *r
	if r.PoolBalance != nil {
		clone.PoolBalance = new(big.Int).Set(r.PoolBalance)
	} else {
		clone.PoolBalance = big.NewInt(0)
	}
	if r.CommissionBalance != nil {
		clone.CommissionBalance = new(big.Int).Set(r.CommissionBalance)
	} else {
		clone.CommissionBalance = big.NewInt(0)
	}
	clone.Tickets = make([]*Ticket, len(r.Tickets))
	for i, ticket := range r.Tickets {
		clone.Tickets[i] = ticket.Clone()
	}
	return &clone
}

// Expired reports whether the round's timer has elapsed at the supplied time.
func (r *Round) Expired(now int64) bool {
	if r == nil {
		return false
	}
	return now >= r.EndTime
}

// TicketTotal sums the prices of all non-bonus tickets in the round. At close
// time this must equal PoolBalance + CommissionBalance.
func (r *Round) TicketTotal() *big.Int {
	total := big.NewInt(0)
	if r == nil {
		return total
	}
	for _, ticket := range r.Tickets {
		if ticket == nil || ticket.IsBonus || ticket.Price == nil {
			continue
		}
		total.Add(total, ticket.Price)
	}
	return total
}

// PlayerAccount aggregates a player's ticket stats for one asset pool.
type PlayerAccount struct {
	Player         [20]byte
	Asset          string
	TicketsCount   uint32
	HasBonusTicket bool
}

// Clone returns a copy of the account.
func (p *PlayerAccount) Clone() *PlayerAccount {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// RandomnessRequest records the two-phase handshake resolving one round: the
// request is created when the round leaves Open and consumed exactly once
// when the external value arrives.
type RandomnessRequest struct {
	ID          string
	Asset       string
	RoundID     uint64
	RequestedAt int64
	Fulfilled   bool
	Randomness  uint64
}

// Clone returns a copy of the request.
func (r *RandomnessRequest) Clone() *RandomnessRequest {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// NormalizeAsset canonicalises an asset symbol to its uppercase trimmed form.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("lottery: empty asset symbol")
	}
	return trimmed, nil
}

// SanitizeRound validates the supplied round against the ledger invariants
// and returns a cloned instance with non-nil balances. The original value is
// not mutated.
func SanitizeRound(r *Round) (*Round, error) {
	if r == nil {
		return nil, fmt.Errorf("lottery: nil round")
	}
	clone := r.Clone()
	asset, err := NormalizeAsset(clone.Asset)
	if err != nil {
		return nil, err
	}
	clone.Asset = asset
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("lottery: invalid round status %d", clone.Status)
	}
	if clone.PoolBalance.Sign() < 0 || clone.CommissionBalance.Sign() < 0 {
		return nil, fmt.Errorf("lottery: negative round balance")
	}
	if clone.WinnerSet != (clone.Status == RoundClosed) {
		return nil, fmt.Errorf("lottery: winner fields require closed status")
	}
	if (clone.PrizeClaimed || clone.CommissionReleased) && !clone.WinnerSet {
		return nil, fmt.Errorf("lottery: claim without winner")
	}
	if clone.WinnerSet && int(clone.WinnerTicketIndex) >= len(clone.Tickets) {
		return nil, fmt.Errorf("lottery: winner ticket index out of range")
	}
	bonus := 0
	for i, ticket := range clone.Tickets {
		if ticket == nil {
			return nil, fmt.Errorf("lottery: nil ticket at index %d", i)
		}
		if ticket.IsBonus {
			bonus++
		}
	}
	if bonus > 1 {
		return nil, fmt.Errorf("lottery: multiple bonus tickets")
	}
	return clone, nil
}
