package lottery

import (
	"fmt"
	"math/big"
	"time"

	"blocklotto/core/events"
)

type engineState interface {
	RegistryGet() (*Registry, bool)
	RegistryPut(*Registry) error
	RoundGet(asset string, id uint64) (*Round, bool)
	RoundPut(*Round) error
	RoundCount(asset string) (uint64, error)
	PlayerGet(player [20]byte, asset string) (*PlayerAccount, bool)
	PlayerPut(*PlayerAccount) error
	RequestGet(id string) (*RandomnessRequest, bool)
	RequestForRound(asset string, roundID uint64) (*RandomnessRequest, bool)
	RequestPut(*RandomnessRequest) error
	VaultAddress(asset string) ([20]byte, error)
	VaultBalance(asset string) (*big.Int, error)
	VaultCredit(asset string, amount *big.Int) error
	VaultDebit(asset string, amount *big.Int) error
}

// PaymentRail moves value between accounts on behalf of the engine. The
// engine only computes amounts and recipients; implementations are expected
// to surface shortfalls as ErrInsufficientFunds.
type PaymentRail interface {
	Transfer(from, to [20]byte, asset string, amount *big.Int) error
}

// PriceSource quotes the cost of one ticket in base units of the purchase
// asset.
type PriceSource interface {
	UnitPrice(asset SupportedAsset) (*big.Int, error)
}

// RandomnessSource forwards a randomness request to the external oracle. The
// handle identifies the request when the oracle calls back with a value; the
// callback must be routed into Engine.FulfillRandomness.
type RandomnessSource interface {
	Request(handle string, asset string, roundID uint64) error
}

// Engine owns the round/ticket ledger and drives every state transition of
// the lottery. External collaborators (pricing, payment execution,
// randomness delivery) are injected; the engine assumes the host serialises
// calls touching the same state.
type Engine struct {
	state      engineState
	emitter    events.Emitter
	pricer     PriceSource
	rail       PaymentRail
	randomness RandomnessSource
	authority  [20]byte
	nowFn      func() int64
}

// NewEngine creates a lottery engine with a no-op emitter. Callers wire the
// state backend and collaborators via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPriceSource configures the ticket price source.
func (e *Engine) SetPriceSource(p PriceSource) { e.pricer = p }

// SetPaymentRail configures the value-transfer collaborator.
func (e *Engine) SetPaymentRail(r PaymentRail) { e.rail = r }

// SetRandomnessSource configures the oracle used to request round randomness.
// A nil source is valid: requests are still recorded and may be fulfilled by
// an operator-supplied value.
func (e *Engine) SetRandomnessSource(r RandomnessSource) { e.randomness = r }

// SetAuthority configures the admin capability. Admin operations reject any
// other caller.
func (e *Engine) SetAuthority(addr [20]byte) { e.authority = addr }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event events.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) registry() (*Registry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	reg, ok := e.state.RegistryGet()
	if !ok {
		return nil, errNoRegistry
	}
	return reg, nil
}

func (e *Engine) loadRound(asset string, id uint64) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	round, ok := e.state.RoundGet(asset, id)
	if !ok {
		return nil, ErrRoundNotFound
	}
	return round, nil
}

func (e *Engine) latestRound(asset string) (*Round, error) {
	count, err := e.state.RoundCount(asset)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrNoActiveRound
	}
	return e.loadRound(asset, count-1)
}

func (e *Engine) playerAccount(player [20]byte, asset string) *PlayerAccount {
	if acct, ok := e.state.PlayerGet(player, asset); ok {
		return acct
	}
	return &PlayerAccount{Player: player, Asset: asset}
}

// Initialize seeds the registry. It is a one-shot operation; reinitialising
// an existing registry is rejected.
func (e *Engine) Initialize(authority, beneficiary [20]byte, feePct uint8) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if feePct > MaxFeePercentage {
		return ErrInvalidFeePercentage
	}
	if _, ok := e.state.RegistryGet(); ok {
		return fmt.Errorf("lottery: registry already initialised")
	}
	e.authority = authority
	reg := &Registry{
		FeePercentage: feePct,
		Beneficiary:   beneficiary,
		// Align the rotation clock to the upcoming period boundary so the
		// first upkeep pass cannot fire before the first round expires.
		LastRotation: nextPeriodBoundary(e.now()),
	}
	return e.state.RegistryPut(reg)
}

// BuyTickets purchases count tickets for player in the given asset pool. The
// purchase resolves (or lazily creates) the active round, collects payment
// through the rail, applies the commission exactly once, and appends the
// tickets. The first purchase of a round also grants the buyer one zero-cost
// bonus ticket.
func (e *Engine) BuyTickets(asset string, player [20]byte, count uint32) (*Round, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.pricer == nil {
		return nil, errNilPriceFeed
	}
	if e.rail == nil {
		return nil, errNilRail
	}
	if count == 0 || count > MaxTicketsPerPlayer {
		return nil, ErrInvalidTicketCount
	}
	reg, err := e.registry()
	if err != nil {
		return nil, err
	}
	assetCfg, ok := reg.AssetConfig(asset)
	if !ok {
		return nil, ErrAssetNotSupported
	}
	now := e.now()
	round, created, err := e.getOrCreateActiveRound(reg, assetCfg.Symbol, now)
	if err != nil {
		return nil, err
	}

	unitPrice, err := e.pricer.UnitPrice(assetCfg)
	if err != nil {
		return nil, fmt.Errorf("lottery: quote ticket price: %w", err)
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return nil, ErrInvalidUnitPrice
	}
	totalCost := new(big.Int).Mul(unitPrice, big.NewInt(int64(count)))
	commission := new(big.Int).Mul(totalCost, big.NewInt(int64(reg.FeePercentage)))
	commission.Div(commission, big.NewInt(100))
	poolDelta := new(big.Int).Sub(totalCost, commission)

	vault, err := e.state.VaultAddress(assetCfg.Symbol)
	if err != nil {
		return nil, err
	}
	// Collect payment before any ledger mutation so a rail failure leaves the
	// round untouched.
	if err := e.rail.Transfer(player, vault, assetCfg.Symbol, totalCost); err != nil {
		return nil, err
	}
	if err := e.state.VaultCredit(assetCfg.Symbol, totalCost); err != nil {
		return nil, err
	}

	firstPurchase := len(round.Tickets) == 0
	for i := uint32(0); i < count; i++ {
		round.Tickets = append(round.Tickets, &Ticket{
			Owner:       player,
			Price:       cloneBigInt(unitPrice),
			PurchasedAt: now,
		})
	}
	granted := count
	if firstPurchase {
		round.Tickets = append(round.Tickets, &Ticket{
			Owner:       player,
			Price:       big.NewInt(0),
			PurchasedAt: now,
			IsBonus:     true,
		})
		granted++
	}
	round.PoolBalance.Add(round.PoolBalance, poolDelta)
	round.CommissionBalance.Add(round.CommissionBalance, commission)
	if err := e.state.RoundPut(round); err != nil {
		return nil, err
	}

	acct := e.playerAccount(player, assetCfg.Symbol)
	acct.TicketsCount += granted
	if firstPurchase {
		acct.HasBonusTicket = true
	}
	if err := e.state.PlayerPut(acct); err != nil {
		return nil, err
	}
	if created {
		// Arming from idle also pushes the rotation clock out to the new
		// round's expiry; when upkeep work is already pending the clock is
		// left alone so the pending rounds are not delayed.
		if !reg.Active && round.EndTime > reg.LastRotation {
			reg.LastRotation = round.EndTime
		}
		reg.Active = true
		if err := e.state.RegistryPut(reg); err != nil {
			return nil, err
		}
	}

	e.emit(TicketsPurchased{
		Asset:     assetCfg.Symbol,
		RoundID:   round.ID,
		Buyer:     player,
		Count:     count,
		UnitPrice: cloneBigInt(unitPrice),
		Total:     cloneBigInt(totalCost),
		Timestamp: now,
	})
	if firstPurchase {
		e.emit(BonusTicketAwarded{Asset: assetCfg.Symbol, RoundID: round.ID, Buyer: player, Timestamp: now})
	}
	return round.Clone(), nil
}
