package lottery

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"blocklotto/core/events"
)

type mockState struct {
	registry       *Registry
	rounds         map[string][]*Round
	players        map[string]*PlayerAccount
	requests       map[string]*RandomnessRequest
	requestByRound map[string]*RandomnessRequest
	vaultAddrs     map[string][20]byte
	vaults         map[string]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		rounds:         make(map[string][]*Round),
		players:        make(map[string]*PlayerAccount),
		requests:       make(map[string]*RandomnessRequest),
		requestByRound: make(map[string]*RandomnessRequest),
		vaultAddrs: map[string][20]byte{
			"SOL":  newTestAddress(0xA1),
			"USDC": newTestAddress(0xA2),
		},
		vaults: make(map[string]*big.Int),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func playerKey(player [20]byte, asset string) string {
	return asset + "/" + string(player[:])
}

func roundKey(asset string, id uint64) string {
	return fmt.Sprintf("%s/%d", asset, id)
}

func (m *mockState) RegistryGet() (*Registry, bool) {
	if m.registry == nil {
		return nil, false
	}
	return m.registry.Clone(), true
}

func (m *mockState) RegistryPut(reg *Registry) error {
	if reg == nil {
		return fmt.Errorf("nil registry")
	}
	m.registry = reg.Clone()
	return nil
}

func (m *mockState) RoundGet(asset string, id uint64) (*Round, bool) {
	pool := m.rounds[asset]
	if id >= uint64(len(pool)) {
		return nil, false
	}
	return pool[id].Clone(), true
}

func (m *mockState) RoundPut(round *Round) error {
	sanitized, err := SanitizeRound(round)
	if err != nil {
		return err
	}
	pool := m.rounds[sanitized.Asset]
	switch {
	case sanitized.ID == uint64(len(pool)):
		m.rounds[sanitized.Asset] = append(pool, sanitized)
	case sanitized.ID < uint64(len(pool)):
		pool[sanitized.ID] = sanitized
	default:
		return fmt.Errorf("round id gap: %d", sanitized.ID)
	}
	return nil
}

func (m *mockState) RoundCount(asset string) (uint64, error) {
	return uint64(len(m.rounds[asset])), nil
}

func (m *mockState) PlayerGet(player [20]byte, asset string) (*PlayerAccount, bool) {
	acct, ok := m.players[playerKey(player, asset)]
	if !ok {
		return nil, false
	}
	return acct.Clone(), true
}

func (m *mockState) PlayerPut(acct *PlayerAccount) error {
	if acct == nil {
		return fmt.Errorf("nil player account")
	}
	m.players[playerKey(acct.Player, acct.Asset)] = acct.Clone()
	return nil
}

func (m *mockState) RequestGet(id string) (*RandomnessRequest, bool) {
	req, ok := m.requests[id]
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

func (m *mockState) RequestForRound(asset string, roundID uint64) (*RandomnessRequest, bool) {
	req, ok := m.requestByRound[roundKey(asset, roundID)]
	if !ok {
		return nil, false
	}
	return req.Clone(), true
}

func (m *mockState) RequestPut(req *RandomnessRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	clone := req.Clone()
	m.requests[clone.ID] = clone
	m.requestByRound[roundKey(clone.Asset, clone.RoundID)] = clone
	return nil
}

func (m *mockState) VaultAddress(asset string) ([20]byte, error) {
	addr, ok := m.vaultAddrs[asset]
	if !ok {
		return [20]byte{}, fmt.Errorf("no vault for %s", asset)
	}
	return addr, nil
}

func (m *mockState) VaultBalance(asset string) (*big.Int, error) {
	bal, ok := m.vaults[asset]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(bal), nil
}

func (m *mockState) VaultCredit(asset string, amount *big.Int) error {
	bal, ok := m.vaults[asset]
	if !ok {
		bal = big.NewInt(0)
	}
	m.vaults[asset] = new(big.Int).Add(bal, amount)
	return nil
}

func (m *mockState) VaultDebit(asset string, amount *big.Int) error {
	bal, ok := m.vaults[asset]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	m.vaults[asset] = new(big.Int).Sub(bal, amount)
	return nil
}

type railTransfer struct {
	From   [20]byte
	To     [20]byte
	Asset  string
	Amount *big.Int
}

type mockRail struct {
	transfers []railTransfer
	failWith  error
	// failAfter, when positive, lets that many transfers settle before
	// failWith applies.
	failAfter int
}

func (r *mockRail) Transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if r.failWith != nil {
		if r.failAfter <= 0 {
			return r.failWith
		}
		r.failAfter--
	}
	r.transfers = append(r.transfers, railTransfer{From: from, To: to, Asset: asset, Amount: new(big.Int).Set(amount)})
	return nil
}

type capturedEvents struct {
	events []events.Event
}

func (c *capturedEvents) Emit(evt events.Event) { c.events = append(c.events, evt) }

func (c *capturedEvents) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			out = append(out, evt)
		}
	}
	return out
}

var (
	authority   = newTestAddress(0xAD)
	beneficiary = newTestAddress(0xBE)
	playerA     = newTestAddress(0x01)
	playerB     = newTestAddress(0x02)
)

type testClock struct{ now int64 }

func (c *testClock) Now() int64 { return c.now }

func (c *testClock) Advance(d int64) { c.now += d }

func newTestEngine(t *testing.T) (*Engine, *mockState, *mockRail, *capturedEvents, *testClock) {
	t.Helper()
	state := newMockState()
	rail := &mockRail{}
	emitted := &capturedEvents{}
	clock := &testClock{now: 1_000_000 - (1_000_000 % RoundDuration)}

	engine := NewEngine()
	engine.SetState(state)
	engine.SetPaymentRail(rail)
	engine.SetEmitter(emitted)
	engine.SetNowFunc(clock.Now)
	engine.SetPriceSource(StaticPricer{
		"SOL":  big.NewInt(1_000),
		"USDC": big.NewInt(500),
	})
	if err := engine.Initialize(authority, beneficiary, 10); err != nil {
		t.Fatalf("initialise engine: %v", err)
	}
	for _, asset := range []SupportedAsset{
		{Symbol: "SOL", PriceFeed: "SOL/USD", Decimals: 9},
		{Symbol: "USDC", PriceFeed: "USDC/USD", Decimals: 6},
	} {
		if err := engine.AddSupportedAsset(authority, asset); err != nil {
			t.Fatalf("register asset %s: %v", asset.Symbol, err)
		}
	}
	return engine, state, rail, emitted, clock
}

func TestBuyTicketsAppendsLedgerAndBalances(t *testing.T) {
	engine, state, rail, emitted, _ := newTestEngine(t)

	round, err := engine.BuyTickets("SOL", playerA, 3)
	if err != nil {
		t.Fatalf("buy tickets: %v", err)
	}
	// 3 paid tickets plus the first-buyer bonus.
	if len(round.Tickets) != 4 {
		t.Fatalf("expected 4 tickets, got %d", len(round.Tickets))
	}
	if !round.Tickets[3].IsBonus || round.Tickets[3].Owner != playerA {
		t.Fatalf("bonus ticket missing or misattributed")
	}
	if round.Tickets[3].Price.Sign() != 0 {
		t.Fatalf("bonus ticket must be free")
	}

	// total 3000, fee 10% => commission 300, pool 2700.
	if round.PoolBalance.Cmp(big.NewInt(2700)) != 0 {
		t.Fatalf("pool balance = %s, want 2700", round.PoolBalance)
	}
	if round.CommissionBalance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("commission balance = %s, want 300", round.CommissionBalance)
	}

	if len(rail.transfers) != 1 {
		t.Fatalf("expected one rail transfer, got %d", len(rail.transfers))
	}
	if rail.transfers[0].Amount.Cmp(big.NewInt(3000)) != 0 {
		t.Fatalf("rail collected %s, want 3000", rail.transfers[0].Amount)
	}

	acct, ok := state.PlayerGet(playerA, "SOL")
	if !ok {
		t.Fatalf("player account not persisted")
	}
	if acct.TicketsCount != 4 || !acct.HasBonusTicket {
		t.Fatalf("player aggregate = %+v", acct)
	}

	if len(emitted.ofType(TypeTicketsPurchased)) != 1 {
		t.Fatalf("expected purchase event")
	}
	if len(emitted.ofType(TypeBonusTicketAwarded)) != 1 {
		t.Fatalf("expected bonus event")
	}
}

func TestBuyTicketsCountBounds(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	for _, count := range []uint32{0, 6} {
		if _, err := engine.BuyTickets("SOL", playerA, count); !errors.Is(err, ErrInvalidTicketCount) {
			t.Fatalf("count %d: expected ErrInvalidTicketCount, got %v", count, err)
		}
	}
}

func TestBuyTicketsUnsupportedAsset(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	if _, err := engine.BuyTickets("DOGE", playerA, 1); !errors.Is(err, ErrAssetNotSupported) {
		t.Fatalf("expected ErrAssetNotSupported, got %v", err)
	}
}

func TestBuyTicketsRailFailureLeavesLedgerUntouched(t *testing.T) {
	engine, state, rail, _, _ := newTestEngine(t)
	rail.failWith = ErrInsufficientFunds

	if _, err := engine.BuyTickets("SOL", playerA, 2); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if count, _ := state.RoundCount("SOL"); count != 0 {
		t.Fatalf("round persisted despite payment failure")
	}
	if _, ok := state.PlayerGet(playerA, "SOL"); ok {
		t.Fatalf("player aggregate mutated despite payment failure")
	}
}

func TestBonusTicketOnlyOnFirstPurchase(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 3); err != nil {
		t.Fatalf("first purchase: %v", err)
	}
	round, err := engine.BuyTickets("SOL", playerB, 1)
	if err != nil {
		t.Fatalf("second purchase: %v", err)
	}
	bonus := 0
	for _, ticket := range round.Tickets {
		if ticket.IsBonus {
			bonus++
			if ticket.Owner != playerA {
				t.Fatalf("bonus ticket owned by second buyer")
			}
		}
	}
	if bonus != 1 {
		t.Fatalf("expected exactly one bonus ticket, got %d", bonus)
	}
	if len(round.Tickets) != 5 {
		t.Fatalf("expected ledger length 5, got %d", len(round.Tickets))
	}
}

func TestConservationInvariantAtClose(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 3); err != nil {
		t.Fatalf("buy A: %v", err)
	}
	if _, err := engine.BuyTickets("SOL", playerB, 2); err != nil {
		t.Fatalf("buy B: %v", err)
	}
	clock.Advance(RoundDuration)
	if err := engine.CloseForRandomness("SOL", 0); err != nil {
		t.Fatalf("close: %v", err)
	}
	round, err := engine.ResolveWithRandomness(authority, "SOL", 0, 7)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// The fee is applied exactly once, at purchase time: closing must not
	// re-split the pool. Sum of non-bonus ticket prices equals pool plus
	// commission at close.
	total := round.TicketTotal()
	split := new(big.Int).Add(round.PoolBalance, round.CommissionBalance)
	if total.Cmp(split) != 0 {
		t.Fatalf("conservation broken: tickets %s != pool+commission %s", total, split)
	}
	if total.Cmp(big.NewInt(5000)) != 0 {
		t.Fatalf("ticket total = %s, want 5000", total)
	}
}

func TestPausedRegistryBlocksNewRounds(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy before pause: %v", err)
	}
	if err := engine.EmergencyPause(authority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	// Purchases into the in-flight round still succeed.
	if _, err := engine.BuyTickets("SOL", playerB, 1); err != nil {
		t.Fatalf("buy into open round while paused: %v", err)
	}
	// Once the round expires, a new one cannot be created while paused.
	clock.Advance(RoundDuration)
	if _, err := engine.BuyTickets("USDC", playerA, 1); !errors.Is(err, ErrLotteryPaused) {
		t.Fatalf("expected ErrLotteryPaused, got %v", err)
	}
	if err := engine.Resume(authority); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if _, err := engine.BuyTickets("USDC", playerA, 1); err != nil {
		t.Fatalf("buy after resume: %v", err)
	}
}

func TestInitializeRejectsExcessiveFee(t *testing.T) {
	engine := NewEngine()
	engine.SetState(newMockState())
	if err := engine.Initialize(authority, beneficiary, 21); !errors.Is(err, ErrInvalidFeePercentage) {
		t.Fatalf("expected ErrInvalidFeePercentage, got %v", err)
	}
}
