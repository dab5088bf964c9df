package lotteryd

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blocklotto/native/lottery"
	"blocklotto/state"
	"blocklotto/storage"
)

var (
	testAuthority   = [20]byte{0xAD}
	testBeneficiary = [20]byte{0xBE}
	testPlayer      = [20]byte{0x01}
)

type harness struct {
	service *Service
	engine  *lottery.Engine
	rail    *LedgerRail
	clock   *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	manager := state.NewManager(db)
	rail := NewLedgerRail(db)

	feed, err := NewConfigFeed(map[string]string{
		"BTC/USD": "100000",
		"SOL/USD": "200",
	})
	require.NoError(t, err)

	engine := lottery.NewEngine()
	engine.SetState(manager)
	engine.SetPaymentRail(rail)
	engine.SetPriceSource(lottery.NewFeedPricer(feed, "BTC/USD"))
	engine.SetAuthority(testAuthority)

	clock := &testClock{now: time.Unix(999_900, 0)}
	engine.SetNowFunc(func() int64 { return clock.now.Unix() })

	require.NoError(t, engine.Initialize(testAuthority, testBeneficiary, 10))
	require.NoError(t, engine.AddSupportedAsset(testAuthority, lottery.SupportedAsset{
		Symbol: "SOL", PriceFeed: "SOL/USD", Decimals: 9,
	}))

	svc := NewService(engine, WithClock(clock.Now))
	return &harness{service: svc, engine: engine, rail: rail, clock: clock}
}

func fund(t *testing.T, h *harness, addr [20]byte, amount int64) {
	t.Helper()
	require.NoError(t, h.rail.Deposit(addr, "SOL", big.NewInt(amount)))
}

func TestServicePurchaseSettlesOnRail(t *testing.T) {
	h := newHarness(t)
	fund(t, h, testPlayer, 1_000_000_000)

	round, err := h.service.BuyTickets("SOL", testPlayer, 2)
	require.NoError(t, err)
	// Two paid tickets plus the first-buyer bonus.
	require.Len(t, round.Tickets, 3)

	price, err := h.service.TicketPrice("SOL")
	require.NoError(t, err)
	spent := new(big.Int).Mul(price, big.NewInt(2))

	remaining, err := h.rail.Balance(testPlayer, "SOL")
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Sub(big.NewInt(1_000_000_000), spent), remaining)
}

func TestServicePurchaseFailsWithoutFunds(t *testing.T) {
	h := newHarness(t)

	_, err := h.service.BuyTickets("SOL", testPlayer, 1)
	require.ErrorIs(t, err, ErrRailInsufficient)
	require.ErrorIs(t, err, lottery.ErrInsufficientFunds)

	// Nothing was recorded for the failed purchase.
	_, infoErr := h.service.RoundInfo("SOL", 0)
	require.Error(t, infoErr)
}

func TestServiceUpkeepLifecycle(t *testing.T) {
	h := newHarness(t)
	fund(t, h, testPlayer, 10_000_000_000)

	round, err := h.service.BuyTickets("SOL", testPlayer, 3)
	require.NoError(t, err)

	// Not yet expired.
	_, due, err := h.service.RunUpkeep()
	require.NoError(t, err)
	require.False(t, due)

	h.clock.Advance(time.Duration(lottery.RoundDuration+1) * time.Second)
	result, due, err := h.service.RunUpkeep()
	require.NoError(t, err)
	require.True(t, due)
	require.Len(t, result.RoundsClosed, 1)

	view, err := h.service.RoundInfo("SOL", round.ID)
	require.NoError(t, err)
	require.Equal(t, lottery.RoundPendingRandomness, view.Status)
}

func TestServiceFulfillAndClaim(t *testing.T) {
	h := newHarness(t)
	fund(t, h, testPlayer, 10_000_000_000)

	round, err := h.service.BuyTickets("SOL", testPlayer, 3)
	require.NoError(t, err)

	h.clock.Advance(time.Duration(lottery.RoundDuration+1) * time.Second)
	result, due, err := h.service.RunUpkeep()
	require.NoError(t, err)
	require.True(t, due)
	require.Len(t, result.RoundsClosed, 1)

	resolved, err := h.service.ResolveRound(testAuthority, "SOL", round.ID, 7)
	require.NoError(t, err)
	require.True(t, resolved.WinnerSet)
	require.Equal(t, testPlayer, resolved.WinnerAddress)

	beforeClaim, err := h.rail.Balance(testPlayer, "SOL")
	require.NoError(t, err)

	require.NoError(t, h.service.ClaimPrize("SOL", round.ID, testPlayer))

	afterClaim, err := h.rail.Balance(testPlayer, "SOL")
	require.NoError(t, err)
	require.Equal(t, new(big.Int).Add(beforeClaim, resolved.PoolBalance), afterClaim)

	treasury, err := h.rail.Balance(testBeneficiary, "SOL")
	require.NoError(t, err)
	require.Equal(t, resolved.CommissionBalance, treasury)

	// Second claim must be rejected.
	err = h.service.ClaimPrize("SOL", round.ID, testPlayer)
	require.ErrorIs(t, err, lottery.ErrPrizeClaimed)
}

func TestServicePauseStopsUpkeep(t *testing.T) {
	h := newHarness(t)
	fund(t, h, testPlayer, 10_000_000_000)

	_, err := h.service.BuyTickets("SOL", testPlayer, 1)
	require.NoError(t, err)

	require.NoError(t, h.service.Pause(testAuthority))
	require.True(t, h.service.Paused())

	h.clock.Advance(time.Duration(lottery.RoundDuration+1) * time.Second)
	_, due, err := h.service.RunUpkeep()
	require.NoError(t, err)
	require.False(t, due)

	require.NoError(t, h.service.Resume(testAuthority))
	_, due, err = h.service.RunUpkeep()
	require.NoError(t, err)
	require.True(t, due)
}

func TestServicePauseRequiresAuthority(t *testing.T) {
	h := newHarness(t)
	err := h.service.Pause(testPlayer)
	require.ErrorIs(t, err, lottery.ErrUnauthorized)
}
