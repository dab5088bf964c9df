package lottery

import (
	"errors"
	"math/big"
	"testing"
)

func closePendingRound(t *testing.T, engine *Engine, clock *testClock, asset string, roundID uint64) *RandomnessRequest {
	t.Helper()
	clock.Advance(RoundDuration)
	if err := engine.CloseForRandomness(asset, roundID); err != nil {
		t.Fatalf("close round: %v", err)
	}
	req, err := engine.RequestRandomness(asset, roundID)
	if err != nil {
		t.Fatalf("request randomness: %v", err)
	}
	return req
}

func TestRequestRandomnessIdempotentWhileUnfulfilled(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)
	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	req := closePendingRound(t, engine, clock, "SOL", 0)

	again, err := engine.RequestRandomness("SOL", 0)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if again.ID != req.ID {
		t.Fatalf("expected the outstanding request to be reused")
	}
}

func TestFulfillRandomnessRejectsReplay(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)
	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	req := closePendingRound(t, engine, clock, "SOL", 0)

	if _, err := engine.FulfillRandomness(req.ID, 42); err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if _, err := engine.FulfillRandomness(req.ID, 43); !errors.Is(err, ErrRandomnessConsumed) {
		t.Fatalf("expected ErrRandomnessConsumed, got %v", err)
	}
	// The request is never re-armed for the round either.
	if _, err := engine.RequestRandomness("SOL", 0); !errors.Is(err, ErrRoundNotOpen) {
		t.Fatalf("expected ErrRoundNotOpen after close, got %v", err)
	}
}

func TestFulfillUnknownHandleRejected(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	if _, err := engine.FulfillRandomness("missing", 1); !errors.Is(err, ErrRandomnessNotRequested) {
		t.Fatalf("expected ErrRandomnessNotRequested, got %v", err)
	}
}

func TestSelectWinnerIsDeterministic(t *testing.T) {
	build := func() *Round {
		round := &Round{
			ID:                0,
			Asset:             "SOL",
			Status:            RoundPendingRandomness,
			PoolBalance:       big.NewInt(900),
			CommissionBalance: big.NewInt(100),
		}
		for _, owner := range [][20]byte{playerA, playerA, playerB, playerA, playerB} {
			round.Tickets = append(round.Tickets, &Ticket{Owner: owner, Price: big.NewInt(200)})
		}
		return round
	}
	first, err := selectWinner(build(), 12345)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	second, err := selectWinner(build(), 12345)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if first != second {
		t.Fatalf("identical inputs picked different tickets: %d vs %d", first, second)
	}
	if first != 12345%5 {
		t.Fatalf("winner index = %d, want %d", first, 12345%5)
	}
}

func TestWinnerSelectionScenario(t *testing.T) {
	engine, _, _, emitted, clock := newTestEngine(t)

	// A buys 3 first: ledger [A, A, A, A(bonus)]. B buys 1: length 5.
	if _, err := engine.BuyTickets("SOL", playerA, 3); err != nil {
		t.Fatalf("buy A: %v", err)
	}
	if _, err := engine.BuyTickets("SOL", playerB, 1); err != nil {
		t.Fatalf("buy B: %v", err)
	}
	req := closePendingRound(t, engine, clock, "SOL", 0)

	// randomness 7 over 5 tickets: index 2, owned by A.
	round, err := engine.FulfillRandomness(req.ID, 7)
	if err != nil {
		t.Fatalf("fulfill: %v", err)
	}
	if round.Status != RoundClosed {
		t.Fatalf("round status = %v, want closed", round.Status)
	}
	if round.WinnerTicketIndex != 2 {
		t.Fatalf("winner index = %d, want 2", round.WinnerTicketIndex)
	}
	if round.WinnerAddress != playerA {
		t.Fatalf("winner = %x, want player A", round.WinnerAddress)
	}
	if len(emitted.ofType(TypeWinnerPicked)) != 1 {
		t.Fatalf("expected winner event")
	}
}

func TestSelectWinnerGuards(t *testing.T) {
	closed := &Round{
		Asset:             "SOL",
		Status:            RoundClosed,
		PoolBalance:       big.NewInt(0),
		CommissionBalance: big.NewInt(0),
		Tickets:           []*Ticket{{Owner: playerA, Price: big.NewInt(1)}},
		WinnerSet:         true,
		WinnerAddress:     playerA,
	}
	if _, err := selectWinner(closed, 1); !errors.Is(err, ErrRoundNotOpen) {
		t.Fatalf("expected ErrRoundNotOpen, got %v", err)
	}

	empty := &Round{Asset: "SOL", Status: RoundOpen, PoolBalance: big.NewInt(0), CommissionBalance: big.NewInt(0)}
	if _, err := selectWinner(empty, 1); !errors.Is(err, ErrNoTicketsInRound) {
		t.Fatalf("expected ErrNoTicketsInRound, got %v", err)
	}
}

func TestResolveWithRandomnessRequiresAuthority(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)
	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	clock.Advance(RoundDuration)
	if _, err := engine.ResolveWithRandomness(playerB, "SOL", 0, 9); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.ResolveWithRandomness(authority, "SOL", 0, 9); err != nil {
		t.Fatalf("authority resolve: %v", err)
	}
}
