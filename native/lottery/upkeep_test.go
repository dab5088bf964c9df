package lottery

import (
	"errors"
	"testing"
)

func TestCheckDueRequiresClockAndActiveFlag(t *testing.T) {
	engine, _, _, _, clock := newTestEngine(t)

	// No round opened yet: rotation disarmed.
	due, err := engine.CheckDue(clock.Now() + 1)
	if err != nil {
		t.Fatalf("check due: %v", err)
	}
	if due {
		t.Fatalf("due without any open round")
	}

	// An open round arms the trigger but the clock only lapses at its expiry.
	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	due, err = engine.CheckDue(clock.Now() + 1)
	if err != nil {
		t.Fatalf("check due: %v", err)
	}
	if due {
		t.Fatalf("due while the round timer is still running")
	}
	due, err = engine.CheckDue(clock.Now() + RoundDuration + 1)
	if err != nil {
		t.Fatalf("check due: %v", err)
	}
	if !due {
		t.Fatalf("expected due once the round expired")
	}
}

func TestUpkeepNotDueBeforeRoundExpiry(t *testing.T) {
	engine, state, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 2); err != nil {
		t.Fatalf("buy: %v", err)
	}
	clock.Advance(5)
	if _, err := engine.PerformUpkeep(); !errors.Is(err, ErrUpkeepNotDue) {
		t.Fatalf("expected ErrUpkeepNotDue mid-period, got %v", err)
	}

	// The early attempt must not strand the round: once its timer lapses the
	// trigger fires and the draw proceeds.
	clock.Advance(RoundDuration)
	result, err := engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("upkeep after expiry: %v", err)
	}
	if len(result.RoundsClosed) != 1 {
		t.Fatalf("rounds closed = %d, want 1", len(result.RoundsClosed))
	}
	round, _ := state.RoundGet("SOL", 0)
	if round.Status != RoundPendingRandomness {
		t.Fatalf("round status = %v, want pending randomness", round.Status)
	}
}

func TestUpkeepRearmsForLiveRounds(t *testing.T) {
	engine, state, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy SOL: %v", err)
	}
	clock.Advance(RoundDuration + 1)
	// A fresh USDC round opens in the new period before the pass runs.
	if _, err := engine.BuyTickets("USDC", playerB, 1); err != nil {
		t.Fatalf("buy USDC: %v", err)
	}

	result, err := engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 1 || result.RoundsClosed[0].Asset != "SOL" {
		t.Fatalf("closed = %+v", result.RoundsClosed)
	}
	reg, _ := state.RegistryGet()
	if !reg.Active {
		t.Fatalf("trigger disarmed while the USDC round is still live")
	}

	clock.Advance(RoundDuration + 1)
	result, err = engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("second upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 1 || result.RoundsClosed[0].Asset != "USDC" {
		t.Fatalf("second pass closed = %+v", result.RoundsClosed)
	}
	reg, _ = state.RegistryGet()
	if reg.Active {
		t.Fatalf("trigger still armed with no open ticketed rounds left")
	}
}

func TestUpkeepDrawsSupersededRound(t *testing.T) {
	engine, state, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 2); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Let the round expire and land another purchase before any pass runs;
	// the purchase opens round 1 and supersedes round 0.
	clock.Advance(RoundDuration + 1)
	if _, err := engine.BuyTickets("SOL", playerB, 1); err != nil {
		t.Fatalf("second buy: %v", err)
	}
	if count, _ := state.RoundCount("SOL"); count != 2 {
		t.Fatalf("round count = %d, want 2", count)
	}

	result, err := engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 1 || result.RoundsClosed[0].RoundID != 0 {
		t.Fatalf("closed = %+v", result.RoundsClosed)
	}
	superseded, _ := state.RoundGet("SOL", 0)
	if superseded.Status != RoundPendingRandomness {
		t.Fatalf("superseded round status = %v, want pending randomness", superseded.Status)
	}
	if _, ok := state.RequestForRound("SOL", 0); !ok {
		t.Fatalf("superseded round has no randomness request")
	}

	// The replacement round stays armed and drawn on its own expiry.
	clock.Advance(RoundDuration + 1)
	result, err = engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("second upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 1 || result.RoundsClosed[0].RoundID != 1 {
		t.Fatalf("second pass closed = %+v", result.RoundsClosed)
	}
}

func TestPerformUpkeepRejectedWhenNotDue(t *testing.T) {
	engine, _, _, _, _ := newTestEngine(t)
	if _, err := engine.PerformUpkeep(); !errors.Is(err, ErrUpkeepNotDue) {
		t.Fatalf("expected ErrUpkeepNotDue, got %v", err)
	}
}

func TestPerformUpkeepFansOutAcrossPools(t *testing.T) {
	engine, state, _, emitted, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy SOL: %v", err)
	}
	if _, err := engine.BuyTickets("USDC", playerB, 2); err != nil {
		t.Fatalf("buy USDC: %v", err)
	}
	clock.Advance(RoundDuration + 1)

	result, err := engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 2 {
		t.Fatalf("rounds closed = %d, want 2", len(result.RoundsClosed))
	}
	if result.NextRotation%RoundDuration != 0 || result.NextRotation <= clock.Now() {
		t.Fatalf("next rotation %d misaligned", result.NextRotation)
	}
	for _, asset := range []string{"SOL", "USDC"} {
		round, _ := state.RoundGet(asset, 0)
		if round.Status != RoundPendingRandomness {
			t.Fatalf("%s round status = %v", asset, round.Status)
		}
		if _, ok := state.RequestForRound(asset, 0); !ok {
			t.Fatalf("%s round has no randomness request", asset)
		}
	}
	reg, _ := state.RegistryGet()
	if reg.Active {
		t.Fatalf("rotation flag still armed after upkeep")
	}
	if len(emitted.ofType(TypeUpkeepPerformed)) != 1 {
		t.Fatalf("expected upkeep event")
	}

	// A second pass with nothing armed is rejected, not silently ignored.
	if _, err := engine.PerformUpkeep(); !errors.Is(err, ErrUpkeepNotDue) {
		t.Fatalf("expected ErrUpkeepNotDue, got %v", err)
	}
}

func TestPerformUpkeepSkipsEmptyRounds(t *testing.T) {
	engine, state, _, _, clock := newTestEngine(t)

	if _, err := engine.BuyTickets("SOL", playerA, 1); err != nil {
		t.Fatalf("buy: %v", err)
	}
	// Materialise an empty round in the USDC pool.
	empty, _, err := engine.getOrCreateActiveRound(state.registry, "USDC", clock.Now())
	if err != nil {
		t.Fatalf("create empty round: %v", err)
	}
	if err := state.RoundPut(empty); err != nil {
		t.Fatalf("store empty round: %v", err)
	}
	clock.Advance(RoundDuration + 1)

	result, err := engine.PerformUpkeep()
	if err != nil {
		t.Fatalf("upkeep: %v", err)
	}
	if len(result.RoundsClosed) != 1 || result.RoundsClosed[0].Asset != "SOL" {
		t.Fatalf("closed = %+v", result.RoundsClosed)
	}
	if len(result.Skipped) != 1 || result.Skipped[0].Asset != "USDC" {
		t.Fatalf("skipped = %+v", result.Skipped)
	}
	round, _ := state.RoundGet("USDC", 0)
	if round.Status != RoundOpen {
		t.Fatalf("empty round left status %v, want open", round.Status)
	}
}
