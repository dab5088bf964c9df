package lotteryd

import (
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"blocklotto/native/lottery"
	"blocklotto/observability"
)

// Service hosts the lottery engine for the daemon. Engine operations are not
// safe for concurrent use, so every call is serialised through the service
// mutex.
type Service struct {
	mu      sync.Mutex
	engine  *lottery.Engine
	metrics *observability.EngineMetrics
	logger  *slog.Logger
	now     func() time.Time

	paused bool
}

// ServiceOption customises the service instance.
type ServiceOption func(*Service)

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) { s.now = clock }
}

// NewService wraps the supplied engine.
func NewService(engine *lottery.Engine, opts ...ServiceOption) *Service {
	svc := &Service{
		engine:  engine,
		metrics: observability.Engine(),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// BuyTickets purchases tickets on behalf of a player.
func (s *Service) BuyTickets(asset string, player [20]byte, count uint32) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, err := s.engine.BuyTickets(asset, player, count)
	if err != nil {
		s.metrics.RecordError(asset, reasonFor(err))
		return nil, err
	}
	s.metrics.RecordTickets(asset, count)
	s.metrics.RecordPoolBalance(asset, round.PoolBalance)
	s.logger.Info("tickets purchased",
		"asset", round.Asset, "round", round.ID, "count", count)
	return round, nil
}

// ClaimPrize releases a round's prize to its winner.
func (s *Service) ClaimPrize(asset string, roundID uint64, caller [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.ClaimPrize(asset, roundID, caller); err != nil {
		s.metrics.RecordError(asset, reasonFor(err))
		return err
	}
	s.metrics.RecordClaim(asset)
	s.logger.Info("prize claimed", "asset", asset, "round", roundID)
	return nil
}

// FulfillRandomness routes a coordinator callback into the engine.
func (s *Service) FulfillRandomness(handle string, randomness uint64) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, err := s.engine.FulfillRandomness(handle, randomness)
	if err != nil {
		return nil, err
	}
	s.logger.Info("randomness fulfilled",
		"asset", round.Asset, "round", round.ID, "winner_ticket", round.WinnerTicketIndex)
	return round, nil
}

// ResolveRound lets the operator resolve a stuck round with supplied entropy.
func (s *Service) ResolveRound(caller [20]byte, asset string, roundID uint64, randomness uint64) (*lottery.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	round, err := s.engine.ResolveWithRandomness(caller, asset, roundID, randomness)
	if err != nil {
		return nil, err
	}
	s.logger.Warn("round resolved by operator", "asset", asset, "round", roundID)
	return round, nil
}

// RunUpkeep executes one scheduler pass. It reports whether upkeep was due.
func (s *Service) RunUpkeep() (*lottery.UpkeepResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return nil, false, nil
	}
	due, err := s.engine.CheckDue(s.now().Unix())
	if err != nil || !due {
		return nil, false, err
	}
	result, err := s.engine.PerformUpkeep()
	if err != nil {
		return nil, true, err
	}
	for _, closed := range result.RoundsClosed {
		s.metrics.RecordRoundClosed(closed.Asset)
	}
	s.logger.Info("upkeep performed",
		"closed", len(result.RoundsClosed), "skipped", len(result.Skipped),
		"next_rotation", result.NextRotation)
	return result, true, nil
}

// Pause engages the emergency pause. New rounds stop opening and the
// scheduler goes idle until Resume.
func (s *Service) Pause(caller [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.EmergencyPause(caller); err != nil {
		return err
	}
	s.paused = true
	observability.Upkeep().SetPause(true)
	s.logger.Warn("emergency pause engaged")
	return nil
}

// Resume lifts the emergency pause.
func (s *Service) Resume(caller [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.Resume(caller); err != nil {
		return err
	}
	s.paused = false
	observability.Upkeep().SetPause(false)
	s.logger.Info("emergency pause lifted")
	return nil
}

// Paused reports whether the scheduler is idle.
func (s *Service) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// UpdateFee forwards a fee change to the engine.
func (s *Service) UpdateFee(caller [20]byte, pct uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.UpdateFeePercentage(caller, pct)
}

// UpdateBeneficiary forwards a treasury change to the engine.
func (s *Service) UpdateBeneficiary(caller, beneficiary [20]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.UpdateBeneficiary(caller, beneficiary)
}

// AddAsset registers a new asset pool.
func (s *Service) AddAsset(caller [20]byte, asset lottery.SupportedAsset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AddSupportedAsset(caller, asset)
}

// WithdrawCommission releases accumulated commission to the beneficiary.
func (s *Service) WithdrawCommission(caller [20]byte, asset string, amount *big.Int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.WithdrawCommission(caller, asset, amount); err != nil {
		s.metrics.RecordError(asset, reasonFor(err))
		return err
	}
	s.logger.Info("commission withdrawn", "asset", asset, "amount", amount.String())
	return nil
}

// Registry returns the configuration view.
func (s *Service) Registry() (*lottery.RegistryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Registry()
}

// RoundInfo returns one round's view.
func (s *Service) RoundInfo(asset string, roundID uint64) (*lottery.RoundView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RoundInfo(asset, roundID)
}

// PlayerTickets returns a player's holdings in one round.
func (s *Service) PlayerTickets(asset string, roundID uint64, player [20]byte) (*lottery.PlayerTicketsView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.PlayerTickets(asset, roundID, player)
}

// TicketPrice quotes the current per-ticket price for an asset.
func (s *Service) TicketPrice(asset string) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.TicketPrice(asset)
}

// reasonFor maps engine errors to stable metric labels.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, lottery.ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, lottery.ErrRoundNotClosed):
		return "round_not_closed"
	case errors.Is(err, lottery.ErrInvalidTicketCount):
		return "ticket_count"
	case errors.Is(err, lottery.ErrAssetNotSupported):
		return "asset_unsupported"
	case errors.Is(err, lottery.ErrLotteryPaused):
		return "paused"
	case errors.Is(err, lottery.ErrPrizeClaimed):
		return "prize_claimed"
	case errors.Is(err, lottery.ErrNotWinner):
		return "not_winner"
	case errors.Is(err, lottery.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, lottery.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
