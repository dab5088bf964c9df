package lottery

import "errors"

// Validation errors: rejected before any mutation, retryable with corrected
// input.
var (
	ErrInvalidFeePercentage = errors.New("lottery: fee percentage exceeds maximum")
	ErrInvalidTicketCount   = errors.New("lottery: ticket count out of range")
	ErrAssetNotSupported    = errors.New("lottery: asset not supported")
	ErrAssetAlreadyExists   = errors.New("lottery: asset already supported")
	ErrInvalidUnitPrice     = errors.New("lottery: oracle returned invalid unit price")
)

// State errors: sequencing violations. Callers must re-read state before
// retrying.
var (
	ErrRoundNotOpen           = errors.New("lottery: round not open")
	ErrRoundNotClosed         = errors.New("lottery: round not closed")
	ErrRoundStillActive       = errors.New("lottery: round timer has not expired")
	ErrNoActiveRound          = errors.New("lottery: no active round")
	ErrNoTicketsInRound       = errors.New("lottery: round has no tickets")
	ErrRandomnessConsumed     = errors.New("lottery: randomness request already consumed")
	ErrRandomnessNotRequested = errors.New("lottery: no randomness request outstanding")
	ErrPrizeClaimed           = errors.New("lottery: prize already claimed")
	ErrNotWinner              = errors.New("lottery: caller is not the round winner")
	ErrUpkeepNotDue           = errors.New("lottery: upkeep not due")
	ErrLotteryPaused          = errors.New("lottery: engine paused")
	ErrUnauthorized           = errors.New("lottery: caller lacks authority")
	ErrRoundNotFound          = errors.New("lottery: round not found")
)

// Funds errors: recoverable once sufficient balance is available.
var (
	ErrInsufficientFunds = errors.New("lottery: insufficient funds")
)

// Wiring errors.
var (
	errNilState     = errors.New("lottery engine: state not configured")
	errNilPriceFeed = errors.New("lottery engine: price source not configured")
	errNilRail      = errors.New("lottery engine: payment rail not configured")
	errNoRegistry   = errors.New("lottery engine: registry not initialised")
)
