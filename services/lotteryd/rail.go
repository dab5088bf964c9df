package lotteryd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"blocklotto/native/lottery"
	"blocklotto/storage"
)

// ErrRailInsufficient is returned when a transfer would overdraw the sender.
// It wraps the engine's funds sentinel so rail shortfalls classify the same
// way as vault shortfalls everywhere the error surfaces.
var ErrRailInsufficient = fmt.Errorf("lotteryd: insufficient balance: %w", lottery.ErrInsufficientFunds)

// LedgerRail settles transfers against per-address balances held in the local
// store. It backs the engine's payment rail in deployments where custody is
// managed by the daemon itself.
type LedgerRail struct {
	mu sync.Mutex
	db storage.Database
}

// NewLedgerRail wraps the supplied database.
func NewLedgerRail(db storage.Database) *LedgerRail {
	return &LedgerRail{db: db}
}

func balanceKey(asset string, addr [20]byte) []byte {
	return []byte(fmt.Sprintf("rail/balance/%s/%s", asset, hex.EncodeToString(addr[:])))
}

func (r *LedgerRail) balance(asset string, addr [20]byte) (*big.Int, error) {
	raw, err := r.db.Get(balanceKey(asset, addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

func (r *LedgerRail) setBalance(asset string, addr [20]byte, amount *big.Int) error {
	return r.db.Put(balanceKey(asset, addr), amount.Bytes())
}

// Transfer moves funds between two accounts, rejecting overdrafts. Both legs
// commit under the rail lock so concurrent settlements never interleave.
func (r *LedgerRail) Transfer(from, to [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("lotteryd: invalid transfer amount")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	fromBal, err := r.balance(asset, from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrRailInsufficient
	}
	toBal, err := r.balance(asset, to)
	if err != nil {
		return err
	}
	if err := r.setBalance(asset, from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return r.setBalance(asset, to, new(big.Int).Add(toBal, amount))
}

// Deposit credits an account, typically mirroring an on-ramp settlement.
func (r *LedgerRail) Deposit(addr [20]byte, asset string, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("lotteryd: invalid deposit amount")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bal, err := r.balance(asset, addr)
	if err != nil {
		return err
	}
	return r.setBalance(asset, addr, new(big.Int).Add(bal, amount))
}

// Balance reports the funds held for one account.
func (r *LedgerRail) Balance(addr [20]byte, asset string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balance(asset, addr)
}

var _ lottery.PaymentRail = (*LedgerRail)(nil)
