package lotteryd

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"blocklotto/native/lottery"
)

// ConfigFeed serves oracle rates pinned in the service configuration. Rates
// are quoted in USD per whole unit, e.g. "SOL/USD" -> "200".
type ConfigFeed struct {
	mu    sync.RWMutex
	rates map[string]*big.Rat
}

// NewConfigFeed parses the configured rate table.
func NewConfigFeed(raw map[string]string) (*ConfigFeed, error) {
	rates := make(map[string]*big.Rat, len(raw))
	for feed, value := range raw {
		feed = strings.TrimSpace(feed)
		rate, ok := new(big.Rat).SetString(strings.TrimSpace(value))
		if !ok {
			return nil, fmt.Errorf("lotteryd: invalid rate %q for feed %s", value, feed)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("lotteryd: non-positive rate for feed %s", feed)
		}
		rates[feed] = rate
	}
	return &ConfigFeed{rates: rates}, nil
}

// Rate returns the pinned rate for the feed.
func (f *ConfigFeed) Rate(feed string) (*big.Rat, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rate, ok := f.rates[feed]
	if !ok {
		return nil, fmt.Errorf("lotteryd: no rate for feed %s", feed)
	}
	return new(big.Rat).Set(rate), nil
}

// SetRate updates one feed, used by operators to refresh quotes at runtime.
func (f *ConfigFeed) SetRate(feed string, rate *big.Rat) error {
	if rate == nil || rate.Sign() <= 0 {
		return fmt.Errorf("lotteryd: non-positive rate for feed %s", feed)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates[strings.TrimSpace(feed)] = new(big.Rat).Set(rate)
	return nil
}

var _ lottery.QuoteFeed = (*ConfigFeed)(nil)
