package lottery

import (
	"fmt"
	"math/big"
)

// QuoteFeed supplies the USD exchange rate for a price feed identifier, e.g.
// "BTC/USD" or "SOL/USD". Rates are quoted per whole unit of the asset.
type QuoteFeed interface {
	Rate(feed string) (*big.Rat, error)
}

const satoshisPerBTC = 100_000_000

// FeedPricer derives the per-ticket price in base units of a purchase asset
// from the canonical BTC-denominated ticket price and the asset's USD quote.
type FeedPricer struct {
	feed    QuoteFeed
	btcFeed string
}

// NewFeedPricer wires a pricer against the supplied quote feed. btcFeed names
// the feed carrying the BTC/USD rate.
func NewFeedPricer(feed QuoteFeed, btcFeed string) *FeedPricer {
	return &FeedPricer{feed: feed, btcFeed: btcFeed}
}

// UnitPrice implements PriceSource. The conversion rounds up so the pool is
// never undercharged by truncation.
func (p *FeedPricer) UnitPrice(asset SupportedAsset) (*big.Int, error) {
	if p == nil || p.feed == nil {
		return nil, errNilPriceFeed
	}
	btcRate, err := p.feed.Rate(p.btcFeed)
	if err != nil {
		return nil, fmt.Errorf("lottery: btc quote: %w", err)
	}
	assetRate, err := p.feed.Rate(asset.PriceFeed)
	if err != nil {
		return nil, fmt.Errorf("lottery: %s quote: %w", asset.Symbol, err)
	}
	if btcRate == nil || btcRate.Sign() <= 0 || assetRate == nil || assetRate.Sign() <= 0 {
		return nil, ErrInvalidUnitPrice
	}
	// ticketUSD = satoshis/1e8 * BTCUSD
	ticketUSD := new(big.Rat).Mul(
		new(big.Rat).SetFrac64(int64(TicketPriceSatoshis), satoshisPerBTC),
		btcRate,
	)
	// units = ticketUSD / assetUSD scaled into the asset's base denomination.
	units := new(big.Rat).Quo(ticketUSD, assetRate)
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(asset.Decimals)), nil)
	units.Mul(units, new(big.Rat).SetInt(scale))

	price := new(big.Int).Div(units.Num(), units.Denom())
	if new(big.Int).Mul(price, units.Denom()).Cmp(units.Num()) != 0 {
		price.Add(price, big.NewInt(1))
	}
	if price.Sign() <= 0 {
		return nil, ErrInvalidUnitPrice
	}
	return price, nil
}

// StaticPricer quotes a fixed base-unit price per asset symbol. It backs
// deployments without live feeds and deterministic tests.
type StaticPricer map[string]*big.Int

// UnitPrice implements PriceSource.
func (s StaticPricer) UnitPrice(asset SupportedAsset) (*big.Int, error) {
	price, ok := s[asset.Symbol]
	if !ok || price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidUnitPrice
	}
	return new(big.Int).Set(price), nil
}
