package price

import (
	"context"
	"crypto-alert-bot/internal/types"
	"strings"
	"sync"
	"time"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

const quoteCurrency = "USD"

// TickerSource lists current tickers in a single request, e.g. coinpaprika's Tickers.List
type TickerSource func(options *coinpaprika.TickersOptions) ([]*coinpaprika.Ticker, error)

// Lookup resolves user supplied symbols to USD prices using coinpaprika tickers
type Lookup struct {
	list     TickerSource
	cacheTTL time.Duration

	mu      sync.Mutex
	tickers []*coinpaprika.Ticker
	fetched time.Time
	now     func() time.Time
}

// NewClient builds a coinpaprika client, using the pro API when a key is set
func NewClient(apiProKey string) *coinpaprika.Client {
	if apiProKey != "" {
		return coinpaprika.NewClient(nil, coinpaprika.WithAPIKey(apiProKey))
	}
	return coinpaprika.NewClient(nil)
}

// NewLookup creates a Lookup. Ticker lists younger than cacheTTL are reused by
// Quote; FetchPrices always asks the source.
func NewLookup(list TickerSource, cacheTTL time.Duration) *Lookup {
	return &Lookup{
		list:     list,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// FetchPrices returns the latest USD price for each symbol it could resolve,
// keyed by the uppercased symbol. Failures are logged and yield an empty map.
func (l *Lookup) FetchPrices(ctx context.Context, symbols []string) map[string]float64 {
	prices := make(map[string]float64)
	if len(symbols) == 0 {
		return prices
	}
	if err := ctx.Err(); err != nil {
		log.WithError(err).Warn("price lookup cancelled")
		return prices
	}

	tickers, err := l.refresh()
	if err != nil {
		log.WithError(err).Error("❌ Failed to fetch cryptocurrency prices")
		return prices
	}

	for symbol, ticker := range ResolveSymbols(tickers, symbols) {
		if p, ok := usdPrice(ticker); ok {
			prices[symbol] = p
		}
	}

	log.Debugf("resolved %d of %d symbols", len(prices), len(symbols))
	return prices
}

// Quote returns the current price of a single symbol along with the ticker it
// was resolved to. Recent ticker lists are served from memory.
func (l *Lookup) Quote(ctx context.Context, symbol string) (*coinpaprika.Ticker, float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	tickers, err := l.cached()
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not fetch tickers")
	}

	key := types.NormalizeSymbol(symbol)
	ticker, ok := ResolveSymbols(tickers, []string{key})[key]
	if !ok {
		return nil, 0, errors.Errorf("invalid coin ticker or symbol: %s", symbol)
	}

	p, ok := usdPrice(ticker)
	if !ok {
		return ticker, 0, errors.Errorf("coin %s is not actively traded and does not have current price", symbol)
	}
	return ticker, p, nil
}

func (l *Lookup) cached() ([]*coinpaprika.Ticker, error) {
	l.mu.Lock()
	tickers, fetched := l.tickers, l.fetched
	l.mu.Unlock()

	if tickers != nil && l.now().Sub(fetched) < l.cacheTTL {
		return tickers, nil
	}
	return l.refresh()
}

func (l *Lookup) refresh() ([]*coinpaprika.Ticker, error) {
	tickers, err := l.list(&coinpaprika.TickersOptions{Quotes: quoteCurrency})
	if err != nil {
		return nil, errors.Wrap(err, "could not list tickers")
	}

	l.mu.Lock()
	l.tickers = tickers
	l.fetched = l.now()
	l.mu.Unlock()

	return tickers, nil
}

// ResolveSymbols maps each requested symbol (uppercased) to a ticker. A request
// matches a ticker by symbol or by coinpaprika id ("btc-bitcoin"). When several
// coins share a symbol the best ranked one wins; unranked coins lose to ranked ones.
func ResolveSymbols(tickers []*coinpaprika.Ticker, symbols []string) map[string]*coinpaprika.Ticker {
	wanted := lo.SliceToMap(symbols, func(s string) (string, struct{}) {
		return types.NormalizeSymbol(s), struct{}{}
	})

	resolved := make(map[string]*coinpaprika.Ticker, len(wanted))
	byID := make(map[string]bool)
	for _, ticker := range tickers {
		if ticker == nil {
			continue
		}

		if ticker.ID != nil {
			id := strings.ToUpper(*ticker.ID)
			if _, ok := wanted[id]; ok {
				resolved[id] = ticker
				byID[id] = true
			}
		}

		if ticker.Symbol == nil {
			continue
		}
		symbol := types.NormalizeSymbol(*ticker.Symbol)
		if _, ok := wanted[symbol]; !ok || byID[symbol] {
			continue
		}
		if current, ok := resolved[symbol]; !ok || betterRank(ticker, current) {
			resolved[symbol] = ticker
		}
	}

	return resolved
}

func betterRank(candidate, current *coinpaprika.Ticker) bool {
	return rankOf(candidate) < rankOf(current)
}

func rankOf(t *coinpaprika.Ticker) int64 {
	if t.Rank == nil || int64(*t.Rank) <= 0 {
		return 1<<63 - 1
	}
	return int64(*t.Rank)
}

func usdPrice(t *coinpaprika.Ticker) (float64, bool) {
	quote, ok := t.Quotes[quoteCurrency]
	if !ok || quote.Price == nil || *quote.Price <= 0 {
		return 0, false
	}
	return *quote.Price, true
}
