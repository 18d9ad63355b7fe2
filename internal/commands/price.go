package commands

import (
	"context"
	"crypto-alert-bot/lib/helpers"
	"crypto-alert-bot/lib/translation"
	"strings"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Quoter resolves one symbol to its ticker and USD price
type Quoter interface {
	Quote(ctx context.Context, symbol string) (*coinpaprika.Ticker, float64, error)
}

func CommandPrice(ctx context.Context, q Quoter, argument string) (string, error) {
	log.Debugf("processing command /price with argument :%s", argument)

	symbol := strings.TrimSpace(argument)
	if symbol == "" {
		return translation.Translate("price_usage"), nil
	}
	symbol = strings.Fields(symbol)[0]

	ticker, usd, err := q.Quote(ctx, symbol)
	if err != nil {
		return "", errors.Wrap(err, "command /price")
	}

	name := strings.ToUpper(symbol)
	if ticker.Name != nil {
		name = *ticker.Name
	}
	tickerSymbol := strings.ToUpper(symbol)
	if ticker.Symbol != nil {
		tickerSymbol = *ticker.Symbol
	}

	return translation.Translate("price_reply",
		helpers.EscapeMarkdownV2(name),
		helpers.EscapeMarkdownV2(tickerSymbol),
		helpers.FormatPriceUS(usd, true),
	), nil
}
