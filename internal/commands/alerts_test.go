package commands

import (
	"context"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/translation"
	"os"
	"testing"
	"time"

	"github.com/coinpaprika/coinpaprika-api-go-client/v2/coinpaprika"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	translation.Configure("../../locales", "en")
	os.Exit(m.Run())
}

type fakeService struct {
	added   []types.Alert
	alerts  []types.Alert
	deleted []int64
	addErr  error
	listErr error
}

func (f *fakeService) AddAlert(_ context.Context, owner, destination int64, symbol string, target float64) (int64, error) {
	if f.addErr != nil {
		return 0, f.addErr
	}
	if target <= 0 {
		return 0, errors.Wrap(types.ErrValidation, "target")
	}
	f.added = append(f.added, types.Alert{UserID: owner, ChatID: destination, Symbol: symbol, TargetPrice: target})
	return int64(len(f.added)), nil
}

func (f *fakeService) ListMyAlerts(context.Context, int64) ([]types.Alert, error) {
	return f.alerts, f.listErr
}

func (f *fakeService) DeleteAlert(_ context.Context, _ int64, id int64) error {
	for _, a := range f.alerts {
		if a.ID == id {
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return errors.Wrapf(types.ErrAlertNotFound, "alert %d", id)
}

func TestParseArguments(t *testing.T) {
	symbol, rest := ParseArguments("  eth   3000 ")
	assert.Equal(t, "eth", symbol)
	assert.Equal(t, "3000", rest)

	symbol, rest = ParseArguments("btc")
	assert.Equal(t, "btc", symbol)
	assert.Empty(t, rest)

	symbol, rest = ParseArguments("")
	assert.Empty(t, symbol)
	assert.Empty(t, rest)
}

func TestParseTarget(t *testing.T) {
	for raw, want := range map[string]float64{
		"3000":    3000,
		"$3,000":  3000,
		"0.00042": 0.00042,
		"1_000.5": 1000.5,
	} {
		got, err := ParseTarget(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseTarget("moon")
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestCommandAlert(t *testing.T) {
	svc := &fakeService{}

	reply := CommandAlert(context.Background(), svc, 7, 70, "eth 3000")
	require.Len(t, svc.added, 1)
	assert.Equal(t, types.Alert{UserID: 7, ChatID: 70, Symbol: "eth", TargetPrice: 3000}, svc.added[0])
	assert.Contains(t, reply, "*ETH*")
	assert.Contains(t, reply, "3,000")
	assert.Contains(t, reply, `\#1`)
}

func TestCommandAlert_BadInput(t *testing.T) {
	svc := &fakeService{}

	assert.Contains(t, CommandAlert(context.Background(), svc, 7, 70, "eth"), "Usage: /alert")
	assert.Contains(t, CommandAlert(context.Background(), svc, 7, 70, "eth moon"), "positive number")
	assert.Contains(t, CommandAlert(context.Background(), svc, 7, 70, "eth -5"), "positive number")
	assert.Empty(t, svc.added)

	svc.addErr = errors.New("database is locked")
	assert.Contains(t, CommandAlert(context.Background(), svc, 7, 70, "eth 1"), "Failed to save alert")
}

func TestCommandMyAlerts(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc := &fakeService{}

	assert.Contains(t, CommandMyAlerts(context.Background(), svc, 7, now), "no active alerts")

	svc.alerts = []types.Alert{
		{ID: 3, Symbol: "btc", TargetPrice: 50000, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 9, Symbol: "ETH", TargetPrice: 3000.5, CreatedAt: now.Add(-48 * time.Hour)},
	}
	reply := CommandMyAlerts(context.Background(), svc, 7, now)
	assert.Contains(t, reply, "Your active alerts")
	assert.Contains(t, reply, `\#3 *BTC*`)
	assert.Contains(t, reply, "2 hours ago")
	assert.Contains(t, reply, `\#9 *ETH*`)

	svc.listErr = errors.New("boom")
	assert.Contains(t, CommandMyAlerts(context.Background(), svc, 7, now), "Failed to fetch")
}

func TestCommandDelete(t *testing.T) {
	svc := &fakeService{alerts: []types.Alert{{ID: 3, Symbol: "BTC", TargetPrice: 1}}}

	assert.Contains(t, CommandDelete(context.Background(), svc, 7, "3"), `Alert \#3 deleted`)
	assert.Equal(t, []int64{3}, svc.deleted)

	assert.Contains(t, CommandDelete(context.Background(), svc, 7, "#4"), "not found")
	assert.Contains(t, CommandDelete(context.Background(), svc, 7, "abc"), "Usage: /delete")
	assert.Contains(t, CommandDelete(context.Background(), svc, 7, ""), "Usage: /delete")
}

type fakeQuoter struct{}

func (fakeQuoter) Quote(_ context.Context, symbol string) (*coinpaprika.Ticker, float64, error) {
	if symbol != "btc" {
		return nil, 0, errors.New("invalid coin")
	}
	name, sym := "Bitcoin", "BTC"
	return &coinpaprika.Ticker{Name: &name, Symbol: &sym}, 64250.12, nil
}

func TestCommandPrice(t *testing.T) {
	reply, err := CommandPrice(context.Background(), fakeQuoter{}, "btc")
	require.NoError(t, err)
	assert.Contains(t, reply, "*Bitcoin*")
	assert.Contains(t, reply, "64,250")

	reply, err = CommandPrice(context.Background(), fakeQuoter{}, "")
	require.NoError(t, err)
	assert.Contains(t, reply, "/price btc")

	_, err = CommandPrice(context.Background(), fakeQuoter{}, "nope")
	assert.Error(t, err)
}
