package alert

import (
	"context"
	"crypto-alert-bot/internal/types"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAlert_Validation(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.service.AddAlert(context.Background(), 1, 100, "BTC", 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrValidation))

	_, err = f.service.AddAlert(context.Background(), 1, 100, "BTC", -5)
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestListMyAlerts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	_, _ = f.service.AddAlert(ctx, 1, 100, "BTC", 50000)
	_, _ = f.service.AddAlert(ctx, 1, 100, "ETH", 3000)
	_, _ = f.service.AddAlert(ctx, 2, 200, "SOL", 200)

	mine, err := f.service.ListMyAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "BTC", mine[0].Symbol)
	assert.Equal(t, "ETH", mine[1].Symbol)
}

func TestDeleteAlert(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	id, err := f.service.AddAlert(ctx, 1, 100, "BTC", 50000)
	require.NoError(t, err)

	require.NoError(t, f.service.DeleteAlert(ctx, 1, id))
	assert.Equal(t, types.StatusDeactivated, f.status(t, id))

	err = f.service.DeleteAlert(ctx, 1, id)
	assert.True(t, errors.Is(err, types.ErrAlertNotFound), "inactive alerts are not listed for the owner")
}

func TestDeleteAlert_OtherOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	id, err := f.service.AddAlert(ctx, 1, 100, "BTC", 50000)
	require.NoError(t, err)

	err = f.service.DeleteAlert(ctx, 2, id)
	assert.True(t, errors.Is(err, types.ErrAlertNotFound))
	assert.Equal(t, types.StatusActive, f.status(t, id))

	err = f.service.DeleteAlert(ctx, 1, 9999)
	assert.True(t, errors.Is(err, types.ErrAlertNotFound))
}
