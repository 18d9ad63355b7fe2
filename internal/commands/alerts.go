package commands

import (
	"context"
	"crypto-alert-bot/internal/types"
	"crypto-alert-bot/lib/helpers"
	"crypto-alert-bot/lib/translation"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// AlertService is the alert API exposed to chat commands
type AlertService interface {
	AddAlert(ctx context.Context, owner, destination int64, symbol string, targetPrice float64) (int64, error)
	ListMyAlerts(ctx context.Context, owner int64) ([]types.Alert, error)
	DeleteAlert(ctx context.Context, owner, id int64) error
}

var argumentsRegexp = regexp.MustCompile(`^(\S+)\s*(.+)?$`)

// ParseArguments splits "<first> <rest>" command arguments
func ParseArguments(args string) (string, string) {
	matches := argumentsRegexp.FindStringSubmatch(strings.TrimSpace(args))
	if len(matches) < 2 {
		return "", ""
	}
	return matches[1], strings.TrimSpace(matches[2])
}

// ParseTarget reads a target price like "3000", "$3,000" or "0.5"
func ParseTarget(raw string) (float64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", "_", "").Replace(strings.TrimSpace(raw))
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, errors.Wrapf(types.ErrValidation, "invalid target price %q", raw)
	}
	return value, nil
}

// CommandAlert handles "/alert <symbol> <target>"
func CommandAlert(ctx context.Context, svc AlertService, owner, destination int64, args string) string {
	log.Debugf("processing command /alert with argument :%s", args)

	symbol, rawTarget := ParseArguments(args)
	if symbol == "" || rawTarget == "" {
		return translation.Translate("alert_command_usage")
	}

	target, err := ParseTarget(rawTarget)
	if err != nil {
		return translation.Translate("invalid_price_target", helpers.EscapeMarkdownV2(strings.ToLower(symbol)))
	}

	id, err := svc.AddAlert(ctx, owner, destination, symbol, target)
	if errors.Is(err, types.ErrValidation) {
		return translation.Translate("invalid_price_target", helpers.EscapeMarkdownV2(strings.ToLower(symbol)))
	}
	if err != nil {
		log.WithError(err).Error("failed to save alert")
		return translation.Translate("alert_save_failed")
	}

	return translation.Translate("alert_set_success",
		id,
		helpers.EscapeMarkdownV2(types.NormalizeSymbol(symbol)),
		helpers.FormatPriceUS(target, true),
	)
}

// CommandMyAlerts handles "/myalerts"
func CommandMyAlerts(ctx context.Context, svc AlertService, owner int64, now time.Time) string {
	alerts, err := svc.ListMyAlerts(ctx, owner)
	if err != nil {
		log.WithError(err).Error("error fetching alerts")
		return translation.Translate("fetch_alerts_failed")
	}

	if len(alerts) == 0 {
		return translation.Translate("no_active_alerts")
	}

	var alertList strings.Builder
	alertList.WriteString(translation.Translate("active_alerts_list_header"))
	for _, alert := range alerts {
		alertList.WriteString(translation.Translate("alert_list_item_format",
			alert.ID,
			helpers.EscapeMarkdownV2(alert.NormalizedSymbol()),
			helpers.FormatPriceUS(alert.TargetPrice, true),
			helpers.EscapeMarkdownV2(helpers.FormatTimeAgo(alert.CreatedAt, now)),
		))
	}

	return alertList.String()
}

// CommandDelete handles "/delete <id>"
func CommandDelete(ctx context.Context, svc AlertService, owner int64, args string) string {
	rawID, _ := ParseArguments(args)
	id, err := strconv.ParseInt(strings.TrimPrefix(rawID, "#"), 10, 64)
	if err != nil || id <= 0 {
		return translation.Translate("delete_usage")
	}

	err = svc.DeleteAlert(ctx, owner, id)
	switch {
	case errors.Is(err, types.ErrAlertNotFound):
		return translation.Translate("alert_not_found", id)
	case err != nil:
		log.WithError(err).Error("failed to delete alert")
		return translation.Translate("delete_failed")
	}

	return translation.Translate("alert_deleted", id)
}
