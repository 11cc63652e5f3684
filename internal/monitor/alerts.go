// Package monitor watches engine events and raises alerts on price moves,
// large trades and graduations.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

// AlertType represents different types of alerts
type AlertType string

const (
	AlertPriceMove  AlertType = "price_move"
	AlertLargeTrade AlertType = "large_trade"
	AlertGraduation AlertType = "graduation"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert represents a triggered alert
type Alert struct {
	ID        string           `json:"id"`
	Type      AlertType        `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Listing   domain.ListingID `json:"listing_id"`
	Message   string           `json:"message"`
	Severity  Severity         `json:"severity"`

	// Price alerts only.
	Price     string  `json:"price,omitempty"`
	Change    float64 `json:"change_percent,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// AlertConfig holds alert configuration
type AlertConfig struct {
	// PriceMovePercent triggers on a move of at least this size in either
	// direction, measured from the last alerted price. Zero disables it.
	PriceMovePercent float64
	// CriticalMovePercent upgrades a price alert to critical.
	CriticalMovePercent float64
	// LargeTrade is the currency size of a notable purchase or swap. Nil
	// disables it.
	LargeTrade *uint256.Int
	// Cooldown applies per listing and alert type, in event time.
	Cooldown time.Duration
}

func DefaultAlertConfig() AlertConfig {
	return AlertConfig{
		PriceMovePercent:    10,
		CriticalMovePercent: 50,
		LargeTrade:          units.Ether("1"),
		Cooldown:            0,
	}
}

// AlertHandler is called when an alert is triggered
type AlertHandler func(alert Alert)

type cooldownKey struct {
	listing domain.ListingID
	typ     AlertType
}

// AlertManager is an events.Handler that turns engine events into alerts.
type AlertManager struct {
	mu     sync.RWMutex
	config AlertConfig
	logger *zap.Logger

	alerts    []Alert
	maxAlerts int
	// reference price per listing, moved on every price alert
	baseline map[domain.ListingID]decimal.Decimal
	last     map[cooldownKey]time.Time

	handlers []AlertHandler
}

func NewAlertManager(config AlertConfig, maxAlerts int, logger *zap.Logger) *AlertManager {
	if maxAlerts <= 0 {
		maxAlerts = 1000
	}
	return &AlertManager{
		config:    config,
		logger:    logger.Named("monitor"),
		alerts:    make([]Alert, 0, 64),
		maxAlerts: maxAlerts,
		baseline:  make(map[domain.ListingID]decimal.Decimal),
		last:      make(map[cooldownKey]time.Time),
	}
}

// AddHandler adds an alert handler. Handlers run on the bus goroutine and
// must not block.
func (am *AlertManager) AddHandler(handler AlertHandler) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.handlers = append(am.handlers, handler)
}

// Handle implements events.Handler.
func (am *AlertManager) Handle(_ context.Context, event events.Event) error {
	am.mu.Lock()
	triggered := am.check(event)
	handlers := am.handlers
	am.mu.Unlock()

	for _, alert := range triggered {
		am.log(alert)
		for _, h := range handlers {
			h(alert)
		}
	}
	return nil
}

func (am *AlertManager) check(event events.Event) []Alert {
	var out []Alert
	id := event.Listing()
	at := event.Timestamp()

	switch e := event.(type) {
	case events.PurchaseEvent:
		if a, ok := am.largeTrade(id, at, e.Cost, "purchase"); ok {
			out = append(out, a)
		}
		if a, ok := am.priceMove(id, at, units.ToDecimal(e.Price, units.Decimals)); ok {
			out = append(out, a)
		}

	case events.GraduatedEvent:
		out = append(out, am.record(Alert{
			Type:      AlertGraduation,
			Timestamp: at,
			Listing:   id,
			Severity:  SeverityInfo,
			Message: fmt.Sprintf("Listing %d graduated: raised %s, %d contributors",
				id, units.FormatFixed(e.Raised, units.Decimals, 6), e.Contributors),
		}))

	case events.PoolSeededEvent:
		// the pool opens at its own price; start measuring from there
		if p, ok := spot(e.CurrencyReserve, e.TokenReserve); ok {
			am.baseline[id] = p
		}

	case events.SwapEvent:
		size := e.AmountIn
		if e.Direction == events.TokenToCurrency {
			size = e.AmountOut
		}
		if a, ok := am.largeTrade(id, at, size, "swap"); ok {
			out = append(out, a)
		}
		if p, ok := spot(e.CurrencyReserve, e.TokenReserve); ok {
			if a, ok := am.priceMove(id, at, p); ok {
				out = append(out, a)
			}
		}
	}
	return out
}

// spot is currency per token from pool reserves.
func spot(currency, tokens *uint256.Int) (decimal.Decimal, bool) {
	if domain.IsZero(tokens) || currency == nil {
		return decimal.Zero, false
	}
	c := units.ToDecimal(currency, units.Decimals)
	t := units.ToDecimal(tokens, units.Decimals)
	return c.DivRound(t, 18), true
}

func (am *AlertManager) largeTrade(id domain.ListingID, at time.Time, size *uint256.Int, kind string) (Alert, bool) {
	if am.config.LargeTrade == nil || size == nil || size.Lt(am.config.LargeTrade) {
		return Alert{}, false
	}
	if am.cooling(id, AlertLargeTrade, at) {
		return Alert{}, false
	}
	return am.record(Alert{
		Type:      AlertLargeTrade,
		Timestamp: at,
		Listing:   id,
		Severity:  SeverityInfo,
		Message: fmt.Sprintf("Large %s on listing %d: %s",
			kind, id, units.FormatFixed(size, units.Decimals, 6)),
	}), true
}

func (am *AlertManager) priceMove(id domain.ListingID, at time.Time, price decimal.Decimal) (Alert, bool) {
	base, seen := am.baseline[id]
	if !seen || base.IsZero() {
		am.baseline[id] = price
		return Alert{}, false
	}
	if am.config.PriceMovePercent <= 0 {
		return Alert{}, false
	}

	change, _ := price.Sub(base).Div(base).Mul(decimal.NewFromInt(100)).Float64()
	magnitude := change
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < am.config.PriceMovePercent || am.cooling(id, AlertPriceMove, at) {
		return Alert{}, false
	}
	am.baseline[id] = price

	severity := SeverityWarning
	if am.config.CriticalMovePercent > 0 && magnitude >= am.config.CriticalMovePercent {
		severity = SeverityCritical
	}
	verb := "rose"
	if change < 0 {
		verb = "dropped"
	}
	return am.record(Alert{
		Type:      AlertPriceMove,
		Timestamp: at,
		Listing:   id,
		Severity:  severity,
		Message:   fmt.Sprintf("Price %s %.1f%% on listing %d", verb, magnitude, id),
		Price:     price.StringFixed(8),
		Change:    change,
		Threshold: am.config.PriceMovePercent,
	}), true
}

// cooling reports whether an alert of typ fired for id within Cooldown and
// otherwise starts a new cooldown window.
func (am *AlertManager) cooling(id domain.ListingID, typ AlertType, at time.Time) bool {
	key := cooldownKey{listing: id, typ: typ}
	if last, ok := am.last[key]; ok && am.config.Cooldown > 0 && at.Sub(last) < am.config.Cooldown {
		return true
	}
	am.last[key] = at
	return false
}

func (am *AlertManager) record(alert Alert) Alert {
	alert.ID = uuid.NewString()
	if len(am.alerts) >= am.maxAlerts {
		am.alerts = am.alerts[1:]
	}
	am.alerts = append(am.alerts, alert)
	return alert
}

func (am *AlertManager) log(alert Alert) {
	fields := []zap.Field{
		zap.String("type", string(alert.Type)),
		zap.Uint64("listing_id", uint64(alert.Listing)),
		zap.String("message", alert.Message),
	}
	switch alert.Severity {
	case SeverityCritical:
		am.logger.Error("Alert triggered", fields...)
	case SeverityWarning:
		am.logger.Warn("Alert triggered", fields...)
	default:
		am.logger.Info("Alert triggered", fields...)
	}
}

// Recent returns up to limit most recent alerts, oldest first.
func (am *AlertManager) Recent(limit int) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	if limit <= 0 || limit > len(am.alerts) {
		limit = len(am.alerts)
	}
	result := make([]Alert, limit)
	copy(result, am.alerts[len(am.alerts)-limit:])
	return result
}

// ByListing returns alerts for one listing.
func (am *AlertManager) ByListing(id domain.ListingID) []Alert {
	am.mu.RLock()
	defer am.mu.RUnlock()

	var result []Alert
	for _, alert := range am.alerts {
		if alert.Listing == id {
			result = append(result, alert)
		}
	}
	return result
}

func (am *AlertManager) Config() AlertConfig {
	am.mu.RLock()
	defer am.mu.RUnlock()
	return am.config
}
