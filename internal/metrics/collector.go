// Package metrics exposes engine activity as Prometheus metrics, fed from
// the event bus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

const namespace = "launchpad"

// Collector owns its registry so several instances can live in one process.
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	events      *prometheus.CounterVec
	volume      *prometheus.CounterVec
	graduations prometheus.Counter
	raised      *prometheus.GaugeVec
	reserves    *prometheus.GaugeVec
	treasury    prometheus.Gauge
}

func NewCollector(logger *zap.Logger) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		logger:   logger.Named("metrics"),

		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Engine events by type",
			},
			[]string{"type"},
		),
		volume: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "volume_total",
				Help:      "Currency traded, by venue",
			},
			[]string{"venue"},
		),
		graduations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graduations_total",
			Help:      "Listings that filled their sale target",
		}),
		raised: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "listing_raised",
				Help:      "Currency raised by a listing's sale",
			},
			[]string{"listing"},
		),
		reserves: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pool_reserve",
				Help:      "Current pool reserves",
			},
			[]string{"listing", "side"},
		),
		treasury: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "treasury_balance",
			Help:      "Listing fees held after the last withdrawal",
		}),
	}

	c.registry.MustRegister(c.events, c.volume, c.graduations, c.raised, c.reserves, c.treasury)
	return c
}

func toFloat(x *uint256.Int) float64 {
	f, _ := units.ToDecimal(x, units.Decimals).Float64()
	return f
}

// Handle implements events.Handler.
func (c *Collector) Handle(_ context.Context, event events.Event) error {
	c.events.WithLabelValues(string(event.Type())).Inc()
	listing := strconv.FormatUint(uint64(event.Listing()), 10)

	switch e := event.(type) {
	case events.PurchaseEvent:
		c.volume.WithLabelValues("curve").Add(toFloat(e.Cost))
		c.raised.WithLabelValues(listing).Set(toFloat(e.Raised))
	case events.GraduatedEvent:
		c.graduations.Inc()
	case events.PoolSeededEvent:
		c.setReserves(listing, e.CurrencyReserve, e.TokenReserve)
	case events.SwapEvent:
		size := e.AmountIn
		if e.Direction == events.TokenToCurrency {
			size = e.AmountOut
		}
		c.volume.WithLabelValues("pool").Add(toFloat(size))
		c.setReserves(listing, e.CurrencyReserve, e.TokenReserve)
	case events.FeesWithdrawnEvent:
		c.treasury.Set(toFloat(e.Balance))
	}
	return nil
}

func (c *Collector) setReserves(listing string, currency, tokens *uint256.Int) {
	c.reserves.WithLabelValues(listing, "currency").Set(toFloat(currency))
	c.reserves.WithLabelValues(listing, "token").Set(toFloat(tokens))
}

// Registry is exposed for tests and for callers adding their own metrics.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server for /metrics on addr and returns its
// shutdown function.
func (c *Collector) Serve(addr string) func(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		c.logger.Info("Metrics endpoint listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv.Shutdown
}
