// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/monitor"
	"github.com/rovshanmuradov/launchpad/internal/pool"
	"github.com/rovshanmuradov/launchpad/internal/sale"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

const envPrefix = "LAUNCHPAD"

type Config struct {
	Curve    CurveConfig    `mapstructure:"curve"`
	Sale     SaleConfig     `mapstructure:"sale"`
	Pool     PoolConfig     `mapstructure:"pool"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Events   EventsConfig   `mapstructure:"events"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Scenario ScenarioConfig `mapstructure:"scenario"`
	Export   ExportConfig   `mapstructure:"export"`
}

// Amounts are decimal strings in whole units ("0.0001"). Currency and
// tokens both use units.Decimals; precision is not configurable.
type CurveConfig struct {
	FloorPrice string `mapstructure:"floor_price"`
	PriceStep  string `mapstructure:"price_step"`
	BandWidth  string `mapstructure:"band_width"`
}

type SaleConfig struct {
	TotalSupply string `mapstructure:"total_supply"`
	SaleTarget  string `mapstructure:"sale_target"`
	ListingFee  string `mapstructure:"listing_fee"`
	RewardBps   uint64 `mapstructure:"reward_bps"`
}

type PoolConfig struct {
	LockDuration time.Duration `mapstructure:"lock_duration"`
	FeeBps       uint64        `mapstructure:"fee_bps"`
}

type EngineConfig struct {
	Operator      string        `mapstructure:"operator"`
	CommitRetries uint          `mapstructure:"commit_retries"`
	CommitBackoff time.Duration `mapstructure:"commit_backoff"`
}

type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver          string        `mapstructure:"driver"`
	PostgresURL     string        `mapstructure:"postgres_url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// EventsConfig sizes the async bus queue. Handlers run one after another,
// so a slow sink (Redis) needs a deeper queue or events are dropped.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
	Stream   string `mapstructure:"stream"`
}

type LogConfig struct {
	Level         string        `mapstructure:"level"`
	File          string        `mapstructure:"file"`
	Pretty        bool          `mapstructure:"pretty"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type JournalConfig struct {
	Size          int           `mapstructure:"size"`
	CSVPath       string        `mapstructure:"csv_path"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type MonitorConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	PriceMovePercent    float64       `mapstructure:"price_move_percent"`
	CriticalMovePercent float64       `mapstructure:"critical_move_percent"`
	LargeTrade          string        `mapstructure:"large_trade"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	MaxAlerts           int           `mapstructure:"max_alerts"`
}

// MetricsConfig: the collector is fed whenever enabled; Addr additionally
// serves it over HTTP.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

type ScenarioConfig struct {
	Path    string `mapstructure:"path"`
	Workers int    `mapstructure:"workers"`
}

type ExportConfig struct {
	Dir    string `mapstructure:"dir"`
	Format string `mapstructure:"format"`
}

const (
	DefaultWorkers       = 4
	DefaultCommitRetries = 3
	DefaultJournalSize   = 1000
	DefaultEventBuffer   = 1024
)

func defaults() map[string]interface{} {
	cc := curve.DefaultConfig()
	sc := sale.DefaultConfig()
	pc := pool.DefaultConfig()
	return map[string]interface{}{
		"curve.floor_price":             units.Format(cc.FloorPrice, units.Decimals),
		"curve.price_step":              units.Format(cc.PriceStep, units.Decimals),
		"curve.band_width":              units.Format(cc.BandWidth, units.Decimals),
		"sale.total_supply":             units.Format(sc.TotalSupply, units.Decimals),
		"sale.sale_target":              units.Format(sc.SaleTarget, units.Decimals),
		"sale.listing_fee":              units.Format(sc.ListingFee, units.Decimals),
		"sale.reward_bps":               sc.RewardBps,
		"pool.lock_duration":            pc.LockDuration,
		"pool.fee_bps":                  pc.FeeBps,
		"engine.operator":               "",
		"engine.commit_retries":         DefaultCommitRetries,
		"engine.commit_backoff":         50 * time.Millisecond,
		"storage.driver":                "memory",
		"storage.postgres_url":          "",
		"storage.max_conns":             10,
		"storage.min_conns":             1,
		"storage.max_conn_lifetime":     time.Hour,
		"events.buffer_size":            DefaultEventBuffer,
		"redis.enabled":                 false,
		"redis.addr":                    "localhost:6379",
		"redis.password":                "",
		"redis.db":                      0,
		"redis.channel":                 "launchpad.events",
		"redis.stream":                  "",
		"log.level":                     "info",
		"log.file":                      "",
		"log.pretty":                    true,
		"log.flush_interval":            time.Second,
		"journal.size":                  DefaultJournalSize,
		"journal.csv_path":              "",
		"journal.flush_interval":        time.Second,
		"monitor.enabled":               true,
		"monitor.price_move_percent":    10.0,
		"monitor.critical_move_percent": 50.0,
		"monitor.large_trade":           "1",
		"monitor.cooldown":              time.Duration(0),
		"monitor.max_alerts":            1000,
		"metrics.enabled":               true,
		"metrics.addr":                  "",
		"scenario.path":                 "",
		"scenario.workers":              DefaultWorkers,
		"export.dir":                    "",
		"export.format":                 "csv",
	}
}

// LoadConfig reads path (YAML or JSON; empty means defaults only), applies
// LAUNCHPAD_* environment overrides and validates the result. A .env file
// in the working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if _, err := cfg.CurveConfig(); err != nil {
		return err
	}
	if _, err := cfg.SaleConfig(); err != nil {
		return err
	}
	if err := cfg.PoolConfig().Validate(); err != nil {
		return err
	}
	if cfg.Engine.Operator != "" && !common.IsHexAddress(cfg.Engine.Operator) {
		return fmt.Errorf("invalid operator address %q", cfg.Engine.Operator)
	}

	switch cfg.Storage.Driver {
	case "memory":
	case "postgres":
		if err := validateURL(cfg.Storage.PostgresURL, "postgres"); err != nil {
			return fmt.Errorf("storage.postgres_url: %w", err)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}
	if cfg.Redis.Enabled && (cfg.Redis.Addr == "" || cfg.Redis.Channel == "") {
		return errors.New("redis requires addr and channel")
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if cfg.Journal.Size <= 0 {
		return errors.New("invalid journal size")
	}
	if _, err := cfg.AlertConfig(); err != nil {
		return err
	}
	if cfg.Metrics.Addr != "" && !cfg.Metrics.Enabled {
		return errors.New("metrics.addr requires metrics.enabled")
	}
	if cfg.Scenario.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	switch cfg.Export.Format {
	case "csv", "json":
	default:
		return fmt.Errorf("unknown export format %q", cfg.Export.Format)
	}
	return nil
}

func validateURL(rawURL, scheme string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || rawURL == "" {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// CurveConfig converts the curve section into base units.
func (c *Config) CurveConfig() (curve.Config, error) {
	floor, err := units.Parse(c.Curve.FloorPrice, units.Decimals)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.floor_price: %w", err)
	}
	step, err := units.Parse(c.Curve.PriceStep, units.Decimals)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.price_step: %w", err)
	}
	band, err := units.Parse(c.Curve.BandWidth, units.Decimals)
	if err != nil {
		return curve.Config{}, fmt.Errorf("curve.band_width: %w", err)
	}
	cc := curve.Config{Decimals: units.Decimals, FloorPrice: floor, PriceStep: step, BandWidth: band}
	return cc, cc.Validate()
}

// SaleConfig converts the sale section into base units.
func (c *Config) SaleConfig() (sale.Config, error) {
	supply, err := units.Parse(c.Sale.TotalSupply, units.Decimals)
	if err != nil {
		return sale.Config{}, fmt.Errorf("sale.total_supply: %w", err)
	}
	target, err := units.Parse(c.Sale.SaleTarget, units.Decimals)
	if err != nil {
		return sale.Config{}, fmt.Errorf("sale.sale_target: %w", err)
	}
	fee, err := units.Parse(c.Sale.ListingFee, units.Decimals)
	if err != nil {
		return sale.Config{}, fmt.Errorf("sale.listing_fee: %w", err)
	}
	sc := sale.Config{TotalSupply: supply, SaleTarget: target, ListingFee: fee, RewardBps: c.Sale.RewardBps}
	return sc, sc.Validate()
}

func (c *Config) PoolConfig() pool.Config {
	return pool.Config{LockDuration: c.Pool.LockDuration, FeeBps: c.Pool.FeeBps}
}

// EngineOptions maps the engine section; the clock stays the default.
func (c *Config) EngineOptions() launchpad.Options {
	opts := launchpad.DefaultOptions()
	if c.Engine.Operator != "" {
		opts.Operator = common.HexToAddress(c.Engine.Operator)
	}
	opts.CommitRetries = c.Engine.CommitRetries
	opts.CommitBackoff = c.Engine.CommitBackoff
	return opts
}

func (c *Config) PostgresConfig() postgres.Config {
	return postgres.Config{
		DSN:             c.Storage.PostgresURL,
		MaxConns:        c.Storage.MaxConns,
		MinConns:        c.Storage.MinConns,
		MaxConnLifetime: c.Storage.MaxConnLifetime,
	}
}

func (c *Config) RedisConfig() events.RedisConfig {
	return events.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Channel:  c.Redis.Channel,
		Stream:   c.Redis.Stream,
	}
}

// AlertConfig maps the monitor section. An empty large_trade disables
// trade-size alerts.
func (c *Config) AlertConfig() (monitor.AlertConfig, error) {
	m := c.Monitor
	if m.PriceMovePercent < 0 || m.CriticalMovePercent < 0 {
		return monitor.AlertConfig{}, errors.New("monitor percentages must not be negative")
	}
	if m.Cooldown < 0 {
		return monitor.AlertConfig{}, errors.New("monitor.cooldown must not be negative")
	}
	ac := monitor.AlertConfig{
		PriceMovePercent:    m.PriceMovePercent,
		CriticalMovePercent: m.CriticalMovePercent,
		Cooldown:            m.Cooldown,
	}
	if m.LargeTrade != "" {
		size, err := units.Parse(m.LargeTrade, units.Decimals)
		if err != nil {
			return monitor.AlertConfig{}, fmt.Errorf("monitor.large_trade: %w", err)
		}
		ac.LargeTrade = size
	}
	return ac, nil
}

func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:         c.Log.Level,
		File:          c.Log.File,
		Pretty:        c.Log.Pretty,
		FlushInterval: c.Log.FlushInterval,
	}
}
