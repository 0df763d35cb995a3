package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/model"
	"main/internal/risk"
	"main/internal/spread"
)

// FileConfig mirrors the JSON config layout. Durations are expressed
// in seconds.
type FileConfig struct {
	Venue      VenueConfig        `json:"venue"`
	Instrument InstrumentConfig   `json:"instrument"`
	Strategy   StrategyConfig     `json:"strategy"`
	Spread     SpreadConfig       `json:"spread"`
	Trend      TrendConfig        `json:"trend"`
	Risk       risk.Config        `json:"risk"`
	Feeds      FeedsConfig        `json:"feeds"`
	Journal    JournalConfig      `json:"journal"`
	Features   FeatureFlagsConfig `json:"features"`
}

// VenueConfig describes the venue endpoints and account.
type VenueConfig struct {
	WsURL          string            `json:"wsUrl"`
	APIURL         string            `json:"apiUrl"`
	Account        string            `json:"account"`
	TimeoutSeconds float64           `json:"timeoutSeconds"`
	Headers        map[string]string `json:"headers"`
}

// InstrumentConfig describes the traded instrument.
type InstrumentConfig struct {
	Symbol      string `json:"symbol"`
	Leverage    int    `json:"leverage"`
	OpeningSide string `json:"openingSide"`
}

// StrategyConfig carries the order-cycle tunables.
type StrategyConfig struct {
	BalanceFraction         float64 `json:"balanceFraction"`
	PositionThresholdUSD    float64 `json:"positionThresholdUsd"`
	ReuseThreshold          float64 `json:"reuseThreshold"`
	RefreshSeconds          float64 `json:"refreshSeconds"`
	MinOrderIntervalSeconds float64 `json:"minOrderIntervalSeconds"`
	CooldownSeconds         float64 `json:"cooldownSeconds"`
	ResetCooldownSeconds    float64 `json:"resetCooldownSeconds"`
	DegradedWaitSeconds     float64 `json:"degradedWaitSeconds"`
	MaxPriceAgeSeconds      float64 `json:"maxPriceAgeSeconds"`
}

// SpreadConfig carries the spread policy settings.
type SpreadConfig struct {
	Dynamic     *bool   `json:"dynamic"`
	DefaultBuy  float64 `json:"defaultBuy"`
	DefaultSell float64 `json:"defaultSell"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	TTLSeconds  float64 `json:"ttlSeconds"`
	Dir         string  `json:"dir"`
}

// TrendConfig carries the trend-flip settings.
type TrendConfig struct {
	Enabled    bool    `json:"enabled"`
	Dir        string  `json:"dir"`
	TTLSeconds float64 `json:"ttlSeconds"`
}

// FeedsConfig carries stream liveness and reconnect settings.
type FeedsConfig struct {
	MarketSilenceSeconds  float64 `json:"marketSilenceSeconds"`
	AccountSilenceSeconds float64 `json:"accountSilenceSeconds"`
	BackoffSeedSeconds    float64 `json:"backoffSeedSeconds"`
	BackoffCapSeconds     float64 `json:"backoffCapSeconds"`
}

// JournalConfig enables the fill journal.
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	DSN     string `json:"dsn"`
}

// FeatureFlagsConfig captures optional runtime flags.
type FeatureFlagsConfig struct {
	Reporters *bool `json:"reporters"`
}

// FeatureFlags are resolved runtime flags.
type FeatureFlags struct {
	Reporters bool
}

// Venue is the resolved venue definition.
type Venue struct {
	WsURL   string
	APIURL  string
	Account string
	Timeout time.Duration
	Headers map[string]string
}

// Instrument is the resolved instrument definition.
type Instrument struct {
	Symbol      string
	Leverage    int
	OpeningSide model.Side
}

// Tunables is the hot-reloadable cycle configuration.
type Tunables struct {
	BalanceFraction      float64
	PositionThresholdUSD float64
	ReuseThreshold       float64
	RefreshInterval      time.Duration
	MinOrderInterval     time.Duration
	Cooldown             time.Duration
	ResetCooldown        time.Duration
	DegradedWait         time.Duration
	MaxPriceAge          time.Duration
	Risk                 risk.Config
}

// Feeds is the resolved stream configuration.
type Feeds struct {
	MarketSilence  time.Duration
	AccountSilence time.Duration
	BackoffSeed    time.Duration
	BackoffCap     time.Duration
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Venue      Venue
	Instrument Instrument
	Tunables   Tunables
	Spread     spread.Config
	Trend      spread.TrendConfig
	Feeds      Feeds
	Journal    JournalConfig
	Features   FeatureFlags
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	instrument, err := resolveInstrument(cfg.Instrument)
	if err != nil {
		return Loaded{}, err
	}
	tunables, err := resolveTunables(cfg.Strategy, cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}
	spreadCfg, err := resolveSpread(cfg.Spread)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Journal.Enabled && cfg.Journal.DSN == "" {
		return Loaded{}, fmt.Errorf("journal enabled without dsn")
	}
	return Loaded{
		Venue: Venue{
			WsURL:   cfg.Venue.WsURL,
			APIURL:  cfg.Venue.APIURL,
			Account: cfg.Venue.Account,
			Timeout: seconds(cfg.Venue.TimeoutSeconds, 10*time.Second),
			Headers: cfg.Venue.Headers,
		},
		Instrument: instrument,
		Tunables:   tunables,
		Spread:     spreadCfg,
		Trend: spread.TrendConfig{
			Enabled: cfg.Trend.Enabled,
			Dir:     cfg.Trend.Dir,
			TTL:     seconds(cfg.Trend.TTLSeconds, 0),
		},
		Feeds: Feeds{
			MarketSilence:  seconds(cfg.Feeds.MarketSilenceSeconds, 30*time.Second),
			AccountSilence: seconds(cfg.Feeds.AccountSilenceSeconds, 60*time.Second),
			BackoffSeed:    seconds(cfg.Feeds.BackoffSeedSeconds, 5*time.Second),
			BackoffCap:     seconds(cfg.Feeds.BackoffCapSeconds, 60*time.Second),
		},
		Journal:  cfg.Journal,
		Features: resolveFeatures(cfg.Features),
	}, nil
}

func resolveInstrument(cfg InstrumentConfig) (Instrument, error) {
	if cfg.Symbol == "" {
		return Instrument{}, fmt.Errorf("instrument symbol is empty")
	}
	if cfg.Leverage < 0 {
		return Instrument{}, fmt.Errorf("instrument leverage must be >= 0")
	}
	side := model.SideBid
	if cfg.OpeningSide != "" {
		side = model.SideFromString(cfg.OpeningSide)
		if side == model.SideUnknown {
			return Instrument{}, fmt.Errorf("unknown opening side: %s", cfg.OpeningSide)
		}
	}
	return Instrument{
		Symbol:      cfg.Symbol,
		Leverage:    cfg.Leverage,
		OpeningSide: side,
	}, nil
}

func resolveTunables(cfg StrategyConfig, riskCfg risk.Config) (Tunables, error) {
	t := Tunables{
		BalanceFraction:      cfg.BalanceFraction,
		PositionThresholdUSD: cfg.PositionThresholdUSD,
		ReuseThreshold:       cfg.ReuseThreshold,
		RefreshInterval:      seconds(cfg.RefreshSeconds, 30*time.Second),
		MinOrderInterval:     seconds(cfg.MinOrderIntervalSeconds, time.Second),
		Cooldown:             seconds(cfg.CooldownSeconds, 30*time.Second),
		ResetCooldown:        seconds(cfg.ResetCooldownSeconds, 2*time.Second),
		DegradedWait:         seconds(cfg.DegradedWaitSeconds, time.Second),
		MaxPriceAge:          seconds(cfg.MaxPriceAgeSeconds, 30*time.Second),
		Risk:                 riskCfg,
	}
	if t.BalanceFraction == 0 {
		t.BalanceFraction = 0.20
	}
	if t.BalanceFraction < 0 || t.BalanceFraction > 1 {
		return Tunables{}, fmt.Errorf("balanceFraction must be in (0, 1]")
	}
	if t.PositionThresholdUSD == 0 {
		t.PositionThresholdUSD = 15
	}
	if t.PositionThresholdUSD < 0 {
		return Tunables{}, fmt.Errorf("positionThresholdUsd must be >= 0")
	}
	if t.ReuseThreshold == 0 {
		t.ReuseThreshold = 0.001
	}
	if t.ReuseThreshold < 0 {
		return Tunables{}, fmt.Errorf("reuseThreshold must be >= 0")
	}
	return t, nil
}

func resolveSpread(cfg SpreadConfig) (spread.Config, error) {
	if cfg.Min < 0 || cfg.Max < 0 {
		return spread.Config{}, fmt.Errorf("spread bounds must be >= 0")
	}
	if cfg.Min > 0 && cfg.Max > 0 && cfg.Min > cfg.Max {
		return spread.Config{}, fmt.Errorf("spread min must be <= max")
	}
	dynamic := true
	if cfg.Dynamic != nil {
		dynamic = *cfg.Dynamic
	}
	return spread.Config{
		Dynamic:     dynamic,
		DefaultBuy:  cfg.DefaultBuy,
		DefaultSell: cfg.DefaultSell,
		Min:         cfg.Min,
		Max:         cfg.Max,
		TTL:         seconds(cfg.TTLSeconds, 0),
		Dir:         cfg.Dir,
	}, nil
}

func resolveFeatures(cfg FeatureFlagsConfig) FeatureFlags {
	flags := FeatureFlags{Reporters: true}
	if cfg.Reporters != nil {
		flags.Reporters = *cfg.Reporters
	}
	return flags
}

func seconds(v float64, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v * float64(time.Second))
}
