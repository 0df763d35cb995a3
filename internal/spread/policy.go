package spread

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/yanun0323/logs"
)

const paramsFilePrefix = "avellaneda_parameters_"

// symbol suffixes stripped when probing for parameter files
var strippedSuffixes = []string{"USDT", "USDC", "USDF", "USD1", "USD"}

// Config tunes spread resolution.
type Config struct {
	Dynamic     bool
	DefaultBuy  float64
	DefaultSell float64
	Min         float64
	Max         float64
	TTL         time.Duration
	Dir         string
}

func (c Config) withDefaults() Config {
	if c.DefaultBuy <= 0 {
		c.DefaultBuy = 0.006
	}
	if c.DefaultSell <= 0 {
		c.DefaultSell = 0.006
	}
	if c.Min <= 0 {
		c.Min = 0.00005
	}
	if c.Max <= 0 {
		c.Max = 0.02
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Second
	}
	return c
}

// Quote is a resolved spread pair with its cache expiry.
type Quote struct {
	Buy       float64
	Sell      float64
	Source    string
	ExpiresAt time.Time
}

// Policy resolves buy/sell spreads for an instrument, preferring an
// on-disk parameter file and falling back to static defaults. Failed
// or out-of-bounds lookups are logged once per outcome change, not
// every cycle.
type Policy struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	cache    map[string]Quote
	lastSign map[string]string
}

// NewPolicy creates a policy with defaults filled in.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		cache:    make(map[string]Quote),
		lastSign: make(map[string]string),
	}
}

// Resolve returns the spreads to quote for the symbol. Dynamic lookups
// are cached for the configured TTL.
func (p *Policy) Resolve(symbol string) (buy, sell float64) {
	if !p.cfg.Dynamic {
		return p.cfg.DefaultBuy, p.cfg.DefaultSell
	}

	key := strings.ToUpper(symbol)
	now := p.now()

	p.mu.Lock()
	defer p.mu.Unlock()

	if q, ok := p.cache[key]; ok && now.Before(q.ExpiresAt) {
		return q.Buy, q.Sell
	}

	buyOverride, sellOverride, source := p.loadOverrides(key)
	buy, sell = p.cfg.DefaultBuy, p.cfg.DefaultSell
	if buyOverride != nil {
		buy = *buyOverride
	}
	if sellOverride != nil {
		sell = *sellOverride
	}

	p.cache[key] = Quote{Buy: buy, Sell: sell, Source: source, ExpiresAt: now.Add(p.cfg.TTL)}

	sign := source + "|" + formatPair(buy, sell)
	if p.lastSign[key] != sign {
		p.lastSign[key] = sign
		if source != "" {
			logs.Infof("loaded spreads for %s from %s: buy=%.6f sell=%.6f", key, filepath.Base(source), buy, sell)
		} else {
			logs.Infof("no parameter file for %s, using default spreads buy=%.6f sell=%.6f", key, buy, sell)
		}
	}
	return buy, sell
}

type paramsFile struct {
	LimitOrders struct {
		DeltaB        *float64 `json:"delta_b"`
		DeltaA        *float64 `json:"delta_a"`
		DeltaBPercent *float64 `json:"delta_b_percent"`
		DeltaAPercent *float64 `json:"delta_a_percent"`
	} `json:"limit_orders"`
	MarketData struct {
		MidPrice *float64 `json:"mid_price"`
	} `json:"market_data"`
	CalculatedValues struct {
		ReservationPrice *float64 `json:"reservation_price"`
	} `json:"calculated_values"`
}

func (p *Policy) loadOverrides(symbol string) (buy, sell *float64, source string) {
	for _, candidate := range fileCandidates(symbol) {
		path := filepath.Join(p.cfg.Dir, paramsFilePrefix+candidate+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var payload paramsFile
		if err := json.Unmarshal(data, &payload); err != nil {
			logs.Warnf("failed to parse %s: %v", path, err)
			continue
		}

		mid := payload.MarketData.MidPrice
		if mid == nil || *mid <= 0 {
			mid = payload.CalculatedValues.ReservationPrice
		}

		buy = p.extract(payload.LimitOrders.DeltaBPercent, payload.LimitOrders.DeltaB, mid, path, "delta_b")
		sell = p.extract(payload.LimitOrders.DeltaAPercent, payload.LimitOrders.DeltaA, mid, path, "delta_a")
		if buy == nil && sell == nil {
			continue
		}
		return buy, sell, path
	}
	return nil, nil, ""
}

// extract derives a fractional spread from a direct percentage or a
// price delta normalized by the reference mid, bounds-checked.
func (p *Policy) extract(percent, delta, mid *float64, path, key string) *float64 {
	var spread float64
	switch {
	case percent != nil:
		spread = *percent / 100
	case delta != nil && mid != nil && *mid > 0:
		spread = *delta / *mid
	default:
		return nil
	}

	if spread < p.cfg.Min || spread > p.cfg.Max {
		logs.Warnf("%s spread %.6f from %s out of bounds [%.6f, %.6f]", key, spread, path, p.cfg.Min, p.cfg.Max)
		return nil
	}
	return &spread
}

func fileCandidates(symbol string) []string {
	symbol = strings.ToUpper(symbol)
	candidates := make([]string, 0, 2)
	add := func(c string) {
		for _, existing := range candidates {
			if existing == c {
				return
			}
		}
		candidates = append(candidates, c)
	}

	if symbol != "" {
		add(symbol)
	}
	for _, suffix := range strippedSuffixes {
		if strings.HasSuffix(symbol, suffix) && len(symbol) > len(suffix) {
			add(strings.TrimSuffix(symbol, suffix))
		}
	}
	return candidates
}

func formatPair(buy, sell float64) string {
	b, _ := json.Marshal([2]float64{buy, sell})
	return string(b)
}
