package spread

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/model"
)

const trendFilePrefix = "supertrend_params_"

// TrendConfig tunes the trend-signal side selector.
type TrendConfig struct {
	Enabled bool
	Dir     string
	TTL     time.Duration
}

// Trend selects the opening side from an external trend-signal file.
// A downtrend biases the strategy short (open on the ask), an uptrend
// long. Missing or invalid files fall back to the configured side.
type Trend struct {
	cfg TrendConfig
	now func() time.Time

	mu        sync.Mutex
	side      model.Side
	expiresAt time.Time
	lastLog   string
}

// NewTrend creates a trend selector. TTL defaults to 10 minutes.
func NewTrend(cfg TrendConfig) *Trend {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &Trend{cfg: cfg, now: time.Now}
}

type trendFile struct {
	CurrentSignal struct {
		Trend *int `json:"trend"`
	} `json:"current_signal"`
}

// OpeningSide returns the side to open inventory on. With the selector
// disabled it always returns the fallback.
func (t *Trend) OpeningSide(symbol string, fallback model.Side) model.Side {
	if t == nil || !t.cfg.Enabled {
		return fallback
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.side != model.SideUnknown && now.Before(t.expiresAt) {
		return t.side
	}

	side := t.read(symbol, fallback)
	t.side = side
	t.expiresAt = now.Add(t.cfg.TTL)
	return side
}

func (t *Trend) read(symbol string, fallback model.Side) model.Side {
	path := filepath.Join(t.cfg.Dir, trendFilePrefix+symbol+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.logOnce("missing", "trend signal file %s not readable, keeping %s bias", path, fallback)
		return fallback
	}

	var payload trendFile
	if err := json.Unmarshal(data, &payload); err != nil || payload.CurrentSignal.Trend == nil {
		t.logOnce("invalid", "trend signal file %s invalid, keeping %s bias", path, fallback)
		return fallback
	}

	switch *payload.CurrentSignal.Trend {
	case 1:
		t.logOnce("up", "trend signal for %s: uptrend, opening side %s", symbol, model.SideBid)
		return model.SideBid
	case -1:
		t.logOnce("down", "trend signal for %s: downtrend, opening side %s", symbol, model.SideAsk)
		return model.SideAsk
	default:
		t.logOnce("invalid", "trend signal file %s invalid, keeping %s bias", path, fallback)
		return fallback
	}
}

func (t *Trend) logOnce(key, format string, args ...any) {
	if t.lastLog == key {
		return
	}
	t.lastLog = key
	logs.Infof(format, args...)
}
