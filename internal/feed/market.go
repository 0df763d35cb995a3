package feed

import (
	"context"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/obs"
	"main/internal/state"
)

const _defaultWsURL = "wss://ws.pacifica.fi/ws"

type MarketConfig struct {
	URL           string
	Symbol        string
	SilenceWindow time.Duration
	BackoffSeed   time.Duration
	BackoffCap    time.Duration
}

func (cfg MarketConfig) withDefaults() MarketConfig {
	if cfg.URL == "" {
		cfg.URL = _defaultWsURL
	}
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = 30 * time.Second
	}
	return cfg
}

// MarketFeed maintains the public price stream and publishes quotes
// into the shared strategy state.
type MarketFeed struct {
	cfg     MarketConfig
	st      *state.Strategy
	metrics *obs.Metrics
	backoff *Backoff

	now func() time.Time
}

func NewMarketFeed(cfg MarketConfig, st *state.Strategy, metrics *obs.Metrics) *MarketFeed {
	cfg = cfg.withDefaults()
	return &MarketFeed{
		cfg:     cfg,
		st:      st,
		metrics: metrics,
		backoff: NewBackoff(cfg.BackoffSeed, cfg.BackoffCap, 0),
		now:     time.Now,
	}
}

// Run keeps one price session alive at a time, reconnecting with
// backoff until shutdown.
func (f *MarketFeed) Run(ctx context.Context) {
	for {
		if err := f.session(ctx); err != nil {
			logs.Warnf("market feed session ended, err: %+v", err)
		}

		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		default:
		}

		wait := f.backoff.Next()
		f.metrics.IncMarketReconnect()
		logs.Infof("market feed reconnecting in %s", wait)

		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (f *MarketFeed) session(ctx context.Context) error {
	wss := ws.New(ctx, f.cfg.URL)
	defer wss.Close()

	if err := wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	if err := subscribeSource(ctx, wss, "prices", ""); err != nil {
		return errors.Wrap(err, "subscribe prices")
	}

	f.backoff.Reset()
	f.st.SetMarketHealth(true)
	defer f.st.SetMarketHealth(false)

	ch, cancel := wss.Subscribe()
	defer cancel()

	silence := time.NewTimer(f.cfg.SilenceWindow)
	defer silence.Stop()

	for {
		select {
		case <-sys.Shutdown():
			return nil
		case <-ctx.Done():
			return nil
		case <-silence.C:
			return errors.Errorf("no price message for %s", f.cfg.SilenceWindow)
		case m, ok := <-ch:
			if !ok {
				return errors.New("price stream closed")
			}

			resetTimer(silence, f.cfg.SilenceWindow)

			resp, ok := ws.ReadMessage[priceMessage](m)
			if !ok || resp.Channel != "prices" {
				continue
			}

			f.handlePrices(resp)
		}
	}
}

func (f *MarketFeed) handlePrices(msg priceMessage) {
	at := f.now()
	for _, entry := range msg.Data {
		if entry.Symbol != f.cfg.Symbol {
			continue
		}

		tick := entry.tick(at)
		if tick.Mid <= 0 {
			continue
		}

		f.st.SetQuote(tick.Bid, tick.Ask, tick.Mid, tick.At)
	}
}

// subscribeSource sends a source subscription and waits for the venue
// acknowledgement. Account-scoped sources carry the account key.
func subscribeSource(ctx context.Context, wss *ws.WebSocket, source, account string) error {
	appendIntoRegister := true
	if err := wss.SendAndWait(ctx, ws.Sidecar{
		Sender: func(ctx context.Context, ws *ws.WebSocket) error {
			payload := subscribeRequest{
				Method: "subscribe",
				Params: subscribeParams{Source: source, Account: account},
			}

			if err := ws.WriteJSON(payload); err != nil {
				return errors.Wrap(err, "write subscribe payload").With("payload", payload)
			}

			return nil
		},
		Waiter: func(ctx context.Context, m ws.Message) (bool, error) {
			resp, ok := ws.ReadMessage[envelope](m)
			if !ok {
				return false, nil
			}

			return strings.Contains(resp.Channel, "subscribe"), nil
		},
	}, appendIntoRegister); err != nil {
		return errors.Wrap(err, "send and wait").With("source", source)
	}

	return nil
}

// resetTimer rearms a possibly-fired timer without leaking the old tick.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
