package feed

import (
	"context"
	"math"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"
	"github.com/yanun0323/pkg/ws"

	"main/internal/bus"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/state"
)

const _flatEpsilon = 1e-9

type AccountConfig struct {
	URL           string
	Account       string
	Symbol        string
	SilenceWindow time.Duration
	BackoffSeed   time.Duration
	BackoffCap    time.Duration
}

func (cfg AccountConfig) withDefaults() AccountConfig {
	if cfg.URL == "" {
		cfg.URL = _defaultWsURL
	}
	if cfg.SilenceWindow <= 0 {
		cfg.SilenceWindow = 60 * time.Second
	}
	return cfg
}

// AccountFeed maintains the private account streams. It keeps balance
// and position in the shared state and turns order-stream updates for
// the controller's resting order into fill events.
type AccountFeed struct {
	cfg     AccountConfig
	st      *state.Strategy
	queue   *bus.Queue
	metrics *obs.Metrics
	backoff *Backoff

	now func() time.Time

	// fill tracking for the current active order; account goroutine only.
	trackedOrderID string
	trackedFilled  float64
	terminalSent   bool
}

func NewAccountFeed(cfg AccountConfig, st *state.Strategy, queue *bus.Queue, metrics *obs.Metrics) *AccountFeed {
	cfg = cfg.withDefaults()
	return &AccountFeed{
		cfg:     cfg,
		st:      st,
		queue:   queue,
		metrics: metrics,
		backoff: NewBackoff(cfg.BackoffSeed, cfg.BackoffCap, 0),
		now:     time.Now,
	}
}

// Run keeps one account session alive at a time, reconnecting with
// backoff until shutdown.
func (f *AccountFeed) Run(ctx context.Context) {
	for {
		if err := f.session(ctx); err != nil {
			logs.Warnf("account feed session ended, err: %+v", err)
		}

		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		default:
		}

		wait := f.backoff.Next()
		f.metrics.IncAccountReconnect()
		logs.Infof("account feed reconnecting in %s", wait)

		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (f *AccountFeed) session(ctx context.Context) error {
	wss := ws.New(ctx, f.cfg.URL)
	defer wss.Close()

	if err := wss.Start(ctx); err != nil {
		return errors.Wrap(err, "start wss")
	}

	for _, source := range []string{"account_info", "account_positions", "account_orders"} {
		if err := subscribeSource(ctx, wss, source, f.cfg.Account); err != nil {
			return errors.Wrap(err, "subscribe").With("source", source)
		}
	}

	f.backoff.Reset()
	f.st.SetAccountHealth(true)
	defer f.st.SetAccountHealth(false)

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
			return errors.Errorf("no account message for %s", f.cfg.SilenceWindow)
		case m, ok := <-ch:
			if !ok {
				return errors.New("account stream closed")
			}

			resetTimer(silence, f.cfg.SilenceWindow)
			f.dispatch(m)
		}
	}
}

func (f *AccountFeed) dispatch(m ws.Message) {
	env, ok := ws.ReadMessage[envelope](m)
	if !ok {
		return
	}

	switch env.Channel {
	case "account_info":
		if resp, ok := ws.ReadMessage[accountInfoMessage](m); ok {
			f.handleInfo(resp)
		}
	case "account_positions":
		if resp, ok := ws.ReadMessage[positionsMessage](m); ok {
			f.handlePositions(resp)
		}
	case "account_orders":
		if resp, ok := ws.ReadMessage[ordersMessage](m); ok {
			f.handleOrders(resp)
		}
	}
}

func (f *AccountFeed) handleInfo(msg accountInfoMessage) {
	available := model.DecimalFloat(msg.Data.Available)
	if available < 0 {
		return
	}

	f.st.SetBalance(available, f.now())
}

// handlePositions replaces the tracked position with venue truth. A
// snapshot that no longer carries the instrument means the position was
// closed out, which also completes any resting reduce-only order.
func (f *AccountFeed) handlePositions(msg positionsMessage) {
	signed, found := 0.0, false
	for _, entry := range msg.Data {
		if entry.Symbol != f.cfg.Symbol {
			continue
		}

		signed = entry.normalize().Signed
		found = true
		break
	}

	previous := f.st.Position()
	if found && math.Abs(signed) > _flatEpsilon {
		if math.Abs(signed-previous) > _flatEpsilon {
			f.st.SetPosition(signed)
		}
		return
	}

	if math.Abs(previous) <= _flatEpsilon {
		return
	}

	f.st.SetPosition(0)
	logs.Infof("position flat on venue, symbol: %s", f.cfg.Symbol)
	if _, ok := f.st.ActiveOrder(); ok {
		f.publish(model.FillEvent{Terminal: true})
	}
}

// handleOrders compares the order stream against the controller's
// resting order. Filled reaching the order quantity is a terminal fill;
// the order disappearing from the stream is terminal but ambiguous, so
// the event asks the controller to reconcile from a venue snapshot.
func (f *AccountFeed) handleOrders(msg ordersMessage) {
	active, ok := f.st.ActiveOrder()
	if !ok {
		f.trackedOrderID = ""
		f.trackedFilled = 0
		f.terminalSent = false
		return
	}

	if active.ID != f.trackedOrderID {
		f.trackedOrderID = active.ID
		f.trackedFilled = 0
		f.terminalSent = false
	}
	if f.terminalSent {
		return
	}

	for _, entry := range msg.Data {
		event := entry.normalize()
		if event.OrderID != active.ID {
			continue
		}

		if event.Filled > f.trackedFilled {
			f.trackedFilled = event.Filled
		}

		if event.Amount > 0 && event.Filled >= event.Amount-_flatEpsilon {
			f.terminalSent = true
			f.publish(model.FillEvent{
				OrderID:  active.ID,
				Side:     active.Side,
				Filled:   event.Filled,
				Terminal: true,
			})
		}
		return
	}

	// Gone from the stream without reaching full fill: cancelled, or
	// filled with the final update missed. Venue snapshot decides.
	logs.Warnf("active order missing from order stream, order: %s, filled: %v", active.ID, f.trackedFilled)
	f.terminalSent = true
	f.publish(model.FillEvent{
		OrderID:   active.ID,
		Side:      active.Side,
		Filled:    f.trackedFilled,
		Terminal:  true,
		Reconcile: true,
	})
}

func (f *AccountFeed) publish(e model.FillEvent) {
	if err := f.queue.TryPublish(e); err != nil {
		f.metrics.IncQueueDrop()
		logs.Warnf("drop fill event, order: %s, err: %+v", e.OrderID, err)
	}
}
