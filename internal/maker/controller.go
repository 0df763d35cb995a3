// Package maker runs the single-instrument quoting loop: one resting
// limit order at a time, reshaped from live market and account state.
package maker

import (
	"context"
	"math"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/gateway"
	"main/internal/journal"
	"main/internal/model"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/risk"
	"main/internal/spread"
	"main/internal/state"
	"main/pkg/exception"
)

const (
	_defaultTIF    = "GTC"
	_qtyEpsilon    = 1e-9
	_shutdownGrace = 5 * time.Second
)

// Config is the static (non-reloadable) controller configuration.
type Config struct {
	Symbol      string
	OpeningSide model.Side
	TIF         string
}

func (cfg Config) withDefaults() Config {
	if cfg.OpeningSide == model.SideUnknown {
		cfg.OpeningSide = model.SideBid
	}
	if cfg.TIF == "" {
		cfg.TIF = _defaultTIF
	}
	return cfg
}

// Controller owns the order lifecycle. It is the only writer of the
// active order slot and the only caller of the order entry surface.
type Controller struct {
	cfg      Config
	tunables func() ops.Tunables
	gw       gateway.Exchange
	st       *state.Strategy
	rules    model.SymbolRules
	spreads  *spread.Policy
	trend    *spread.Trend
	queue    *bus.Queue
	metrics  *obs.Metrics
	journal  *journal.Journal

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) bool

	lastOrderAt   time.Time
	emergencyDone bool
}

// New wires a controller. tunables is read once per cycle so config
// reloads take effect between cycles. jnl may be nil.
func New(
	cfg Config,
	tunables func() ops.Tunables,
	gw gateway.Exchange,
	st *state.Strategy,
	rules model.SymbolRules,
	spreads *spread.Policy,
	trend *spread.Trend,
	queue *bus.Queue,
	metrics *obs.Metrics,
	jnl *journal.Journal,
) *Controller {
	return &Controller{
		cfg:      cfg.withDefaults(),
		tunables: tunables,
		gw:       gw,
		st:       st,
		rules:    rules,
		spreads:  spreads,
		trend:    trend,
		queue:    queue,
		metrics:  metrics,
		journal:  jnl,
		now:      time.Now,
		wait:     sleepWait,
	}
}

// Run drives cycles until the context is done or shutdown fires, then
// cancels whatever is resting on the venue.
func (c *Controller) Run(ctx context.Context) {
	defer c.shutdown()

	for {
		select {
		case <-sys.Shutdown():
			return
		case <-ctx.Done():
			return
		default:
		}

		start := c.now()
		c.metrics.IncCycle()
		c.cycle(ctx)
		c.metrics.ObserveCycle(c.now().Sub(start))
	}
}

// cycle is one pass of the quoting loop: health, validity, shape,
// risk, reuse-or-replace, then wait for the fill outcome.
func (c *Controller) cycle(ctx context.Context) {
	t := c.tunables()

	if !c.st.Healthy() {
		c.degraded(ctx, t)
		return
	}
	c.emergencyDone = false

	now := c.now()
	_, _, mid, quoteOK := c.st.Quote(now, t.MaxPriceAge)
	balance, balanceOK := c.st.Balance()
	if !quoteOK || !balanceOK {
		c.skip(ctx, t, "waiting for quote and balance")
		return
	}

	position := c.st.Position()
	posture := model.PostureFor(position, mid, t.PositionThresholdUSD)

	side, qty, reduceOnly := c.shapeOrder(posture, position, balance, mid, t)

	buySpread, sellSpread := c.spreads.Resolve(c.cfg.Symbol)
	price := mid * (1 - buySpread)
	if side == model.SideAsk {
		price = mid * (1 + sellSpread)
	}

	price = c.rules.QuantizePrice(price)
	qty = c.rules.QuantizeQuantity(qty)
	if price <= 0 || qty <= _qtyEpsilon {
		c.skip(ctx, t, "quantized order empty")
		return
	}
	if c.rules.MinNotional > 0 && price*qty < c.rules.MinNotional {
		c.skip(ctx, t, "below min notional")
		return
	}

	decision := risk.NewEngine(t.Risk).Evaluate(risk.Intent{
		Side:       side,
		Price:      price,
		Qty:        qty,
		ReduceOnly: reduceOnly,
	}, risk.StateView{
		Position:       position,
		ReferencePrice: mid,
	})
	if !decision.Allowed {
		c.metrics.IncRiskDeny()
		logs.Warnf("risk denied order, reason: %s, side: %s, price: %v, qty: %v",
			decision.Reason, side, price, qty)
		c.skip(ctx, t, "risk denied")
		return
	}

	active, hasActive := c.st.ActiveOrder()
	if hasActive && shouldReuseOrder(active, side, price, qty, t.ReuseThreshold) {
		c.metrics.IncOrderReused()
		c.awaitFill(ctx, t, active)
		return
	}

	if hasActive {
		if !c.cancelActive(ctx, active) {
			c.cooldown(ctx, t)
			return
		}
	}

	c.throttle(ctx, t)

	placed, ok := c.place(ctx, t, gateway.OrderRequest{
		Symbol:     c.cfg.Symbol,
		Side:       side,
		Price:      price,
		Quantity:   qty,
		ReduceOnly: reduceOnly,
		TIF:        c.cfg.TIF,
	})
	if !ok {
		return
	}

	c.awaitFill(ctx, t, placed)
}

// shapeOrder decides side, quantity and the reduce-only flag. Opening
// risks a fixed balance fraction; closing unwinds the whole position.
func (c *Controller) shapeOrder(posture model.Posture, position, balance, mid float64, t ops.Tunables) (model.Side, float64, bool) {
	if posture == model.PostureClosing {
		side := model.SideAsk
		if position < 0 {
			side = model.SideBid
		}
		return side, math.Abs(position), true
	}

	side := c.cfg.OpeningSide
	if c.trend != nil {
		side = c.trend.OpeningSide(c.cfg.Symbol, c.cfg.OpeningSide)
	}
	return side, balance * t.BalanceFraction / mid, false
}

// degraded runs while a feed is down: cancel the resting order once,
// then hold until health returns.
func (c *Controller) degraded(ctx context.Context, t ops.Tunables) {
	c.metrics.IncSkippedCycle()

	if active, ok := c.st.ActiveOrder(); ok && !c.emergencyDone {
		market, account := c.st.Health()
		logs.Warnf("feed unhealthy, canceling resting order, market: %t, account: %t, order: %s",
			market, account, active.ID)

		c.metrics.IncEmergencyCancel()
		if c.cancelActive(ctx, active) {
			c.emergencyDone = true
		}
	}

	select {
	case <-sys.Shutdown():
	case <-ctx.Done():
	case <-c.st.HealthChanged():
	case <-time.After(t.DegradedWait):
	}
}

func (c *Controller) skip(ctx context.Context, t ops.Tunables, reason string) {
	c.metrics.IncSkippedCycle()
	logs.Debugf("skip cycle: %s", reason)
	c.wait(ctx, t.DegradedWait)
}

func (c *Controller) cooldown(ctx context.Context, t ops.Tunables) {
	c.wait(ctx, t.Cooldown)
}

// throttle enforces the minimum interval between order placements.
func (c *Controller) throttle(ctx context.Context, t ops.Tunables) {
	if c.lastOrderAt.IsZero() {
		return
	}
	elapsed := c.now().Sub(c.lastOrderAt)
	if elapsed < t.MinOrderInterval {
		c.wait(ctx, t.MinOrderInterval-elapsed)
	}
}

// cancelActive cancels the resting order and frees the slot. A cancel
// of an order the venue no longer knows counts as success.
func (c *Controller) cancelActive(ctx context.Context, active model.ActiveOrder) bool {
	start := c.now()
	err := c.gw.CancelOrder(ctx, c.cfg.Symbol, active.ID)
	c.metrics.ObserveCancel(c.now().Sub(start))

	if err != nil && !exception.IsGone(err) {
		logs.Errorf("cancel order failed, order: %s, err: %+v", active.ID, err)
		return false
	}

	c.metrics.IncOrderCanceled()
	c.st.ClearActiveOrder()
	return true
}

func (c *Controller) place(ctx context.Context, t ops.Tunables, req gateway.OrderRequest) (model.ActiveOrder, bool) {
	start := c.now()
	orderID, err := c.gw.PlaceOrder(ctx, req)
	c.metrics.ObservePlace(c.now().Sub(start))
	c.lastOrderAt = c.now()

	if err != nil {
		c.handlePlaceError(ctx, t, req, err)
		return model.ActiveOrder{}, false
	}

	active := model.ActiveOrder{
		ID:         orderID,
		Side:       req.Side,
		Price:      req.Price,
		Quantity:   req.Quantity,
		ReduceOnly: req.ReduceOnly,
	}
	c.st.SetActiveOrder(active)
	c.metrics.IncOrderPlaced()
	logs.Infof("placed order, order: %s, side: %s, price: %v, qty: %v, reduceOnly: %t",
		orderID, req.Side, req.Price, req.Quantity, req.ReduceOnly)

	return active, true
}

// handlePlaceError tells a stale reduce-only rejection apart from a
// generic failure. The former means the venue already considers us
// flat, so local state resets and trading resumes quickly.
func (c *Controller) handlePlaceError(ctx context.Context, t ops.Tunables, req gateway.OrderRequest, err error) {
	if req.ReduceOnly && exception.IsReduceOnlyReject(err) {
		logs.Warnf("reduce-only order rejected with no position, resetting, err: %+v", err)
		c.st.SetPosition(0)
		c.st.ClearActiveOrder()
		c.wait(ctx, t.ResetCooldown)
		return
	}

	logs.Errorf("place order failed, side: %s, price: %v, qty: %v, err: %+v",
		req.Side, req.Price, req.Quantity, err)
	if cancelErr := c.gw.CancelAllOrders(ctx, c.cfg.Symbol); cancelErr != nil {
		logs.Warnf("cancel all after place failure, err: %+v", cancelErr)
	}
	c.st.ClearActiveOrder()
	c.cooldown(ctx, t)
}

// awaitFill blocks until the resting order reaches a terminal state or
// the refresh interval elapses. On timeout the order is cancelled so
// the next cycle can re-quote at current prices.
func (c *Controller) awaitFill(ctx context.Context, t ops.Tunables, active model.ActiveOrder) {
	deadline := c.now().Add(t.RefreshInterval)

	for {
		remaining := deadline.Sub(c.now())
		if remaining <= 0 {
			break
		}

		event, err := c.queue.Next(ctx, remaining)
		if err != nil {
			break
		}

		if event.OrderID == "" {
			// flat-position signal from the account stream
			if active.ReduceOnly {
				logs.Infof("position closed on venue, order complete, order: %s", active.ID)
				c.st.ClearActiveOrder()
				c.metrics.IncFill()
				return
			}
			continue
		}

		if event.OrderID != active.ID || !event.Terminal {
			continue
		}

		c.applyFill(ctx, active, event)
		return
	}

	c.cancelActive(ctx, active)
}

// applyFill settles a terminal event: adjust the position provisionally
// and let the account stream reconcile, or pull a venue snapshot when
// the event itself is ambiguous.
func (c *Controller) applyFill(ctx context.Context, active model.ActiveOrder, event model.FillEvent) {
	defer c.st.ClearActiveOrder()

	if event.Reconcile {
		snapshot, err := c.gw.AccountSnapshot(ctx, c.cfg.Symbol)
		if err != nil {
			logs.Errorf("reconcile snapshot failed, order: %s, err: %+v", active.ID, err)
			return
		}

		c.st.SetPosition(snapshot.Position)
		c.st.SetBalance(snapshot.Balance, c.now())
		logs.Infof("reconciled from venue, order: %s, position: %v", active.ID, snapshot.Position)

		if event.Filled > 0 {
			c.recordFill(ctx, active, event.Filled)
		}
		return
	}

	delta := event.Filled
	if event.Side == model.SideAsk {
		delta = -delta
	}
	next := c.st.AddPosition(delta)
	logs.Infof("order filled, order: %s, side: %s, filled: %v, position: %v",
		active.ID, event.Side, event.Filled, next)

	c.recordFill(ctx, active, event.Filled)
}

func (c *Controller) recordFill(ctx context.Context, active model.ActiveOrder, filled float64) {
	c.metrics.IncFill()
	if err := c.journal.Append(ctx, active.ID, c.cfg.Symbol, active.Side, active.Price, filled, c.now()); err != nil {
		logs.Warnf("journal append failed, order: %s, err: %+v", active.ID, err)
	}
}

// shutdown sweeps the venue clean with a fresh context since the run
// context is already done.
func (c *Controller) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), _shutdownGrace)
	defer cancel()

	if err := c.gw.CancelAllOrders(ctx, c.cfg.Symbol); err != nil {
		logs.Errorf("cancel all on shutdown, err: %+v", err)
		return
	}

	c.st.ClearActiveOrder()
	logs.Info("canceled all orders on shutdown")
}

// shouldReuseOrder reports whether the resting order still serves the
// desired quote. Side and quantity must match exactly; the price may
// drift strictly less than threshold, relative to the resting price.
func shouldReuseOrder(active model.ActiveOrder, side model.Side, price, qty, threshold float64) bool {
	if active.Side != side {
		return false
	}
	if math.Abs(active.Quantity-qty) > _qtyEpsilon {
		return false
	}
	if active.Price <= 0 {
		return false
	}
	return math.Abs(price-active.Price)/active.Price < threshold
}

func sleepWait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-sys.Shutdown():
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
