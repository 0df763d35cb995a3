package main

import (
	"context"
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/feed"
	"main/internal/gateway/pacifica"
	"main/internal/journal"
	"main/internal/maker"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/spread"
	"main/internal/state"
)

const _reportInterval = time.Minute

type runtimeConfig struct {
	v atomic.Value
}

func newRuntimeConfig(loaded ops.Loaded) *runtimeConfig {
	var rc runtimeConfig
	rc.v.Store(loaded)
	return &rc
}

func (r *runtimeConfig) Load() ops.Loaded {
	return r.v.Load().(ops.Loaded)
}

func (r *runtimeConfig) Update(loaded ops.Loaded) {
	r.v.Store(loaded)
}

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	configReload := flag.Duration("config-reload-interval", 2*time.Second, "Config reload interval (0=disable)")
	flag.Parse()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	runtime := newRuntimeConfig(loaded)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *configReload > 0 {
		go watchConfig(ctx, *configPath, *configReload, runtime.Update)
	}

	if stopProfiler := startProfiler(); stopProfiler != nil {
		defer stopProfiler()
	}

	gw := pacifica.New(pacifica.Config{
		BaseURL: loaded.Venue.APIURL,
		Account: loaded.Venue.Account,
		Timeout: loaded.Venue.Timeout,
		Headers: loaded.Venue.Headers,
	})

	symbol := loaded.Instrument.Symbol
	rules, err := gw.SymbolRules(ctx, symbol)
	if err != nil {
		log.Fatalf("load symbol rules failed: %v", err)
	}
	logs.Infof("symbol rules, symbol: %s, tick: %v, step: %v, minNotional: %v",
		symbol, rules.TickSize, rules.StepSize, rules.MinNotional)

	// start from a clean book before quoting
	if err := gw.CancelAllOrders(ctx, symbol); err != nil {
		logs.Warnf("startup cancel all failed, err: %+v", err)
	}

	snapshot, err := gw.AccountSnapshot(ctx, symbol)
	if err != nil {
		log.Fatalf("account snapshot failed: %v", err)
	}
	logs.Infof("account snapshot, balance: %v, position: %v", snapshot.Balance, snapshot.Position)

	st := state.NewStrategy()
	st.SetBalance(snapshot.Balance, time.Now())
	st.SetPosition(snapshot.Position)

	if loaded.Instrument.Leverage > 0 && math.Abs(snapshot.Position) < 1e-9 {
		if err := gw.SetLeverage(ctx, symbol, loaded.Instrument.Leverage); err != nil {
			logs.Warnf("set leverage failed, err: %+v", err)
		}
	}

	var jnl *journal.Journal
	if loaded.Journal.Enabled {
		jnl, err = journal.Open(loaded.Journal.DSN)
		if err != nil {
			log.Fatalf("journal open failed: %v", err)
		}
		defer jnl.Close()

		if computed, err := jnl.Recompute(ctx, symbol); err != nil {
			logs.Warnf("journal recompute failed, err: %+v", err)
		} else if math.Abs(computed-snapshot.Position) > 1e-9 {
			logs.Warnf("journal position %v differs from venue %v", computed, snapshot.Position)
		}
	}

	metrics := obs.NewMetrics()
	queue := bus.NewQueue(256)

	var trend *spread.Trend
	if loaded.Trend.Enabled {
		trend = spread.NewTrend(loaded.Trend)
	}

	marketFeed := feed.NewMarketFeed(feed.MarketConfig{
		URL:           loaded.Venue.WsURL,
		Symbol:        symbol,
		SilenceWindow: loaded.Feeds.MarketSilence,
		BackoffSeed:   loaded.Feeds.BackoffSeed,
		BackoffCap:    loaded.Feeds.BackoffCap,
	}, st, metrics)
	accountFeed := feed.NewAccountFeed(feed.AccountConfig{
		URL:           loaded.Venue.WsURL,
		Account:       loaded.Venue.Account,
		Symbol:        symbol,
		SilenceWindow: loaded.Feeds.AccountSilence,
		BackoffSeed:   loaded.Feeds.BackoffSeed,
		BackoffCap:    loaded.Feeds.BackoffCap,
	}, st, queue, metrics)

	go marketFeed.Run(ctx)
	go accountFeed.Run(ctx)

	if loaded.Features.Reporters {
		go report(ctx, st, metrics, symbol)
	}

	controller := maker.New(
		maker.Config{Symbol: symbol, OpeningSide: loaded.Instrument.OpeningSide},
		func() ops.Tunables { return runtime.Load().Tunables },
		gw,
		st,
		rules,
		spread.NewPolicy(loaded.Spread),
		trend,
		queue,
		metrics,
		jnl,
	)
	controller.Run(ctx)

	logs.Info("maker stopped")
}

func startProfiler() func() {
	url := os.Getenv("PYROSCOPE_URL")
	if url == "" {
		return nil
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: "maker",
		ServerAddress:   url,
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		logs.Warnf("pyroscope start failed, err: %+v", err)
		return nil
	}

	return func() {
		_ = profiler.Stop()
	}
}

func watchConfig(ctx context.Context, path string, interval time.Duration, update func(ops.Loaded)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				logs.Warnf("config stat failed, err: %+v", err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			loaded, err := ops.Load(path)
			if err != nil {
				logs.Warnf("config reload failed, err: %+v", err)
				continue
			}
			update(loaded)
			lastMod = info.ModTime()
			logs.Infof("config reloaded: %s", path)
		}
	}
}

func report(ctx context.Context, st *state.Strategy, metrics *obs.Metrics, symbol string) {
	ticker := time.NewTicker(_reportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			balance, _ := st.Balance()
			bid, ask, mid, quoteOK := st.Quote(time.Now(), _reportInterval)
			market, account := st.Health()
			logs.Infof("status, symbol: %s, balance: %v, position: %v, bid: %v, ask: %v, mid: %v, quote: %t, market: %t, account: %t",
				symbol, balance, st.Position(), bid, ask, mid, quoteOK, market, account)

			s := metrics.Snapshot()
			logs.Infof("metrics, cycles: %d, skipped: %d, placed: %d, reused: %d, canceled: %d, fills: %d, riskDenies: %d, reconnects: %d/%d, place: %+v, cycle: %+v",
				s.Cycles, s.SkippedCycles, s.OrdersPlaced, s.OrdersReused, s.OrdersCanceled,
				s.Fills, s.RiskDenies, s.MarketReconnects, s.AccountReconnects,
				s.PlaceLatency, s.CycleLatency)
		}
	}
}
