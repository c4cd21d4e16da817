package engine

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gapbot/config"
	"github.com/alejandrodnm/gapbot/internal/adapters/notify"
	"github.com/alejandrodnm/gapbot/internal/adapters/storage"
	"github.com/alejandrodnm/gapbot/internal/application/catalog"
	"github.com/alejandrodnm/gapbot/internal/application/execution"
	"github.com/alejandrodnm/gapbot/internal/application/exits"
	"github.com/alejandrodnm/gapbot/internal/application/feed"
	"github.com/alejandrodnm/gapbot/internal/application/pricecache"
	"github.com/alejandrodnm/gapbot/internal/application/risk"
	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// fakeStream inyecta ticks manualmente.
type fakeStream struct {
	ticks chan ports.Tick
	errs  chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{ticks: make(chan ports.Tick, 64), errs: make(chan error, 1)}
}

func (s *fakeStream) Connect(context.Context) error { return nil }
func (s *fakeStream) Ticks() <-chan ports.Tick      { return s.ticks }
func (s *fakeStream) Errs() <-chan error            { return s.errs }
func (s *fakeStream) Close() error                  { return nil }

// fakeProvider sirve un listing de BTC y sus precios de contrato.
type fakeProvider struct {
	listings []ports.RawListing
	prices   map[string]float64
}

func (f *fakeProvider) ListOpenMarkets(_ context.Context) ([]ports.RawListing, error) {
	return f.listings, nil
}

func (f *fakeProvider) FetchPrices(_ context.Context, _ []string) (map[string]float64, error) {
	return f.prices, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Trading.BasePositionSize = 100
	cfg.Trading.MaxPositionSize = 500
	cfg.Trading.MaxTotalExposure = 2000
	cfg.Trading.MaxSimultaneousPositions = 5
	cfg.Trading.MaxHoldTimeSeconds = 3600
	cfg.Trading.ProfitTargetPct = 0.20
	cfg.Trading.StopLossPct = 0.15
	cfg.Trading.CooldownMinutes = 30
	cfg.Trading.DailyLossLimit = 200
	cfg.Trading.MaxDailyTrades = 20
	cfg.Trading.MinGapPercent = 0.20
	cfg.Trading.ExitSweepSeconds = 1
	cfg.Feed.Assets = []string{"BTC"}
	cfg.Feed.SignificantMovePct = 0.01
	cfg.Discovery.MinVolume = 10000
	cfg.Discovery.MinResolutionHours = 1
	cfg.Discovery.DiscoveryIntervalMinutes = 30
	cfg.Discovery.PriceRefreshSeconds = 15
	cfg.Discovery.ScanThrottleSeconds = 3
	return cfg
}

// newTestEngine cablea un engine completo sobre SQLite en memoria.
func newTestEngine(t *testing.T, provider *fakeProvider, stream *fakeStream) (*Engine, *storage.SQLite, *bytes.Buffer) {
	t.Helper()

	repo, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	cfg := testConfig()
	out := &bytes.Buffer{}
	notifier := notify.NewConsoleWriter(out)

	cat := catalog.New(provider, repo, cfg.Discovery.MinVolume, cfg.Discovery.MinResolutionHours)
	cache := pricecache.New(provider, cfg.PriceRefreshInterval())
	ledger := risk.NewLedger(repo, risk.Limits{
		DailyLossLimit:           cfg.Trading.DailyLossLimit,
		MaxDailyTrades:           cfg.Trading.MaxDailyTrades,
		MaxSimultaneousPositions: cfg.Trading.MaxSimultaneousPositions,
		MaxTotalExposure:         cfg.Trading.MaxTotalExposure,
		Cooldown:                 cfg.Cooldown(),
	})
	sizer := execution.NewSizer(cfg.Trading.BasePositionSize, cfg.Trading.MaxPositionSize)
	exec := execution.NewExecutor(repo, ledger, sizer, notifier)

	f := feed.New(stream, feed.Config{SignificantMove: cfg.Feed.SignificantMovePct})
	monitor := exits.NewMonitor(repo, exec, f, cache, cat, exits.Rules{
		ProfitTargetPct: cfg.Trading.ProfitTargetPct,
		StopLossPct:     cfg.Trading.StopLossPct,
		MaxHoldTime:     cfg.MaxHoldTime(),
	}, cfg.ExitSweepInterval())

	return New(cfg, f, cat, cache, exec, monitor, repo, notifier), repo, out
}

func btcListing() ports.RawListing {
	return ports.RawListing{
		ID:         "m1",
		Question:   "Will Bitcoin close above $100,000?",
		Volume24h:  150000,
		EndDate:    time.Now().Add(48 * time.Hour),
		Active:     true,
		YesTokenID: "yes-m1",
		NoTokenID:  "no-m1",
	}
}

func TestEngine_TickToPosition(t *testing.T) {
	provider := &fakeProvider{
		listings: []ports.RawListing{btcListing()},
		prices:   map[string]float64{"yes-m1": 0.55, "no-m1": 0.45},
	}
	stream := newFakeStream()
	eng, repo, _ := newTestEngine(t, provider, stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	// con BTC a 101,000 el modelo espera 0.87 para YES frente a 0.55
	// observado: gap ≈ 37% ≥ 20% → oportunidad ejecutada
	stream.ticks <- ports.Tick{Asset: "BTC", Price: 101000, Time: time.Now()}

	require.Eventually(t, func() bool {
		positions, err := repo.GetOpenPositions(context.Background())
		return err == nil && len(positions) == 1
	}, 3*time.Second, 10*time.Millisecond, "expected an open position")

	positions, err := repo.GetOpenPositions(context.Background())
	require.NoError(t, err)
	pos := positions[0]
	assert.Equal(t, "m1", pos.MarketID)
	assert.Equal(t, domain.SideYes, pos.Side)
	assert.Equal(t, 0.55, pos.EntryPrice)
	assert.InDelta(t, 101000.0, pos.PriceAtEntry, 0.001)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("engine did not stop on context cancel")
	}
}

func TestEngine_NoGapNoTrade(t *testing.T) {
	// YES ya cotiza cerca del valor esperado: sin gap suficiente
	provider := &fakeProvider{
		listings: []ports.RawListing{btcListing()},
		prices:   map[string]float64{"yes-m1": 0.85, "no-m1": 0.15},
	}
	stream := newFakeStream()
	eng, repo, _ := newTestEngine(t, provider, stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	stream.ticks <- ports.Tick{Asset: "BTC", Price: 101000, Time: time.Now()}

	// dar tiempo a que el tick se procese
	time.Sleep(300 * time.Millisecond)
	positions, err := repo.GetOpenPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)

	cancel()
	<-done
}

func TestEngine_CooldownBlocksReentry(t *testing.T) {
	provider := &fakeProvider{
		listings: []ports.RawListing{btcListing()},
		prices:   map[string]float64{"yes-m1": 0.55, "no-m1": 0.45},
	}
	stream := newFakeStream()
	eng, repo, _ := newTestEngine(t, provider, stream)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	stream.ticks <- ports.Tick{Asset: "BTC", Price: 101000, Time: time.Now()}
	require.Eventually(t, func() bool {
		n, err := repo.OpenPositionCount(context.Background())
		return err == nil && n == 1
	}, 3*time.Second, 10*time.Millisecond)

	// un segundo tick fuerza otro scan (movimiento significativo) pero el
	// mercado está en cooldown: no se abre otra posición
	stream.ticks <- ports.Tick{Asset: "BTC", Price: 103000, Time: time.Now().Add(2 * time.Second)}
	time.Sleep(300 * time.Millisecond)

	n, err := repo.OpenPositionCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cancel()
	<-done
}

func TestEngine_SummaryOnShutdown(t *testing.T) {
	provider := &fakeProvider{
		listings: []ports.RawListing{btcListing()},
		prices:   map[string]float64{"yes-m1": 0.55, "no-m1": 0.45},
	}
	stream := newFakeStream()
	eng, _, out := newTestEngine(t, provider, stream)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, out.String(), "SESSION SUMMARY")
}
