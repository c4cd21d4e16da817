// Package engine orquesta el bot: arranque, loop reactivo de scans y cierre
// ordenado con resumen de sesión.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/gapbot/config"
	"github.com/alejandrodnm/gapbot/internal/application/catalog"
	"github.com/alejandrodnm/gapbot/internal/application/execution"
	"github.com/alejandrodnm/gapbot/internal/application/exits"
	"github.com/alejandrodnm/gapbot/internal/application/feed"
	"github.com/alejandrodnm/gapbot/internal/application/pricecache"
	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// Engine es el orquestador. Un solo loop (Run) consume los eventos del feed
// y dispara los scans; el monitor de salidas y el feed corren en sus propias
// goroutines con el mismo contexto.
type Engine struct {
	cfg      *config.Config
	feed     *feed.Feed
	catalog  *catalog.Catalog
	cache    *pricecache.Cache
	executor *execution.Executor
	exits    *exits.Monitor
	repo     ports.Repository
	notifier ports.Notifier
	now      func() time.Time

	lastScan  map[string]time.Time // asset → último scan
	startedAt time.Time
}

// New construye el engine ya cableado.
func New(cfg *config.Config, f *feed.Feed, cat *catalog.Catalog, cache *pricecache.Cache, exec *execution.Executor, monitor *exits.Monitor, repo ports.Repository, notifier ports.Notifier) *Engine {
	return &Engine{
		cfg:      cfg,
		feed:     f,
		catalog:  cat,
		cache:    cache,
		executor: exec,
		exits:    monitor,
		repo:     repo,
		notifier: notifier,
		now:      time.Now,
		lastScan: make(map[string]time.Time),
	}
}

// Run arranca el bot y bloquea hasta que el contexto se cancele o el feed
// agote sus reintentos de conexión. La cancelación del contexto es el cierre
// normal y devuelve nil tras imprimir el resumen de sesión.
func (e *Engine) Run(ctx context.Context) error {
	e.startedAt = e.now()

	if err := e.startup(ctx); err != nil {
		return err
	}

	go e.feed.Run(ctx)
	go e.exits.Run(ctx)

	discovery := time.NewTicker(e.cfg.DiscoveryInterval())
	defer discovery.Stop()

	for {
		select {
		case <-ctx.Done():
			e.shutdown()
			return nil

		case err := <-e.feed.Fatal():
			e.shutdown()
			return fmt.Errorf("engine: price feed lost: %w", err)

		case ap := <-e.feed.Updates():
			e.maybeScan(ctx, ap, false)

		case ap := <-e.feed.Moves():
			e.maybeScan(ctx, ap, true)

		case <-discovery.C:
			e.rediscover(ctx)
		}
	}
}

// startup restaura el catálogo persistido, corre el primer descubrimiento y
// calienta el cache de precios. Un fallo del descubrimiento no es fatal si
// el warm-load dejó mercados con los que operar.
func (e *Engine) startup(ctx context.Context) error {
	restored, err := e.catalog.WarmLoad(ctx)
	if err != nil {
		return fmt.Errorf("engine: warm load: %w", err)
	}
	if restored > 0 {
		slog.Info("engine: catalog restored", "markets", restored)
	}

	if _, err := e.catalog.Discover(ctx); err != nil {
		if e.catalog.Len() == 0 {
			return fmt.Errorf("engine: initial discovery: %w", err)
		}
		slog.Warn("engine: initial discovery failed, trading restored catalog", "err", err)
	}

	if err := e.cache.Warm(ctx, e.catalog.TokenIDs()); err != nil {
		slog.Warn("engine: price cache warm failed", "err", err)
	}

	slog.Info("engine: started",
		"markets", e.catalog.Len(),
		"assets", e.cfg.Feed.Assets)
	return nil
}

// rediscover corre una pasada periódica de descubrimiento y recalienta el
// cache con los tokens nuevos.
func (e *Engine) rediscover(ctx context.Context) {
	result, err := e.catalog.Discover(ctx)
	if err != nil {
		slog.Error("engine: discovery pass failed", "err", err)
		return
	}
	if result.Accepted > 0 {
		if err := e.cache.Warm(ctx, e.catalog.TokenIDs()); err != nil {
			slog.Warn("engine: price cache warm failed", "err", err)
		}
	}
}

// maybeScan aplica el throttle por asset, salvo para los eventos de
// movimiento significativo que fuerzan el scan.
func (e *Engine) maybeScan(ctx context.Context, ap domain.AssetPrice, force bool) {
	now := e.now()
	if !force && now.Sub(e.lastScan[ap.Asset]) < e.cfg.ScanThrottle() {
		return
	}
	e.lastScan[ap.Asset] = now
	e.scan(ctx, ap)
}

// scan evalúa los mercados del asset contra el precio actual: refresca el
// cache de contratos, corre el modelo por mercado y ejecuta los hits.
func (e *Engine) scan(ctx context.Context, ap domain.AssetPrice) {
	markets := e.catalog.MarketsForAsset(ap.Asset)
	if len(markets) == 0 {
		return
	}

	if err := e.cache.Refresh(ctx, e.catalog.TokenIDs()); err != nil {
		slog.Warn("engine: price refresh failed", "err", err)
	}

	for _, m := range markets {
		yesPrice, _, okYes := e.cache.Price(m.YesTokenID)
		noPrice, _, okNo := e.cache.Price(m.NoTokenID)
		if !okYes || !okNo {
			continue
		}

		opp, ok := domain.DetectMispricing(m, ap, yesPrice, noPrice, e.cfg.Trading.MinGapPercent)
		if !ok {
			continue
		}

		slog.Info("engine: mispricing detected",
			"market_id", m.ID,
			"asset", opp.Asset,
			"side", opp.Side,
			"gap_pct", fmt.Sprintf("%.1f", opp.GapPercent()),
			"expected", opp.ExpectedPrice,
			"actual", opp.ActualPrice)

		if err := e.repo.SaveOpportunity(ctx, opp); err != nil {
			slog.Error("engine: save opportunity", "opportunity_id", opp.ID, "err", err)
			continue
		}
		if err := e.notifier.NotifyOpportunity(ctx, opp, m); err != nil {
			slog.Warn("engine: notify failed", "err", err)
		}

		if _, err := e.executor.ExecuteTrade(ctx, opp, m.Volume24h); err != nil {
			slog.Error("engine: execute trade", "opportunity_id", opp.ID, "err", err)
		}
	}
}

// shutdown imprime el resumen de la sesión con los agregados persistidos.
// El estado en disco queda tal cual; no hay cierres forzados.
func (e *Engine) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	summary, err := e.sessionSummary(ctx)
	if err != nil {
		slog.Error("engine: session summary", "err", err)
		return
	}
	if err := e.notifier.NotifySummary(ctx, summary); err != nil {
		slog.Warn("engine: notify summary failed", "err", err)
	}
}

// sessionSummary agrega los resultados de la sesión desde el arranque.
func (e *Engine) sessionSummary(ctx context.Context) (domain.SessionSummary, error) {
	opened, err := e.repo.TradesSince(ctx, e.startedAt)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("engine: trades since start: %w", err)
	}
	closed, err := e.repo.ClosedPositionsSince(ctx, e.startedAt)
	if err != nil {
		return domain.SessionSummary{}, fmt.Errorf("engine: closed positions: %w", err)
	}

	summary := domain.SessionSummary{
		StartedAt: e.startedAt,
		StoppedAt: e.now(),
		Opened:    opened,
		Closed:    len(closed),
		ByReason:  make(map[domain.ExitReason]int),
	}
	for _, p := range closed {
		if p.RealizedPnL == nil {
			continue
		}
		summary.RealizedPnL += *p.RealizedPnL
		if *p.RealizedPnL > 0 {
			summary.Wins++
		} else {
			summary.Losses++
		}
		summary.ByReason[p.ExitReason]++
	}
	return summary, nil
}
