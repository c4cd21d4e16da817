package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// Catalog mantiene el conjunto de mercados threshold aceptados, indexado
// por ID y por asset. El descubrimiento en bloque parsea y valida los
// listings de la fuente de mercados; los aceptados se persisten y quedan
// disponibles en memoria para el scan reactivo.
type Catalog struct {
	provider ports.MarketDataProvider
	repo     ports.Repository

	minVolume          float64
	minResolutionHours float64

	mu      sync.RWMutex
	byID    map[string]domain.ThresholdMarket
	byAsset map[string][]string // asset → IDs ordenados
}

// DiscoveryResult resume una pasada de descubrimiento.
type DiscoveryResult struct {
	Discovered  int      // listings recibidos de la fuente
	Matched     int      // candidatos parseados con éxito
	Excluded    int      // descartados por keyword de exclusión
	Accepted    int      // validados y persistidos
	PersistErrs []string // errores de persistencia por mercado (no abortan)
}

// New construye un catálogo vacío.
func New(provider ports.MarketDataProvider, repo ports.Repository, minVolume, minResolutionHours float64) *Catalog {
	return &Catalog{
		provider:           provider,
		repo:               repo,
		minVolume:          minVolume,
		minResolutionHours: minResolutionHours,
		byID:               make(map[string]domain.ThresholdMarket),
		byAsset:            make(map[string][]string),
	}
}

// WarmLoad carga los mercados ACTIVE previamente persistidos al índice en
// memoria. Se llama al arrancar, antes del primer Discover, para que un
// reinicio no pierda la sesión anterior.
func (c *Catalog) WarmLoad(ctx context.Context) (int, error) {
	markets, err := c.repo.ListActiveMarkets(ctx)
	if err != nil {
		return 0, fmt.Errorf("catalog.WarmLoad: list active markets: %w", err)
	}
	c.mu.Lock()
	for _, m := range markets {
		c.indexLocked(m)
	}
	c.mu.Unlock()
	return len(markets), nil
}

// Discover ejecuta una pasada completa: lista los mercados abiertos, parsea
// cada pregunta, valida los candidatos y persiste los aceptados. Un fallo
// de persistencia en un mercado no aborta la pasada; se acumula en el
// resultado.
func (c *Catalog) Discover(ctx context.Context) (DiscoveryResult, error) {
	var result DiscoveryResult

	listings, err := c.provider.ListOpenMarkets(ctx)
	if err != nil {
		return result, fmt.Errorf("catalog.Discover: list open markets: %w", err)
	}
	result.Discovered = len(listings)

	now := time.Now()
	for _, l := range listings {
		if Excluded(l.Question) {
			result.Excluded++
			continue
		}
		cand, ok := ParseQuestion(l.Question)
		if !ok {
			continue
		}
		result.Matched++

		m, ok := c.validate(l, cand, now)
		if !ok {
			continue
		}

		if err := c.repo.UpsertMarket(ctx, m); err != nil {
			result.PersistErrs = append(result.PersistErrs, fmt.Sprintf("%s: %v", m.ID, err))
			slog.Warn("catalog: upsert failed", "market_id", m.ID, "err", err)
			continue
		}

		c.mu.Lock()
		c.indexLocked(m)
		c.mu.Unlock()
		result.Accepted++
	}

	slog.Info("catalog: discovery pass complete",
		"discovered", result.Discovered,
		"matched", result.Matched,
		"excluded", result.Excluded,
		"accepted", result.Accepted,
		"persist_errors", len(result.PersistErrs))

	return result, nil
}

// validate aplica las reglas de aceptación sobre un candidato parseado.
func (c *Catalog) validate(l ports.RawListing, cand Candidate, now time.Time) (domain.ThresholdMarket, bool) {
	if !l.Active || l.Closed {
		return domain.ThresholdMarket{}, false
	}
	if l.Volume24h < c.minVolume {
		return domain.ThresholdMarket{}, false
	}
	if l.EndDate.Sub(now).Hours() < c.minResolutionHours {
		return domain.ThresholdMarket{}, false
	}
	if l.YesTokenID == "" || l.NoTokenID == "" {
		return domain.ThresholdMarket{}, false
	}

	return domain.ThresholdMarket{
		ID:           l.ID,
		Question:     l.Question,
		Asset:        cand.Asset,
		Threshold:    cand.Threshold,
		Direction:    cand.Direction,
		EndDate:      l.EndDate,
		Volume24h:    l.Volume24h,
		Whitelisted:  cand.Whitelisted,
		Status:       domain.MarketActive,
		YesTokenID:   l.YesTokenID,
		NoTokenID:    l.NoTokenID,
		DiscoveredAt: now,
	}, true
}

// indexLocked añade o reemplaza un mercado en los índices. Requiere c.mu.
func (c *Catalog) indexLocked(m domain.ThresholdMarket) {
	if _, exists := c.byID[m.ID]; !exists {
		c.byAsset[m.Asset] = append(c.byAsset[m.Asset], m.ID)
		sort.Strings(c.byAsset[m.Asset])
	}
	c.byID[m.ID] = m
}

// Get devuelve un mercado del índice por ID.
func (c *Catalog) Get(id string) (domain.ThresholdMarket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byID[id]
	return m, ok
}

// MarketsForAsset devuelve los mercados del asset, whitelisted primero.
func (c *Catalog) MarketsForAsset(asset string) []domain.ThresholdMarket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := c.byAsset[asset]
	markets := make([]domain.ThresholdMarket, 0, len(ids))
	for _, id := range ids {
		markets = append(markets, c.byID[id])
	}
	sort.SliceStable(markets, func(i, j int) bool {
		return markets[i].Whitelisted && !markets[j].Whitelisted
	})
	return markets
}

// All devuelve todos los mercados indexados.
func (c *Catalog) All() []domain.ThresholdMarket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	markets := make([]domain.ThresholdMarket, 0, len(c.byID))
	for _, m := range c.byID {
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets
}

// TokenIDs devuelve los token IDs (YES y NO) de todos los mercados
// indexados, para el warm del price cache.
func (c *Catalog) TokenIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tokens := make([]string, 0, len(c.byID)*2)
	for _, m := range c.byID {
		if m.YesTokenID != "" {
			tokens = append(tokens, m.YesTokenID)
		}
		if m.NoTokenID != "" {
			tokens = append(tokens, m.NoTokenID)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Len devuelve cuántos mercados hay indexados.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
