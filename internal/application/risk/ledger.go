// Package risk implementa el ledger de riesgo: los límites que toda
// ejecución debe pasar antes de comprometer capital.
package risk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Category identifica qué límite rechazó un trade.
type Category string

const (
	CategoryDailyLoss   Category = "daily-loss"
	CategoryDailyTrades Category = "daily-trades"
	CategoryPositions   Category = "positions"
	CategoryExposure    Category = "exposure"
	CategoryCooldown    Category = "cooldown"
)

// Decision es el veredicto del ledger para un trade propuesto.
type Decision struct {
	Allowed  bool
	Category Category // vacía si Allowed
	Reason   string
}

// AggregateSource es el subconjunto del repositorio que el ledger consulta
// para refrescar exposición, posiciones abiertas y agregados diarios.
type AggregateSource interface {
	OpenExposure(ctx context.Context) (float64, error)
	OpenPositionCount(ctx context.Context) (int, error)
	RealizedPnLSince(ctx context.Context, since time.Time) (float64, error)
	TradesSince(ctx context.Context, since time.Time) (int, error)
}

// Limits son los límites configurados del ledger.
type Limits struct {
	DailyLossLimit           float64 // pérdida diaria máxima, en positivo
	MaxDailyTrades           int
	MaxSimultaneousPositions int
	MaxTotalExposure         float64
	Cooldown                 time.Duration
}

// Ledger evalúa los límites de riesgo en orden fijo. Los agregados se
// refrescan del repositorio en cada chequeo; los cooldowns y el contador
// diario de trades viven en memoria. El mutex de ejecución (Lock/Unlock) lo
// mantiene el ejecutor desde el chequeo hasta el commit de la posición, para
// que dos oportunidades casi simultáneas no puedan pasar ambas el límite de
// exposición antes de que una comprometa.
type Ledger struct {
	source AggregateSource
	limits Limits
	now    func() time.Time

	execMu sync.Mutex // región check-then-commit

	mu        sync.Mutex           // estado en memoria
	cooldowns map[string]time.Time // market ID → expiry
	trades    int                  // trades contados hoy en memoria
	tradesDay time.Time            // día al que pertenece el contador
}

// NewLedger construye el ledger con los límites dados.
func NewLedger(source AggregateSource, limits Limits) *Ledger {
	return &Ledger{
		source:    source,
		limits:    limits,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
	}
}

// Lock toma el mutex de ejecución del ledger.
func (l *Ledger) Lock() { l.execMu.Lock() }

// Unlock libera el mutex de ejecución.
func (l *Ledger) Unlock() { l.execMu.Unlock() }

// CanTrade evalúa los límites en orden y devuelve la primera razón de
// rechazo, o Allowed. El caller debe mantener el lock del ledger si va a
// ejecutar sobre el resultado.
func (l *Ledger) CanTrade(ctx context.Context, marketID string, proposedSize float64) (Decision, error) {
	dayStart := l.dayStart()

	pnl, err := l.source.RealizedPnLSince(ctx, dayStart)
	if err != nil {
		return Decision{}, fmt.Errorf("risk.CanTrade: daily pnl: %w", err)
	}
	if pnl <= -l.limits.DailyLossLimit {
		return reject(CategoryDailyLoss,
			fmt.Sprintf("daily loss %.2f reached limit %.2f", pnl, -l.limits.DailyLossLimit)), nil
	}

	trades, err := l.source.TradesSince(ctx, dayStart)
	if err != nil {
		return Decision{}, fmt.Errorf("risk.CanTrade: daily trades: %w", err)
	}
	if mem := l.memTrades(dayStart); mem > trades {
		trades = mem
	}
	if trades >= l.limits.MaxDailyTrades {
		return reject(CategoryDailyTrades,
			fmt.Sprintf("daily trades %d reached limit %d", trades, l.limits.MaxDailyTrades)), nil
	}

	open, err := l.source.OpenPositionCount(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("risk.CanTrade: open positions: %w", err)
	}
	if open >= l.limits.MaxSimultaneousPositions {
		return reject(CategoryPositions,
			fmt.Sprintf("open positions %d reached limit %d", open, l.limits.MaxSimultaneousPositions)), nil
	}

	exposure, err := l.source.OpenExposure(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("risk.CanTrade: exposure: %w", err)
	}
	if exposure+proposedSize > l.limits.MaxTotalExposure {
		return reject(CategoryExposure,
			fmt.Sprintf("exposure %.2f + %.2f exceeds limit %.2f", exposure, proposedSize, l.limits.MaxTotalExposure)), nil
	}

	if expiry, ok := l.cooldownExpiry(marketID); ok {
		return reject(CategoryCooldown,
			fmt.Sprintf("market in cooldown until %s", expiry.Format(time.RFC3339))), nil
	}

	return Decision{Allowed: true}, nil
}

// StartCooldown marca el mercado en cooldown desde ahora.
func (l *Ledger) StartCooldown(marketID string) {
	l.mu.Lock()
	l.cooldowns[marketID] = l.now().Add(l.limits.Cooldown)
	l.mu.Unlock()
}

// CountTrade incrementa el contador diario en memoria. Se llama tras cada
// ejecución como respaldo optimista del conteo persistido.
func (l *Ledger) CountTrade() {
	day := l.dayStart()
	l.mu.Lock()
	if !l.tradesDay.Equal(day) {
		l.trades = 0
		l.tradesDay = day
	}
	l.trades++
	l.mu.Unlock()
}

// memTrades devuelve el contador en memoria si pertenece al día dado.
func (l *Ledger) memTrades(day time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.tradesDay.Equal(day) {
		return 0
	}
	return l.trades
}

// ClearCooldown limpia el cooldown del mercado, típicamente al cerrar la
// posición para permitir re-entrar si el gap reaparece.
func (l *Ledger) ClearCooldown(marketID string) {
	l.mu.Lock()
	delete(l.cooldowns, marketID)
	l.mu.Unlock()
}

// InCooldown devuelve si el mercado tiene un cooldown vigente.
func (l *Ledger) InCooldown(marketID string) bool {
	_, ok := l.cooldownExpiry(marketID)
	return ok
}

// cooldownExpiry devuelve el expiry vigente del mercado, purgando los
// cooldowns vencidos de paso.
func (l *Ledger) cooldownExpiry(marketID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	expiry, ok := l.cooldowns[marketID]
	if !ok {
		return time.Time{}, false
	}
	if l.now().After(expiry) {
		delete(l.cooldowns, marketID)
		return time.Time{}, false
	}
	return expiry, true
}

// dayStart devuelve la medianoche UTC del día actual.
func (l *Ledger) dayStart() time.Time {
	now := l.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func reject(cat Category, reason string) Decision {
	return Decision{Allowed: false, Category: cat, Reason: reason}
}
