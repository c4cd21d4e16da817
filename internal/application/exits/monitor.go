// Package exits implementa el barrido periódico de salidas sobre las
// posiciones abiertas.
package exits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alejandrodnm/gapbot/internal/application/execution"
	"github.com/alejandrodnm/gapbot/internal/domain"
)

// PriceSource expone el último precio conocido de un asset.
type PriceSource interface {
	CurrentPrice(asset string) (float64, bool)
}

// ContractPriceSource expone el último precio observado de un contrato por
// token ID, con su antigüedad.
type ContractPriceSource interface {
	Price(tokenID string) (price float64, age time.Duration, ok bool)
}

// MarketSource resuelve mercados del catálogo por ID.
type MarketSource interface {
	Get(id string) (domain.ThresholdMarket, bool)
}

// positionLister es el subconjunto del repositorio que usa el monitor.
type positionLister interface {
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)
}

// positionCloser cierra una posición con una razón de salida.
type positionCloser interface {
	ClosePosition(ctx context.Context, pos domain.Position, exitPrice float64, reason domain.ExitReason) (domain.Position, error)
}

// Rules son los umbrales de las reglas de salida.
type Rules struct {
	ProfitTargetPct float64       // retorno no realizado que dispara PROFIT
	StopLossPct     float64       // pérdida no realizada que dispara STOP_LOSS, en positivo
	MaxHoldTime     time.Duration // tiempo de hold que dispara TIME
}

// Monitor barre las posiciones abiertas a intervalo fijo y cierra las que
// disparan una regla. Por posición gana la primera regla que matchea, en
// orden estricto: PROFIT, STOP_LOSS, TIME, REVERSAL.
type Monitor struct {
	positions positionLister
	closer    positionCloser
	prices    PriceSource
	contracts ContractPriceSource
	markets   MarketSource
	rules     Rules
	interval  time.Duration
	now       func() time.Time
}

// NewMonitor construye el monitor de salidas.
func NewMonitor(positions positionLister, closer positionCloser, prices PriceSource, contracts ContractPriceSource, markets MarketSource, rules Rules, interval time.Duration) *Monitor {
	return &Monitor{
		positions: positions,
		closer:    closer,
		prices:    prices,
		contracts: contracts,
		markets:   markets,
		rules:     rules,
		interval:  interval,
		now:       time.Now,
	}
}

// Run ejecuta barridos hasta que el contexto se cancele.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep evalúa cada posición abierta una vez. El fallo de un cierre no
// detiene el barrido.
func (m *Monitor) Sweep(ctx context.Context) {
	positions, err := m.positions.GetOpenPositions(ctx)
	if err != nil {
		slog.Error("exits: list open positions", "err", err)
		return
	}

	for _, pos := range positions {
		reason, exitPrice, ok := m.evaluate(pos)
		if !ok {
			continue
		}
		if _, err := m.closer.ClosePosition(ctx, pos, exitPrice, reason); err != nil {
			if errors.Is(err, execution.ErrAlreadyClosing) {
				slog.Debug("exits: close already claimed", "position_id", pos.ID)
				continue
			}
			slog.Error("exits: close failed",
				"position_id", pos.ID,
				"reason", reason,
				"err", err)
		}
	}
}

// evaluate aplica las reglas en orden y devuelve la primera que matchea,
// junto con el precio de salida a usar.
func (m *Monitor) evaluate(pos domain.Position) (domain.ExitReason, float64, bool) {
	current := m.contractPrice(pos)
	ret := pos.UnrealizedReturn(current)

	if ret >= m.rules.ProfitTargetPct {
		return domain.ExitProfit, current, true
	}
	if ret <= -m.rules.StopLossPct {
		return domain.ExitStopLoss, current, true
	}
	if pos.HoldTime(m.now()) >= m.rules.MaxHoldTime {
		return domain.ExitTime, current, true
	}
	if m.reversed(pos) {
		return domain.ExitReversal, current, true
	}
	return "", 0, false
}

// contractPrice devuelve el precio actual del contrato del lado de la
// posición, o el precio de entrada si no hay precio observado.
func (m *Monitor) contractPrice(pos domain.Position) float64 {
	market, ok := m.markets.Get(pos.MarketID)
	if !ok {
		return pos.EntryPrice
	}
	price, _, ok := m.contracts.Price(market.TokenFor(pos.Side))
	if !ok {
		return pos.EntryPrice
	}
	return price
}

// reversed devuelve true si el asset cruzó el threshold respecto al lado en
// el que estaba al abrir la posición.
func (m *Monitor) reversed(pos domain.Position) bool {
	market, ok := m.markets.Get(pos.MarketID)
	if !ok {
		return false
	}
	assetPrice, ok := m.prices.CurrentPrice(pos.Asset)
	if !ok {
		return false
	}
	return (assetPrice > market.Threshold) != pos.EnteredAbove(market.Threshold)
}
