// Package execution implementa la apertura y el cierre de posiciones
// simuladas: sizing, chequeo de riesgo atómico y persistencia transaccional.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/gapbot/internal/application/risk"
	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// ErrAlreadyClosing indica que otro caller ganó la transición OPEN → CLOSING
// de la posición.
var ErrAlreadyClosing = errors.New("execution: position already closing")

// Result es el desenlace de un intento de ejecución.
type Result struct {
	Executed bool
	Position domain.Position // válida solo si Executed
	Decision risk.Decision   // veredicto del ledger
}

// Executor abre y cierra posiciones. Todas las aperturas pasan por el mutex
// de ejecución del ledger, de modo que el chequeo de riesgo y el commit de
// la posición forman una región atómica.
type Executor struct {
	repo     ports.Repository
	ledger   *risk.Ledger
	sizer    *Sizer
	notifier ports.Notifier
	now      func() time.Time
}

// NewExecutor construye el ejecutor.
func NewExecutor(repo ports.Repository, ledger *risk.Ledger, sizer *Sizer, notifier ports.Notifier) *Executor {
	return &Executor{
		repo:     repo,
		ledger:   ledger,
		sizer:    sizer,
		notifier: notifier,
		now:      time.Now,
	}
}

// ExecuteTrade intenta abrir una posición para la oportunidad. Calcula el
// tamaño, consulta el ledger y, si pasa, persiste la posición junto con la
// transición de la oportunidad a EXECUTED en una sola transacción. Un
// rechazo del ledger marca la oportunidad SKIPPED y no es un error. Un fallo
// de persistencia deja la memoria intacta y se devuelve al caller.
func (e *Executor) ExecuteTrade(ctx context.Context, opp domain.Opportunity, marketVolume float64) (Result, error) {
	size := e.sizer.Size(opp.Gap, marketVolume)

	e.ledger.Lock()
	defer e.ledger.Unlock()

	decision, err := e.ledger.CanTrade(ctx, opp.MarketID, size)
	if err != nil {
		return Result{}, fmt.Errorf("execution.ExecuteTrade: risk check: %w", err)
	}
	if !decision.Allowed {
		slog.Info("trade rejected",
			"market_id", opp.MarketID,
			"category", decision.Category,
			"reason", decision.Reason)
		if err := e.repo.UpdateOpportunityStatus(ctx, opp.ID, domain.OpportunitySkipped); err != nil {
			return Result{Decision: decision}, fmt.Errorf("execution.ExecuteTrade: mark skipped: %w", err)
		}
		return Result{Decision: decision}, nil
	}

	now := e.now()
	pos := domain.Position{
		ID:           uuid.NewString(),
		MarketID:     opp.MarketID,
		Asset:        opp.Asset,
		Side:         opp.Side,
		EntryPrice:   opp.ActualPrice,
		Quantity:     size / opp.ActualPrice,
		EntryTime:    now,
		PriceAtEntry: opp.AssetPrice,
		Status:       domain.PositionOpen,
	}

	if err := e.repo.OpenPosition(ctx, pos, opp.ID); err != nil {
		return Result{}, fmt.Errorf("execution.ExecuteTrade: persist position: %w", err)
	}

	// solo tras el commit tocamos el estado en memoria
	e.ledger.StartCooldown(opp.MarketID)
	e.ledger.CountTrade()

	slog.Info("position opened",
		"position_id", pos.ID,
		"market_id", pos.MarketID,
		"side", pos.Side,
		"size", size,
		"entry_price", pos.EntryPrice,
		"quantity", pos.Quantity)

	if err := e.notifier.NotifyExecution(ctx, pos); err != nil {
		slog.Warn("execution: notify failed", "err", err)
	}

	return Result{Executed: true, Position: pos, Decision: decision}, nil
}

// ClosePosition cierra una posición abierta al precio de salida dado. El
// claim OPEN → CLOSING es un update condicional en el repositorio; perder la
// carrera devuelve ErrAlreadyClosing. Los fallos de persistencia suben al
// caller sin retry.
func (e *Executor) ClosePosition(ctx context.Context, pos domain.Position, exitPrice float64, reason domain.ExitReason) (domain.Position, error) {
	claimed, err := e.repo.ClaimClosing(ctx, pos.ID)
	if err != nil {
		return domain.Position{}, fmt.Errorf("execution.ClosePosition: claim: %w", err)
	}
	if !claimed {
		return domain.Position{}, ErrAlreadyClosing
	}

	now := e.now()
	pnl := pos.Quantity*exitPrice - pos.Quantity*pos.EntryPrice

	pos.ExitPrice = &exitPrice
	pos.ExitTime = &now
	pos.ExitReason = reason
	pos.RealizedPnL = &pnl
	pos.Status = domain.PositionClosed

	if err := e.repo.ClosePosition(ctx, pos); err != nil {
		return domain.Position{}, fmt.Errorf("execution.ClosePosition: persist close: %w", err)
	}

	e.ledger.ClearCooldown(pos.MarketID)

	slog.Info("position closed",
		"position_id", pos.ID,
		"market_id", pos.MarketID,
		"reason", reason,
		"exit_price", exitPrice,
		"pnl", pnl)

	if err := e.notifier.NotifyClose(ctx, pos); err != nil {
		slog.Warn("execution: notify failed", "err", err)
	}

	return pos, nil
}
