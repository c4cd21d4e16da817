package ports

import (
	"context"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

// Notifier presenta la actividad del bot al usuario.
// En la implementación de consola, imprime líneas compactas y tablas.
type Notifier interface {
	// NotifyOpportunity muestra una oportunidad recién detectada.
	NotifyOpportunity(ctx context.Context, opp domain.Opportunity, m domain.ThresholdMarket) error

	// NotifyExecution muestra una posición recién abierta.
	NotifyExecution(ctx context.Context, pos domain.Position) error

	// NotifyClose muestra una posición recién cerrada con su P&L.
	NotifyClose(ctx context.Context, pos domain.Position) error

	// NotifySummary imprime el resumen de la sesión al apagar.
	NotifySummary(ctx context.Context, s domain.SessionSummary) error
}
