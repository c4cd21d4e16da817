package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

// Repository es el contrato de persistencia del core: mercados descubiertos,
// oportunidades detectadas y posiciones con sus agregados de riesgo.
type Repository interface {
	// UpsertMarket inserta o actualiza un mercado por ID. Discovery repetido
	// actualiza, nunca duplica.
	UpsertMarket(ctx context.Context, m domain.ThresholdMarket) error

	// GetMarket devuelve un mercado por ID.
	GetMarket(ctx context.Context, id string) (domain.ThresholdMarket, error)

	// ListActiveMarkets devuelve todos los mercados con status ACTIVE.
	ListActiveMarkets(ctx context.Context) ([]domain.ThresholdMarket, error)

	// SaveOpportunity persiste una oportunidad recién detectada.
	SaveOpportunity(ctx context.Context, o domain.Opportunity) error

	// UpdateOpportunityStatus transiciona el status de una oportunidad.
	UpdateOpportunityStatus(ctx context.Context, id string, status domain.OpportunityStatus) error

	// OpenPosition inserta la posición y marca la oportunidad como EXECUTED
	// en una sola transacción.
	OpenPosition(ctx context.Context, p domain.Position, opportunityID string) error

	// GetOpenPositions devuelve las posiciones con status OPEN.
	GetOpenPositions(ctx context.Context) ([]domain.Position, error)

	// ClaimClosing intenta la transición OPEN → CLOSING de forma atómica.
	// Devuelve false si otra llamada ya ganó la transición.
	ClaimClosing(ctx context.Context, positionID string) (bool, error)

	// ClosePosition persiste el cierre: exit price/time/reason, P&L y status CLOSED.
	ClosePosition(ctx context.Context, p domain.Position) error

	// ClosedPositionsSince devuelve las posiciones cerradas desde el instante dado.
	ClosedPositionsSince(ctx context.Context, since time.Time) ([]domain.Position, error)

	// OpenExposure devuelve la suma de cost basis de las posiciones no cerradas.
	OpenExposure(ctx context.Context) (float64, error)

	// OpenPositionCount devuelve cuántas posiciones siguen abiertas.
	OpenPositionCount(ctx context.Context) (int, error)

	// RealizedPnLSince devuelve el P&L realizado desde el instante dado.
	RealizedPnLSince(ctx context.Context, since time.Time) (float64, error)

	// TradesSince devuelve cuántas posiciones se abrieron desde el instante dado.
	TradesSince(ctx context.Context, since time.Time) (int, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
