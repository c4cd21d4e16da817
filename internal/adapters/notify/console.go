package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

// Console implementa ports.Notifier escribiendo líneas compactas por evento
// y tablas para el resumen de sesión y el catálogo.
type Console struct {
	out io.Writer
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// NotifyOpportunity imprime una oportunidad recién detectada.
func (c *Console) NotifyOpportunity(_ context.Context, opp domain.Opportunity, m domain.ThresholdMarket) error {
	fmt.Fprintf(c.out, "[%s] GAP %s %s | %s | exp %.2f vs %.2f | gap %.1f%% | px $%.2f\n",
		time.Now().Format("15:04:05"),
		opp.Asset,
		opp.Side,
		domain.TruncateQuestion(m.Question, m.ID, 40),
		opp.ExpectedPrice,
		opp.ActualPrice,
		opp.GapPercent(),
		opp.AssetPrice,
	)
	return nil
}

// NotifyExecution imprime una posición recién abierta.
func (c *Console) NotifyExecution(_ context.Context, pos domain.Position) error {
	fmt.Fprintf(c.out, "[%s] OPEN %s %s | %.1f @ $%.2f = $%.2f | asset $%.2f\n",
		time.Now().Format("15:04:05"),
		pos.Asset,
		pos.Side,
		pos.Quantity,
		pos.EntryPrice,
		pos.CostBasis(),
		pos.PriceAtEntry,
	)
	return nil
}

// NotifyClose imprime una posición recién cerrada con su P&L.
func (c *Console) NotifyClose(_ context.Context, pos domain.Position) error {
	pnl := 0.0
	if pos.RealizedPnL != nil {
		pnl = *pos.RealizedPnL
	}
	exitPrice := 0.0
	if pos.ExitPrice != nil {
		exitPrice = *pos.ExitPrice
	}
	sign := "+"
	if pnl < 0 {
		sign = "-"
	}
	fmt.Fprintf(c.out, "[%s] CLOSE %s %s | %s | $%.2f → $%.2f | %s$%.2f\n",
		time.Now().Format("15:04:05"),
		pos.Asset,
		pos.Side,
		pos.ExitReason,
		pos.EntryPrice,
		exitPrice,
		sign,
		abs(pnl),
	)
	return nil
}

// NotifySummary imprime la tabla de resumen de sesión.
func (c *Console) NotifySummary(_ context.Context, s domain.SessionSummary) error {
	fmt.Fprintf(c.out, "\n=== SESSION SUMMARY (%s → %s) ===\n",
		s.StartedAt.Format("15:04:05"), s.StoppedAt.Format("15:04:05"))

	table := tablewriter.NewWriter(c.out)
	table.Header("Opened", "Closed", "Wins", "Losses", "Win rate", "Realized P&L")
	table.Append(
		fmt.Sprintf("%d", s.Opened),
		fmt.Sprintf("%d", s.Closed),
		fmt.Sprintf("%d", s.Wins),
		fmt.Sprintf("%d", s.Losses),
		fmt.Sprintf("%.0f%%", s.WinRate()*100),
		fmt.Sprintf("$%.2f", s.RealizedPnL),
	)
	table.Render()

	if len(s.ByReason) > 0 {
		reasons := tablewriter.NewWriter(c.out)
		reasons.Header("Exit reason", "Closes")
		for _, reason := range []domain.ExitReason{
			domain.ExitProfit, domain.ExitStopLoss, domain.ExitTime, domain.ExitReversal,
		} {
			if n, ok := s.ByReason[reason]; ok {
				reasons.Append(string(reason), fmt.Sprintf("%d", n))
			}
		}
		reasons.Render()
	}
	return nil
}

// PrintCatalog imprime la tabla de mercados descubiertos (modo -discover).
func (c *Console) PrintCatalog(markets []domain.ThresholdMarket) {
	if len(markets) == 0 {
		fmt.Fprintln(c.out, "no threshold markets in catalog")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Asset", "Dir", "Threshold", "Market", "Vol 24h", "Ends in")

	for _, m := range markets {
		table.Append(
			m.Asset,
			string(m.Direction),
			fmt.Sprintf("$%.0f", m.Threshold),
			domain.TruncateQuestion(m.Question, m.ID, 45),
			fmt.Sprintf("$%.0f", m.Volume24h),
			fmt.Sprintf("%.0fh", m.HoursToResolution()),
		)
	}
	table.Render()
	fmt.Fprintf(c.out, "%d threshold markets\n", len(markets))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
