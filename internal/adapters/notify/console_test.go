package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

func TestNotifyOpportunity(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	opp := domain.Opportunity{
		Asset: "BTC", Side: domain.SideYes,
		ExpectedPrice: 0.87, ActualPrice: 0.55, Gap: 0.368, AssetPrice: 101000,
	}
	m := domain.ThresholdMarket{ID: "0x001", Question: "Will BTC be above $100,000?"}

	require.NoError(t, c.NotifyOpportunity(context.Background(), opp, m))
	out := buf.String()
	assert.Contains(t, out, "GAP BTC YES")
	assert.Contains(t, out, "36.8%")
}

func TestNotifyClose_NegativePnL(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	exitPrice := 0.40
	pnl := -30.0
	pos := domain.Position{
		Asset: "ETH", Side: domain.SideNo, EntryPrice: 0.55,
		ExitPrice: &exitPrice, RealizedPnL: &pnl,
		ExitReason: domain.ExitStopLoss, Status: domain.PositionClosed,
	}

	require.NoError(t, c.NotifyClose(context.Background(), pos))
	out := buf.String()
	assert.Contains(t, out, "CLOSE ETH NO")
	assert.Contains(t, out, "STOP_LOSS")
	assert.Contains(t, out, "-$30.00")
}

func TestNotifySummary(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)

	s := domain.SessionSummary{
		StartedAt:   time.Now().Add(-time.Hour),
		StoppedAt:   time.Now(),
		Opened:      4,
		Closed:      3,
		Wins:        2,
		Losses:      1,
		RealizedPnL: 15.50,
		ByReason: map[domain.ExitReason]int{
			domain.ExitProfit: 2,
			domain.ExitTime:   1,
		},
	}

	require.NoError(t, c.NotifySummary(context.Background(), s))
	out := buf.String()
	assert.Contains(t, out, "SESSION SUMMARY")
	assert.Contains(t, out, "$15.50")
	assert.Contains(t, out, "PROFIT")
}

func TestPrintCatalog_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf)
	c.PrintCatalog(nil)
	assert.Contains(t, buf.String(), "no threshold markets")
}
