package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMapListing_Complete(t *testing.T) {
	gm := gammaMarket{
		ID:            "12345",
		ConditionID:   "0xdeadbeef",
		Question:      "Will BTC be above $100,000 on Dec 31?",
		EndDateISO:    "2026-12-31T12:00:00Z",
		Volume24h:     json.Number("250000.5"),
		Active:        true,
		Closed:        false,
		CLOBTokenIDs:  `["111","222"]`,
		OutcomePrices: `["0.55","0.45"]`,
	}

	l := mapListing(gm)

	assert.Equal(t, "0xdeadbeef", l.ID, "prefiere conditionId")
	assert.Equal(t, "Will BTC be above $100,000 on Dec 31?", l.Question)
	assert.InDelta(t, 250000.5, l.Volume24h, 0.001)
	assert.True(t, l.Active)
	assert.False(t, l.Closed)
	assert.Equal(t, "111", l.YesTokenID)
	assert.Equal(t, "222", l.NoTokenID)
	assert.InDelta(t, 0.55, l.YesPrice, 0.001)
	assert.InDelta(t, 0.45, l.NoPrice, 0.001)
	assert.Equal(t, time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC), l.EndDate)
}

func TestMapListing_FallbackToGammaID(t *testing.T) {
	l := mapListing(gammaMarket{ID: "777"})
	assert.Equal(t, "777", l.ID)
}

func TestParseEndDate_Formats(t *testing.T) {
	cases := []string{
		"2026-06-01T00:00:00Z",
		"2026-06-01T00:00:00.000Z",
		"2026-06-01",
	}
	for _, raw := range cases {
		parsed := parseEndDate(raw)
		assert.Equal(t, 2026, parsed.Year(), "raw=%q", raw)
		assert.Equal(t, time.June, parsed.Month(), "raw=%q", raw)
	}
	assert.True(t, parseEndDate("not-a-date").IsZero())
	assert.True(t, parseEndDate("").IsZero())
}

func TestParseTokenIDs_Malformed(t *testing.T) {
	yes, no := parseTokenIDs(`["only-one"]`)
	assert.Equal(t, "only-one", yes)
	assert.Empty(t, no)

	yes, no = parseTokenIDs(`garbage`)
	assert.Empty(t, yes)
	assert.Empty(t, no)
}

func TestParseOutcomePrices_OutOfRange(t *testing.T) {
	// Precios fuera de (0,1) se descartan
	yes, no := parseOutcomePrices(`["1.5","0.45"]`)
	assert.Equal(t, 0.0, yes)
	assert.InDelta(t, 0.45, no, 0.001)
}

func TestSplitBatches(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	batches := splitBatches(ids, 2)
	assert.Len(t, batches, 3)
	assert.Equal(t, []string{"a", "b"}, batches[0])
	assert.Equal(t, []string{"e"}, batches[2])
}
