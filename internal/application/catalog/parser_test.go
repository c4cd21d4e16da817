package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gapbot/internal/domain"
)

func TestParseQuestion_DollarAmount(t *testing.T) {
	cand, ok := ParseQuestion("Will Bitcoin close above $100,000 on December 31?")
	require.True(t, ok)

	assert.Equal(t, "BTC", cand.Asset)
	assert.Equal(t, 100000.0, cand.Threshold)
	assert.Equal(t, domain.DirectionAbove, cand.Direction)
	assert.True(t, cand.Whitelisted)
}

func TestParseQuestion_SuffixK(t *testing.T) {
	cand, ok := ParseQuestion("Will BTC hit $100K this week?")
	require.True(t, ok)

	assert.Equal(t, "BTC", cand.Asset)
	assert.Equal(t, 100000.0, cand.Threshold)
}

func TestParseQuestion_SuffixM(t *testing.T) {
	cand, ok := ParseQuestion("Will Bitcoin reach $0.5M this year?")
	require.True(t, ok)

	assert.Equal(t, 500000.0, cand.Threshold)
}

func TestParseQuestion_SuffixMOutOfRange(t *testing.T) {
	// $1.5M excede el rango razonable de BTC (tope 1M)
	_, ok := ParseQuestion("Will Bitcoin reach $1.5M by 2030?")
	assert.False(t, ok)
}

func TestParseQuestion_BareCommaGrouped(t *testing.T) {
	cand, ok := ParseQuestion("Will ETH be above 4,000 at end of month?")
	require.True(t, ok)

	assert.Equal(t, "ETH", cand.Asset)
	assert.Equal(t, 4000.0, cand.Threshold)
}

func TestParseQuestion_BelowDirection(t *testing.T) {
	cases := []string{
		"Will Bitcoin drop below $90,000?",
		"Will BTC dip under $90,000 this week?",
		"Will Bitcoin fall to under $90,000?",
	}
	for _, q := range cases {
		cand, ok := ParseQuestion(q)
		require.True(t, ok, q)
		assert.Equal(t, domain.DirectionBelow, cand.Direction, q)
	}
}

func TestParseQuestion_AssetPriority(t *testing.T) {
	// BTC gana aunque ETH también aparezca
	cand, ok := ParseQuestion("Will Bitcoin outperform Ethereum above $100,000?")
	require.True(t, ok)
	assert.Equal(t, "BTC", cand.Asset)

	// ETH gana sobre SOL
	cand, ok = ParseQuestion("Will Ethereum or Solana close above $4,000?")
	require.True(t, ok)
	assert.Equal(t, "ETH", cand.Asset)
}

func TestParseQuestion_Solana(t *testing.T) {
	cand, ok := ParseQuestion("Will SOL reach $250 this quarter?")
	require.True(t, ok)

	assert.Equal(t, "SOL", cand.Asset)
	assert.Equal(t, 250.0, cand.Threshold)
}

func TestParseQuestion_ExclusionKeywords(t *testing.T) {
	cases := []string{
		"Will BTC tweet about $100K?",
		"Will the SEC approve a Bitcoin ETF above $100,000?",
		"Will Elon Musk say Bitcoin hits $100,000?",
		"Will Trump announce a Bitcoin reserve at $100,000?",
		"Will new regulation push BTC above $100,000?",
	}
	for _, q := range cases {
		_, ok := ParseQuestion(q)
		assert.False(t, ok, q)
	}
}

func TestParseQuestion_SecondIsNotSEC(t *testing.T) {
	// "second" no debe disparar la exclusión de "sec"
	cand, ok := ParseQuestion("Will ETH close above $4,000 in the second week of March?")
	require.True(t, ok)
	assert.Equal(t, "ETH", cand.Asset)
}

func TestParseQuestion_SaneRanges(t *testing.T) {
	cases := []struct {
		question string
		ok       bool
	}{
		{"Will Bitcoin hit $5,000?", false},   // BTC por debajo de 10k
		{"Will Bitcoin hit $50,000?", true},   // dentro del rango
		{"Will ETH reach $50?", false},        // ETH por debajo de 100
		{"Will SOL reach $50,000?", false},    // SOL por encima de 10k
		{"Will SOL reach $150?", true},        // dentro del rango
	}
	for _, c := range cases {
		_, ok := ParseQuestion(c.question)
		assert.Equal(t, c.ok, ok, c.question)
	}
}

func TestParseQuestion_NoAsset(t *testing.T) {
	_, ok := ParseQuestion("Will gold close above $3,000?")
	assert.False(t, ok)
}

func TestParseQuestion_NoThreshold(t *testing.T) {
	_, ok := ParseQuestion("Will Bitcoin have a green month?")
	assert.False(t, ok)
}

func TestParseQuestion_WhitelistShape(t *testing.T) {
	cand, ok := ParseQuestion("Bitcoin price prediction for $100,000 milestone")
	require.True(t, ok)
	assert.False(t, cand.Whitelisted)

	cand, ok = ParseQuestion("Will Bitcoin close above $100,000?")
	require.True(t, ok)
	assert.True(t, cand.Whitelisted)
}
