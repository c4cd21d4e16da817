package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/gapbot/internal/domain"
	"github.com/alejandrodnm/gapbot/internal/ports"
)

// fakeProvider devuelve listings fijos.
type fakeProvider struct {
	listings []ports.RawListing
	err      error
}

func (f *fakeProvider) ListOpenMarkets(_ context.Context) ([]ports.RawListing, error) {
	return f.listings, f.err
}

func (f *fakeProvider) FetchPrices(_ context.Context, _ []string) (map[string]float64, error) {
	return nil, nil
}

// fakeRepo implementa lo justo de ports.Repository para el catálogo.
type fakeRepo struct {
	ports.Repository

	markets map[string]domain.ThresholdMarket
	failIDs map[string]bool
	upserts int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{markets: make(map[string]domain.ThresholdMarket), failIDs: make(map[string]bool)}
}

func (f *fakeRepo) UpsertMarket(_ context.Context, m domain.ThresholdMarket) error {
	f.upserts++
	if f.failIDs[m.ID] {
		return errors.New("disk full")
	}
	f.markets[m.ID] = m
	return nil
}

func (f *fakeRepo) ListActiveMarkets(_ context.Context) ([]domain.ThresholdMarket, error) {
	out := make([]domain.ThresholdMarket, 0, len(f.markets))
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, nil
}

func listing(id, question string, volume float64, hoursOut float64) ports.RawListing {
	return ports.RawListing{
		ID:         id,
		Question:   question,
		Volume24h:  volume,
		EndDate:    time.Now().Add(time.Duration(hoursOut * float64(time.Hour))),
		Active:     true,
		Closed:     false,
		YesTokenID: "yes-" + id,
		NoTokenID:  "no-" + id,
	}
}

func TestDiscover_AcceptsValidMarkets(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("m1", "Will Bitcoin close above $100,000?", 50000, 24),
		listing("m2", "Will ETH drop below $3,000?", 20000, 48),
	}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	result, err := cat.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Discovered)
	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 0, result.Excluded)
	assert.Empty(t, result.PersistErrs)
	assert.Equal(t, 2, cat.Len())

	m, ok := cat.Get("m2")
	require.True(t, ok)
	assert.Equal(t, "ETH", m.Asset)
	assert.Equal(t, 3000.0, m.Threshold)
	assert.Equal(t, domain.DirectionBelow, m.Direction)
	assert.Equal(t, domain.MarketActive, m.Status)
}

func TestDiscover_CountsExcludedAndUnmatched(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("m1", "Will Bitcoin close above $100,000?", 50000, 24),
		listing("m2", "Will the SEC approve a Bitcoin ETF?", 50000, 24),
		listing("m3", "Will it rain in London tomorrow?", 50000, 24),
	}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	result, err := cat.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, 1, result.Excluded)
	assert.Equal(t, 1, result.Accepted)
}

func TestDiscover_ValidationGates(t *testing.T) {
	lowVolume := listing("low-vol", "Will Bitcoin close above $100,000?", 500, 24)
	tooClose := listing("too-close", "Will ETH close above $4,000?", 50000, 0.5)
	closed := listing("closed", "Will SOL close above $200?", 50000, 24)
	closed.Closed = true
	noTokens := listing("no-tokens", "Will Bitcoin close above $90,000?", 50000, 24)
	noTokens.YesTokenID = ""

	provider := &fakeProvider{listings: []ports.RawListing{lowVolume, tooClose, closed, noTokens}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	result, err := cat.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.Matched)
	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, 0, cat.Len())
}

func TestDiscover_PersistFailureDoesNotAbort(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("bad", "Will Bitcoin close above $100,000?", 50000, 24),
		listing("good", "Will ETH close above $4,000?", 50000, 24),
	}}
	repo := newFakeRepo()
	repo.failIDs["bad"] = true
	cat := New(provider, repo, 10000, 1)

	result, err := cat.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	require.Len(t, result.PersistErrs, 1)
	assert.Contains(t, result.PersistErrs[0], "bad")

	// el que falló no entra al índice; el bueno sí
	_, ok := cat.Get("bad")
	assert.False(t, ok)
	_, ok = cat.Get("good")
	assert.True(t, ok)
}

func TestDiscover_RepeatedRunsDoNotDuplicate(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("m1", "Will Bitcoin close above $100,000?", 50000, 24),
	}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	_, err := cat.Discover(context.Background())
	require.NoError(t, err)
	_, err = cat.Discover(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, repo.upserts) // cada pasada re-upserta, el índice no duplica
	assert.Equal(t, 1, cat.Len())
	assert.Len(t, cat.MarketsForAsset("BTC"), 1)
}

func TestWarmLoad_RestoresPersistedMarkets(t *testing.T) {
	repo := newFakeRepo()
	repo.markets["m1"] = domain.ThresholdMarket{
		ID: "m1", Asset: "BTC", Threshold: 100000,
		Direction: domain.DirectionAbove, Status: domain.MarketActive,
		YesTokenID: "yes-m1", NoTokenID: "no-m1",
	}
	cat := New(&fakeProvider{}, repo, 10000, 1)

	n, err := cat.WarmLoad(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, 1, cat.Len())
	assert.Len(t, cat.MarketsForAsset("BTC"), 1)
}

func TestMarketsForAsset_WhitelistedFirst(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("a-plain", "Bitcoin at $95,000 by Friday", 50000, 24),
		listing("b-canon", "Will Bitcoin close above $100,000?", 50000, 24),
	}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	_, err := cat.Discover(context.Background())
	require.NoError(t, err)

	markets := cat.MarketsForAsset("BTC")
	require.Len(t, markets, 2)
	assert.True(t, markets[0].Whitelisted)
	assert.Equal(t, "b-canon", markets[0].ID)
}

func TestTokenIDs_ReturnsBothSides(t *testing.T) {
	provider := &fakeProvider{listings: []ports.RawListing{
		listing("m1", "Will Bitcoin close above $100,000?", 50000, 24),
	}}
	repo := newFakeRepo()
	cat := New(provider, repo, 10000, 1)

	_, err := cat.Discover(context.Background())
	require.NoError(t, err)

	tokens := cat.TokenIDs()
	assert.ElementsMatch(t, []string{"yes-m1", "no-m1"}, tokens)
}
