package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
)

const (
	pricesPath     = "/prices"
	priceBatchSize = 100 // máx token_ids por request a /prices
)

// FetchPrices obtiene el precio de compra (side BUY) de los tokens dados usando
// el endpoint batch del CLOB. Lanza un goroutine por batch; el rate limiter en
// doWithRetry controla el ritmo automáticamente, sin semáforo explícito.
func (c *Client) FetchPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	if len(tokenIDs) == 0 {
		return map[string]float64{}, nil
	}

	batches := splitBatches(tokenIDs, priceBatchSize)

	type batchResult struct {
		prices map[string]float64
		err    error
		idx    int
	}

	resultCh := make(chan batchResult, len(batches))
	var wg sync.WaitGroup

	for i, batch := range batches {
		i, batch := i, batch
		wg.Add(1)
		go func() {
			defer wg.Done()
			prices, err := c.fetchPricesBatch(ctx, batch)
			resultCh <- batchResult{prices: prices, err: err, idx: i}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	result := make(map[string]float64, len(tokenIDs))
	var firstErr error

	for r := range resultCh {
		if r.err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("polymarket.FetchPrices batch %d: %w", r.idx, r.err)
			}
			continue
		}
		for k, v := range r.prices {
			result[k] = v
		}
	}

	// Resultado parcial con error: preferimos devolver lo que hay si algún
	// batch respondió; el cache decide qué hacer con los tokens faltantes.
	if firstErr != nil && len(result) == 0 {
		return nil, firstErr
	}
	if firstErr != nil {
		slog.Warn("polymarket: partial price fetch", "got", len(result), "want", len(tokenIDs), "err", firstErr)
	}

	return result, nil
}

// fetchPricesBatch hace un POST /prices para un batch de token_ids.
func (c *Client) fetchPricesBatch(ctx context.Context, tokenIDs []string) (map[string]float64, error) {
	body := make([]priceRequest, len(tokenIDs))
	for i, id := range tokenIDs {
		body[i] = priceRequest{TokenID: id, Side: "BUY"}
	}

	var resp priceResponse
	url := c.clobBase + pricesPath
	if err := c.post(ctx, c.clobLimiter, url, body, &resp); err != nil {
		return nil, fmt.Errorf("POST /prices: %w", err)
	}

	prices := make(map[string]float64, len(resp))
	for tokenID, sides := range resp {
		raw, ok := sides["BUY"]
		if !ok {
			continue
		}
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil || p <= 0 || p >= 1 {
			continue
		}
		prices[tokenID] = p
	}
	return prices, nil
}

// splitBatches divide tokenIDs en slices de tamaño máximo size.
func splitBatches(tokenIDs []string, size int) [][]string {
	if size <= 0 {
		size = priceBatchSize
	}
	batches := make([][]string, 0, (len(tokenIDs)+size-1)/size)
	for i := 0; i < len(tokenIDs); i += size {
		end := i + size
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}
		batches = append(batches, tokenIDs[i:end])
	}
	return batches
}
