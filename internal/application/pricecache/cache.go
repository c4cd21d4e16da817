// Package pricecache cachea los precios de contratos (YES/NO) por token ID.
package pricecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// priceFetcher obtiene precios de contratos en bloque desde la fuente de
// mercados. Los tokens sin precio se omiten del resultado.
type priceFetcher interface {
	FetchPrices(ctx context.Context, tokenIDs []string) (map[string]float64, error)
}

type entry struct {
	price float64
	at    time.Time
}

// Cache mantiene el último precio observado por token. Las lecturas nunca
// bloquean y pueden devolver valores viejos con su antigüedad; el refresco
// es single-flight y está limitado por intervalo: un refresco en vuelo o
// completado hace menos de refreshInterval se salta, no se encola.
type Cache struct {
	fetcher  priceFetcher
	interval time.Duration
	now      func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	prices      map[string]entry
	lastRefresh time.Time
}

// New construye el cache con el intervalo mínimo entre refrescos.
func New(fetcher priceFetcher, refreshInterval time.Duration) *Cache {
	return &Cache{
		fetcher:  fetcher,
		interval: refreshInterval,
		now:      time.Now,
		prices:   make(map[string]entry),
	}
}

// Price devuelve el último precio observado del token y su antigüedad.
// No bloquea nunca; devuelve false si el token no se ha observado.
func (c *Cache) Price(tokenID string) (float64, time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.prices[tokenID]
	if !ok {
		return 0, 0, false
	}
	return e.price, c.now().Sub(e.at), true
}

// Refresh actualiza los precios de los tokens dados si pasó el intervalo
// mínimo desde el último refresco. Llamadas concurrentes colapsan en un
// solo fetch.
func (c *Cache) Refresh(ctx context.Context, tokenIDs []string) error {
	c.mu.RLock()
	fresh := c.now().Sub(c.lastRefresh) < c.interval
	c.mu.RUnlock()
	if fresh {
		return nil
	}
	return c.refresh(ctx, tokenIDs)
}

// Warm fuerza un refresco ignorando el intervalo. Se usa al arrancar y tras
// cada pasada de descubrimiento.
func (c *Cache) Warm(ctx context.Context, tokenIDs []string) error {
	return c.refresh(ctx, tokenIDs)
}

func (c *Cache) refresh(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	_, err, _ := c.group.Do("refresh", func() (any, error) {
		prices, err := c.fetcher.FetchPrices(ctx, tokenIDs)
		if err != nil {
			return nil, fmt.Errorf("pricecache: fetch prices: %w", err)
		}

		now := c.now()
		c.mu.Lock()
		for tokenID, price := range prices {
			c.prices[tokenID] = entry{price: price, at: now}
		}
		c.lastRefresh = now
		c.mu.Unlock()
		return nil, nil
	})
	return err
}

// Len devuelve cuántos tokens tienen precio observado.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
