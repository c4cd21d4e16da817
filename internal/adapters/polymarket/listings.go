package polymarket

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/gapbot/internal/ports"
)

const (
	gammaMarketsPath = "/markets"
	listingsPageSize = 100
	listingsMaxPages = 50 // tope de seguridad: 5000 listings por run
)

// ListOpenMarkets devuelve todos los listings abiertos de Gamma.
// Pagina con limit/offset hasta agotar los resultados. Una página que falla
// corta la paginación pero no descarta las páginas ya obtenidas.
func (c *Client) ListOpenMarkets(ctx context.Context) ([]ports.RawListing, error) {
	var all []ports.RawListing

	for page := 0; page < listingsMaxPages; page++ {
		url := fmt.Sprintf("%s%s?active=true&closed=false&limit=%d&offset=%d",
			c.gammaBase, gammaMarketsPath, listingsPageSize, page*listingsPageSize)

		var resp gammaMarketsResponse
		if err := c.get(ctx, c.gammaLimiter, url, &resp); err != nil {
			if len(all) == 0 {
				return nil, fmt.Errorf("polymarket.ListOpenMarkets: page %d: %w", page, err)
			}
			slog.Warn("polymarket: listings page failed, returning partial results",
				"page", page, "fetched", len(all), "err", err)
			break
		}

		for _, gm := range resp {
			all = append(all, mapListing(gm))
		}

		if len(resp) < listingsPageSize {
			break // última página
		}
	}

	slog.Debug("polymarket: listings fetched", "total", len(all))
	return all, nil
}
