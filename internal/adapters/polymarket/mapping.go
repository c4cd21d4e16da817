package polymarket

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/alejandrodnm/gapbot/internal/ports"
)

// mapListing convierte un gammaMarket DTO a ports.RawListing.
func mapListing(gm gammaMarket) ports.RawListing {
	l := ports.RawListing{
		ID:       listingID(gm),
		Question: gm.Question,
		Active:   gm.Active,
		Closed:   gm.Closed,
	}

	if v, err := gm.Volume24h.Float64(); err == nil {
		l.Volume24h = v
	}

	l.EndDate = parseEndDate(gm.EndDateISO)
	l.YesTokenID, l.NoTokenID = parseTokenIDs(gm.CLOBTokenIDs)
	l.YesPrice, l.NoPrice = parseOutcomePrices(gm.OutcomePrices)

	return l
}

// listingID prefiere el condition ID (estable entre APIs) sobre el ID interno de Gamma.
func listingID(gm gammaMarket) string {
	if gm.ConditionID != "" {
		return gm.ConditionID
	}
	return gm.ID
}

// parseEndDate intenta los formatos de fecha que usa Polymarket.
func parseEndDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.000Z",
		"2006-01-02T15:04:05Z",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseTokenIDs parsea el array JSON-dentro-de-string de clobTokenIds.
// El primer token es YES, el segundo NO.
func parseTokenIDs(raw string) (yes, no string) {
	if raw == "" {
		return "", ""
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return "", ""
	}
	if len(ids) > 0 {
		yes = ids[0]
	}
	if len(ids) > 1 {
		no = ids[1]
	}
	return yes, no
}

// parseOutcomePrices parsea el array JSON-dentro-de-string de outcomePrices.
// Precios fuera de (0, 1) se descartan.
func parseOutcomePrices(raw string) (yes, no float64) {
	if raw == "" {
		return 0, 0
	}
	var prices []string
	if err := json.Unmarshal([]byte(raw), &prices); err != nil {
		return 0, 0
	}
	parse := func(s string) float64 {
		p, err := strconv.ParseFloat(s, 64)
		if err != nil || p <= 0 || p >= 1 {
			return 0
		}
		return p
	}
	if len(prices) > 0 {
		yes = parse(prices[0])
	}
	if len(prices) > 1 {
		no = parse(prices[1])
	}
	return yes, no
}
