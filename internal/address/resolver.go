package address

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"eventbridge/internal/models"
)

// Point is a geocoded coordinate pair.
type Point struct {
	Lon decimal.Decimal
	Lat decimal.Decimal
}

// Geocoder resolves free-text address queries. A nil Point with nil error
// means no match. Timeouts surface as errors and are treated like no match.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (*Point, error)
}

// Resolver turns free-text calendar locations into structured addresses.
// The comma-token heuristic is deliberately narrow: it targets the location
// strings real calendar feeds produce, not general address parsing.
type Resolver struct {
	Geocoder Geocoder
	Logger   *zap.Logger
}

// Resolve parses rawText against the kernel's default address. A nil result
// is valid and means the event is published without a resolved location.
func (r *Resolver) Resolve(ctx context.Context, rawText string, def *models.Address, title string) *models.Address {
	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		if def != nil {
			r.debug("no location provided, using default", title)
		}
		return def.Clone()
	}

	tokens := splitTokens(rawText)
	var parsed *models.Address
	switch len(tokens) {
	case 1, 2:
		// Too few tokens to guess; fall back to the default if any.
		return def.Clone()
	case 3:
		parsed = &models.Address{Locality: tokens[0], PostalCode: tokens[1], Street: "", Country: tokens[2]}
	case 4:
		parsed = &models.Address{Street: tokens[0], Locality: tokens[1], PostalCode: tokens[2], Country: tokens[3]}
	case 5:
		// Leading token is a venue name prefix; drop it.
		parsed = &models.Address{Street: tokens[1], Locality: tokens[2], PostalCode: tokens[3], Country: tokens[4]}
	default:
		return nil
	}

	// The feed often just restates the configured venue; skip the geocoder
	// round trip when every default component appears verbatim.
	if def != nil &&
		strings.Contains(rawText, def.Locality) &&
		strings.Contains(rawText, def.Street) &&
		strings.Contains(rawText, def.PostalCode) {
		r.debug("location restates default venue", title)
		return def.Clone()
	}

	if r.Geocoder == nil {
		return nil
	}
	query := fmt.Sprintf("%s, %s, %s", parsed.Street, parsed.Locality, parsed.PostalCode)
	point, err := r.Geocoder.Geocode(ctx, query)
	if err != nil {
		r.warn("geocode failed", title, err)
		return nil
	}
	if point == nil {
		return nil
	}
	parsed.Geom = fmt.Sprintf("%s;%s", point.Lon.String(), point.Lat.String())
	if r.Logger != nil {
		r.Logger.Info("geocoded event location",
			zap.String("title", title),
			zap.String("street", parsed.Street),
			zap.String("locality", parsed.Locality),
		)
	}
	return parsed
}

func splitTokens(rawText string) []string {
	parts := strings.Split(rawText, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		tokens = append(tokens, strings.TrimSpace(p))
	}
	return tokens
}

func (r *Resolver) debug(msg, title string) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Debug(msg, zap.String("title", title))
}

func (r *Resolver) warn(msg, title string, err error) {
	if r == nil || r.Logger == nil {
		return
	}
	r.Logger.Warn(msg, zap.String("title", title), zap.Error(err))
}
