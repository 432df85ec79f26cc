package search

import (
	"context"
	"strconv"

	"github.com/kailas-cloud/cardex/internal/domain/search/query"
	"github.com/kailas-cloud/cardex/internal/domain/search/result"
)

// CardService adds card filter presets.
type CardService struct{ *EntityService }

// BySet searches cards of sets whose name contains setName.
func (s CardService) BySet(ctx context.Context, setName string, q query.Query) (result.Envelope, error) {
	return s.Search(ctx, q.WithFilter("setName", setName))
}

// ByNumber searches cards by their printed number.
func (s CardService) ByNumber(ctx context.Context, number string, q query.Query) (result.Envelope, error) {
	return s.Search(ctx, q.WithFilter("cardNumber", number))
}

// ProductService adds product filter presets.
type ProductService struct{ *EntityService }

// ByCategory searches products of one category.
func (s ProductService) ByCategory(ctx context.Context, category string, q query.Query) (result.Envelope, error) {
	return s.Search(ctx, q.WithFilter("category", category))
}

// Available searches products currently offered.
func (s ProductService) Available(ctx context.Context, q query.Query) (result.Envelope, error) {
	return s.Search(ctx, q.WithFilter("available", "true"))
}

// PriceRange searches products priced within [lo, hi].
func (s ProductService) PriceRange(ctx context.Context, lo, hi float64, q query.Query) (result.Envelope, error) {
	q = q.WithFilter("minPrice", strconv.FormatFloat(lo, 'f', -1, 64))
	return s.Search(ctx, q.WithFilter("maxPrice", strconv.FormatFloat(hi, 'f', -1, 64)))
}

// SetService adds set filter presets.
type SetService struct{ *EntityService }

// ByYear searches sets released in year.
func (s SetService) ByYear(ctx context.Context, year int, q query.Query) (result.Envelope, error) {
	return s.Search(ctx, q.WithFilter("year", strconv.Itoa(year)))
}

// ByYearRange searches sets released between from and to inclusive.
func (s SetService) ByYearRange(ctx context.Context, from, to int, q query.Query) (result.Envelope, error) {
	q = q.WithFilter("minYear", strconv.Itoa(from))
	return s.Search(ctx, q.WithFilter("maxYear", strconv.Itoa(to)))
}
