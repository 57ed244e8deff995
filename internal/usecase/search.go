package usecase

import (
	"context"
	"strings"

	"PriceCast/internal/domain/errs"
	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
)

const defaultSearchLimit = 10

type SearchUseCase struct {
	searcher domrepo.SymbolSearcher
}

// NewSearchUseCase creates a new SearchUseCase instance.
func NewSearchUseCase(searcher domrepo.SymbolSearcher) *SearchUseCase {
	return &SearchUseCase{searcher: searcher}
}

// Search looks up tickers by name or symbol. No matches yields an empty slice.
func (uc *SearchUseCase) Search(ctx context.Context, query string, limit int) ([]models.SymbolMatch, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errs.InvalidInput("search query is required")
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	matches, err := uc.searcher.Search(ctx, query, limit)
	if err != nil {
		return nil, errs.DataUnavailable(err, "search %q", query)
	}
	if matches == nil {
		matches = []models.SymbolMatch{}
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
