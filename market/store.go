package market

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// QuoteStore keeps the latest quote per symbol and serves it as a QuoteSource.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

// Set records q unless a newer quote for the same symbol is already held.
func (s *QuoteStore) Set(q Quote) {
	sym := NormalizeSymbol(q.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.quotes[sym]; ok && cur.Time.After(q.Time) {
		return
	}
	q.Symbol = sym
	s.quotes[sym] = q
}

func (s *QuoteStore) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[NormalizeSymbol(symbol)]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
	}
	return q, nil
}

func (s *QuoteStore) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.quotes))
	for sym := range s.quotes {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// FirstOf asks each source in turn and returns the first quote found. Only
// ErrQuoteNotFound moves on to the next source; other errors are returned.
func FirstOf(sources ...QuoteSource) QuoteSource {
	return chain(sources)
}

type chain []QuoteSource

func (c chain) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	for _, src := range c {
		q, err := src.GetQuote(ctx, symbol)
		if err == nil {
			return q, nil
		}
		if !errors.Is(err, ErrQuoteNotFound) {
			return Quote{}, err
		}
	}
	return Quote{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, symbol)
}
