// Package memory is an in-process Store. Writes are buffered per unit of
// work and applied on Commit, with the same version check as the sqlite
// store. Failures can be injected for tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/portfolio"
	"github.com/adarshjiiidev/Kagazi/store"
)

// ErrInjected is returned by injected failures that were given no error.
var ErrInjected = errors.New("injected storage failure")

type Store struct {
	mu         sync.Mutex
	trades     map[string]broker.Trade
	portfolios map[string]*portfolio.Portfolio

	failBegin  int
	failCommit int
	failErr    error
	commits    int
	rollbacks  int
	closed     bool
}

func New() *Store {
	return &Store{
		trades:     make(map[string]broker.Trade),
		portfolios: make(map[string]*portfolio.Portfolio),
	}
}

// FailNextCommits makes the next n commits fail with err (ErrInjected if nil)
// without applying anything.
func (s *Store) FailNextCommits(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCommit = n
	s.failErr = err
}

// FailNextBegins makes the next n Begin calls fail.
func (s *Store) FailNextBegins(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBegin = n
	s.failErr = err
}

// Commits and Rollbacks count finished units of work.
func (s *Store) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Store) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

func (s *Store) injected() error {
	if s.failErr != nil {
		return s.failErr
	}
	return ErrInjected
}

func (s *Store) Begin(ctx context.Context) (store.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("memory store is closed")
	}
	if s.failBegin > 0 {
		s.failBegin--
		return nil, s.injected()
	}
	return &unit{
		s:          s,
		trades:     make(map[string]broker.Trade),
		portfolios: make(map[string]pendingPortfolio),
	}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type pendingPortfolio struct {
	base int64 // version the write was based on
	p    *portfolio.Portfolio
}

type unit struct {
	s          *Store
	trades     map[string]broker.Trade
	portfolios map[string]pendingPortfolio
	done       bool
}

func (u *unit) Trades() store.TradeRepository { return tradeRepo{u} }
func (u *unit) Portfolios() store.PortfolioRepository { return portfolioRepo{u} }

func (u *unit) Commit() error {
	if u.done {
		return errors.New("unit of work already finished")
	}
	u.done = true

	s := u.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failCommit > 0 {
		s.failCommit--
		s.rollbacks++
		return s.injected()
	}
	for id, pp := range u.portfolios {
		var cur int64
		if stored, ok := s.portfolios[id]; ok {
			cur = stored.Version
		}
		if cur != pp.base {
			s.rollbacks++
			return fmt.Errorf("commit portfolio %s: %w", id, store.ErrConflict)
		}
	}
	for id, pp := range u.portfolios {
		s.portfolios[id] = pp.p
	}
	for id, t := range u.trades {
		s.trades[id] = t
	}
	s.commits++
	return nil
}

func (u *unit) Rollback() error {
	if u.done {
		return nil
	}
	u.done = true
	u.s.mu.Lock()
	u.s.rollbacks++
	u.s.mu.Unlock()
	return nil
}

type tradeRepo struct{ u *unit }

func (r tradeRepo) Save(ctx context.Context, t *broker.Trade) error {
	if t == nil {
		return errors.New("trade cannot be nil")
	}
	if t.ID == "" {
		return errors.New("trade id is required")
	}
	r.u.trades[t.ID] = *t
	return nil
}

func (r tradeRepo) FindByID(ctx context.Context, id string) (*broker.Trade, error) {
	if t, ok := r.u.trades[id]; ok {
		return &t, nil
	}
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	t, ok := r.u.s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, store.ErrNotFound)
	}
	return &t, nil
}

// visible merges committed trades with this unit's own writes.
func (r tradeRepo) visible(keep func(broker.Trade) bool) []broker.Trade {
	r.u.s.mu.Lock()
	merged := make(map[string]broker.Trade, len(r.u.s.trades)+len(r.u.trades))
	for id, t := range r.u.s.trades {
		merged[id] = t
	}
	r.u.s.mu.Unlock()
	for id, t := range r.u.trades {
		merged[id] = t
	}

	out := make([]broker.Trade, 0)
	for _, t := range merged {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r tradeRepo) ListByAccount(ctx context.Context, accountID string, limit int) ([]broker.Trade, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	out := r.visible(func(t broker.Trade) bool { return t.AccountID == accountID })
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r tradeRepo) ListPending(ctx context.Context, symbol string) ([]broker.Trade, error) {
	out := r.visible(func(t broker.Trade) bool {
		return t.Status == broker.StatusPending && (symbol == "" || t.Symbol == symbol)
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type portfolioRepo struct{ u *unit }

func (r portfolioRepo) Find(ctx context.Context, accountID string) (*portfolio.Portfolio, error) {
	if pp, ok := r.u.portfolios[accountID]; ok {
		return pp.p.Clone(), nil
	}
	r.u.s.mu.Lock()
	defer r.u.s.mu.Unlock()
	p, ok := r.u.s.portfolios[accountID]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", accountID, store.ErrNotFound)
	}
	return p.Clone(), nil
}

func (r portfolioRepo) Save(ctx context.Context, p *portfolio.Portfolio) error {
	if p == nil {
		return errors.New("portfolio cannot be nil")
	}
	base := p.Version
	if pp, ok := r.u.portfolios[p.AccountID]; ok {
		if pp.p.Version != p.Version {
			return fmt.Errorf("update portfolio %s at version %d: %w", p.AccountID, p.Version, store.ErrConflict)
		}
		base = pp.base
	} else {
		r.u.s.mu.Lock()
		var cur int64
		if stored, ok := r.u.s.portfolios[p.AccountID]; ok {
			cur = stored.Version
		}
		r.u.s.mu.Unlock()
		if cur != p.Version {
			return fmt.Errorf("update portfolio %s at version %d: %w", p.AccountID, p.Version, store.ErrConflict)
		}
	}

	p.Version++
	r.u.portfolios[p.AccountID] = pendingPortfolio{base: base, p: p.Clone()}
	return nil
}

func (r portfolioRepo) Holders(ctx context.Context, symbol string) ([]string, error) {
	merged := make(map[string]*portfolio.Portfolio)
	r.u.s.mu.Lock()
	for id, p := range r.u.s.portfolios {
		merged[id] = p
	}
	r.u.s.mu.Unlock()
	for id, pp := range r.u.portfolios {
		merged[id] = pp.p
	}

	out := make([]string, 0)
	for id, p := range merged {
		if h, ok := p.Holdings[symbol]; ok && h.Quantity > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
