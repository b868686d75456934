// Package store persists trades and portfolios. Every write goes through a
// UnitOfWork so a trade and the portfolio it changed commit together.
package store

import (
	"context"
	"errors"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means the portfolio changed since it was read.
	ErrConflict = errors.New("version conflict")
)

// UnitOfWork is one transaction. Nothing written through it is visible to
// other units until Commit succeeds.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Trades() TradeRepository
	Portfolios() PortfolioRepository
}

// Store is the entry point for ledger persistence.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Close() error
}

type TradeRepository interface {
	// Save inserts t or replaces the stored trade with the same ID.
	Save(ctx context.Context, t *broker.Trade) error
	FindByID(ctx context.Context, id string) (*broker.Trade, error)
	// ListByAccount returns the account's trades newest first. limit <= 0 means 100.
	ListByAccount(ctx context.Context, accountID string, limit int) ([]broker.Trade, error)
	// ListPending returns PENDING trades for symbol, oldest first. An empty
	// symbol lists every pending trade.
	ListPending(ctx context.Context, symbol string) ([]broker.Trade, error)
}

type PortfolioRepository interface {
	Find(ctx context.Context, accountID string) (*portfolio.Portfolio, error)
	// Save writes p if the stored version still equals p.Version, then bumps
	// p.Version. Version 0 means p is new. A moved version is ErrConflict.
	Save(ctx context.Context, p *portfolio.Portfolio) error
	// Holders lists the accounts holding symbol, sorted.
	Holders(ctx context.Context, symbol string) ([]string, error)
}

// DefaultListLimit bounds ListByAccount when the caller passes no limit.
const DefaultListLimit = 100
