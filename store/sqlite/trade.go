package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/store"
	"github.com/adarshjiiidev/Kagazi/store/model"
)

type tradeRepository struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) *tradeRepository {
	return &tradeRepository{db: db}
}

func (r *tradeRepository) Save(ctx context.Context, t *broker.Trade) error {
	if t == nil {
		return errors.New("trade cannot be nil")
	}
	if t.ID == "" {
		return errors.New("trade id is required")
	}
	m := model.FromTrade(t)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (r *tradeRepository) FindByID(ctx context.Context, id string) (*broker.Trade, error) {
	var m model.TradeModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("trade %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	t := m.ToTrade()
	return &t, nil
}

func (r *tradeRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]broker.Trade, error) {
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	var rows []model.TradeModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTrades(rows), nil
}

func (r *tradeRepository) ListPending(ctx context.Context, symbol string) ([]broker.Trade, error) {
	q := r.db.WithContext(ctx).Where("status = ?", string(broker.StatusPending))
	if symbol != "" {
		q = q.Where("symbol = ?", symbol)
	}
	var rows []model.TradeModel
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toTrades(rows), nil
}

func toTrades(rows []model.TradeModel) []broker.Trade {
	out := make([]broker.Trade, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.ToTrade())
	}
	return out
}
