package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/adarshjiiidev/Kagazi/portfolio"
	"github.com/adarshjiiidev/Kagazi/store"
	"github.com/adarshjiiidev/Kagazi/store/model"
)

type portfolioRepository struct {
	db *gorm.DB
}

func NewPortfolioRepo(db *gorm.DB) *portfolioRepository {
	return &portfolioRepository{db: db}
}

func (r *portfolioRepository) Find(ctx context.Context, accountID string) (*portfolio.Portfolio, error) {
	var row model.PortfolioModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("portfolio %s: %w", accountID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var holdings []model.HoldingModel
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("symbol ASC").
		Find(&holdings).Error; err != nil {
		return nil, err
	}
	return model.ToPortfolio(row, holdings), nil
}

func (r *portfolioRepository) Save(ctx context.Context, p *portfolio.Portfolio) error {
	if p == nil {
		return errors.New("portfolio cannot be nil")
	}
	next := p.Version + 1
	row, holdings := model.FromPortfolio(p, next)
	db := r.db.WithContext(ctx)

	if p.Version == 0 {
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("create portfolio %s: %w", p.AccountID, store.ErrConflict)
		}
	} else {
		res := db.Model(&model.PortfolioModel{}).
			Where("account_id = ? AND version = ?", p.AccountID, p.Version).
			Updates(map[string]interface{}{
				"cash":           row.Cash,
				"total_invested": row.TotalInvested,
				"current_value":  row.CurrentValue,
				"total_pnl":      row.TotalPnL,
				"total_pnl_pct":  row.TotalPnLPct,
				"day_pnl":        row.DayPnL,
				"day_pnl_pct":    row.DayPnLPct,
				"version":        next,
				"updated_at":     row.UpdatedAtMs,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("update portfolio %s at version %d: %w", p.AccountID, p.Version, store.ErrConflict)
		}
	}

	if err := db.Where("account_id = ?", p.AccountID).Delete(&model.HoldingModel{}).Error; err != nil {
		return err
	}
	if len(holdings) > 0 {
		if err := db.Create(&holdings).Error; err != nil {
			return err
		}
	}
	p.Version = next
	return nil
}

func (r *portfolioRepository) Holders(ctx context.Context, symbol string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.HoldingModel{}).
		Where("symbol = ? AND quantity > 0", symbol).
		Distinct().
		Order("account_id ASC").
		Pluck("account_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
