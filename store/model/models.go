package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
	"github.com/adarshjiiidev/Kagazi/portfolio"
)

// Money columns are TEXT so sqlite never coerces them to floating point.
// Times are unix milliseconds.

type TradeModel struct {
	ID          string `gorm:"column:id;primaryKey"`
	AccountID   string `gorm:"column:account_id;index:idx_trades_account_created,priority:1"`
	CreatedAtMs int64  `gorm:"column:created_at;index:idx_trades_account_created,priority:2"`
	Symbol      string `gorm:"column:symbol;index:idx_trades_symbol_status,priority:1"`
	Status      string `gorm:"column:status;index:idx_trades_symbol_status,priority:2"`
	Side        string `gorm:"column:side"`
	Kind        string `gorm:"column:kind"`

	Quantity   int64           `gorm:"column:quantity"`
	LimitPrice decimal.Decimal `gorm:"column:limit_price;type:text"`
	StopPrice  decimal.Decimal `gorm:"column:stop_price;type:text"`
	Price      decimal.Decimal `gorm:"column:price;type:text"`

	ExecutedQuantity int64               `gorm:"column:executed_quantity"`
	ExecutedPrice    decimal.Decimal     `gorm:"column:executed_price;type:text"`
	TotalValue       decimal.Decimal     `gorm:"column:total_value;type:text"`
	RealizedPnL      decimal.NullDecimal `gorm:"column:realized_pnl;type:text"`

	Brokerage      decimal.Decimal `gorm:"column:brokerage;type:text"`
	TransactionTax decimal.Decimal `gorm:"column:transaction_tax;type:text"`
	ExchangeFee    decimal.Decimal `gorm:"column:exchange_fee;type:text"`
	ConsumptionTax decimal.Decimal `gorm:"column:consumption_tax;type:text"`
	StampDuty      decimal.Decimal `gorm:"column:stamp_duty;type:text"`
	RegulatorFee   decimal.Decimal `gorm:"column:regulator_fee;type:text"`
	ChargesTotal   decimal.Decimal `gorm:"column:charges_total;type:text"`

	ExecutedAtMs int64  `gorm:"column:executed_at"`
	Note         string `gorm:"column:note"`
}

func (TradeModel) TableName() string { return "trades" }

type PortfolioModel struct {
	AccountID     string          `gorm:"column:account_id;primaryKey"`
	Cash          decimal.Decimal `gorm:"column:cash;type:text"`
	TotalInvested decimal.Decimal `gorm:"column:total_invested;type:text"`
	CurrentValue  decimal.Decimal `gorm:"column:current_value;type:text"`
	TotalPnL      decimal.Decimal `gorm:"column:total_pnl;type:text"`
	TotalPnLPct   decimal.Decimal `gorm:"column:total_pnl_pct;type:text"`
	DayPnL        decimal.Decimal `gorm:"column:day_pnl;type:text"`
	DayPnLPct     decimal.Decimal `gorm:"column:day_pnl_pct;type:text"`
	Version       int64           `gorm:"column:version"`
	UpdatedAtMs   int64           `gorm:"column:updated_at"`
}

func (PortfolioModel) TableName() string { return "portfolios" }

type HoldingModel struct {
	AccountID     string          `gorm:"column:account_id;primaryKey"`
	Symbol        string          `gorm:"column:symbol;primaryKey"`
	Quantity      int64           `gorm:"column:quantity"`
	AvgPrice      decimal.Decimal `gorm:"column:avg_price;type:text"`
	CurrentPrice  decimal.Decimal `gorm:"column:current_price;type:text"`
	InvestedValue decimal.Decimal `gorm:"column:invested_value;type:text"`
	CurrentValue  decimal.Decimal `gorm:"column:current_value;type:text"`
	PnL           decimal.Decimal `gorm:"column:pnl;type:text"`
	PnLPct        decimal.Decimal `gorm:"column:pnl_pct;type:text"`
	DayChange     decimal.Decimal `gorm:"column:day_change;type:text"`
	DayChangePct  decimal.Decimal `gorm:"column:day_change_pct;type:text"`
	UpdatedAtMs   int64           `gorm:"column:updated_at"`
}

func (HoldingModel) TableName() string { return "holdings" }

func toMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMs(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func FromTrade(t *broker.Trade) TradeModel {
	return TradeModel{
		ID:               t.ID,
		AccountID:        t.AccountID,
		CreatedAtMs:      toMs(t.CreatedAt),
		Symbol:           t.Symbol,
		Status:           string(t.Status),
		Side:             string(t.Side),
		Kind:             string(t.Kind),
		Quantity:         t.Quantity,
		LimitPrice:       t.LimitPrice,
		StopPrice:        t.StopPrice,
		Price:            t.Price,
		ExecutedQuantity: t.ExecutedQuantity,
		ExecutedPrice:    t.ExecutedPrice,
		TotalValue:       t.TotalValue,
		RealizedPnL:      t.RealizedPnL,
		Brokerage:        t.Charges.Brokerage,
		TransactionTax:   t.Charges.TransactionTax,
		ExchangeFee:      t.Charges.ExchangeFee,
		ConsumptionTax:   t.Charges.ConsumptionTax,
		StampDuty:        t.Charges.StampDuty,
		RegulatorFee:     t.Charges.RegulatorFee,
		ChargesTotal:     t.Charges.Total,
		ExecutedAtMs:     toMs(t.ExecutedAt),
		Note:             t.Note,
	}
}

func (m TradeModel) ToTrade() broker.Trade {
	return broker.Trade{
		ID:               m.ID,
		AccountID:        m.AccountID,
		Symbol:           m.Symbol,
		Side:             broker.Side(m.Side),
		Kind:             broker.OrderKind(m.Kind),
		Quantity:         m.Quantity,
		LimitPrice:       m.LimitPrice,
		StopPrice:        m.StopPrice,
		Price:            m.Price,
		Status:           broker.Status(m.Status),
		ExecutedQuantity: m.ExecutedQuantity,
		ExecutedPrice:    m.ExecutedPrice,
		TotalValue:       m.TotalValue,
		RealizedPnL:      m.RealizedPnL,
		Charges: broker.Charges{
			Brokerage:      m.Brokerage,
			TransactionTax: m.TransactionTax,
			ExchangeFee:    m.ExchangeFee,
			ConsumptionTax: m.ConsumptionTax,
			StampDuty:      m.StampDuty,
			RegulatorFee:   m.RegulatorFee,
			Total:          m.ChargesTotal,
		},
		CreatedAt:  fromMs(m.CreatedAtMs),
		ExecutedAt: fromMs(m.ExecutedAtMs),
		Note:       m.Note,
	}
}

// FromPortfolio splits p into its row and holding rows. The row carries
// version as given; callers decide what version to write.
func FromPortfolio(p *portfolio.Portfolio, version int64) (PortfolioModel, []HoldingModel) {
	row := PortfolioModel{
		AccountID:     p.AccountID,
		Cash:          p.Cash,
		TotalInvested: p.TotalInvested,
		CurrentValue:  p.CurrentValue,
		TotalPnL:      p.TotalPnL,
		TotalPnLPct:   p.TotalPnLPct,
		DayPnL:        p.DayPnL,
		DayPnLPct:     p.DayPnLPct,
		Version:       version,
		UpdatedAtMs:   toMs(p.UpdatedAt),
	}
	holdings := make([]HoldingModel, 0, len(p.Holdings))
	for _, sym := range p.Symbols() {
		h := p.Holdings[sym]
		holdings = append(holdings, HoldingModel{
			AccountID:     p.AccountID,
			Symbol:        sym,
			Quantity:      h.Quantity,
			AvgPrice:      h.AvgPrice,
			CurrentPrice:  h.CurrentPrice,
			InvestedValue: h.InvestedValue,
			CurrentValue:  h.CurrentValue,
			PnL:           h.PnL,
			PnLPct:        h.PnLPct,
			DayChange:     h.DayChange,
			DayChangePct:  h.DayChangePct,
			UpdatedAtMs:   toMs(h.UpdatedAt),
		})
	}
	return row, holdings
}

func ToPortfolio(row PortfolioModel, holdings []HoldingModel) *portfolio.Portfolio {
	p := &portfolio.Portfolio{
		AccountID:     row.AccountID,
		Cash:          row.Cash,
		TotalInvested: row.TotalInvested,
		CurrentValue:  row.CurrentValue,
		TotalPnL:      row.TotalPnL,
		TotalPnLPct:   row.TotalPnLPct,
		DayPnL:        row.DayPnL,
		DayPnLPct:     row.DayPnLPct,
		Holdings:      make(map[string]*portfolio.Holding, len(holdings)),
		Version:       row.Version,
		UpdatedAt:     fromMs(row.UpdatedAtMs),
	}
	for _, h := range holdings {
		p.Holdings[h.Symbol] = &portfolio.Holding{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity,
			AvgPrice:      h.AvgPrice,
			CurrentPrice:  h.CurrentPrice,
			InvestedValue: h.InvestedValue,
			CurrentValue:  h.CurrentValue,
			PnL:           h.PnL,
			PnLPct:        h.PnLPct,
			DayChange:     h.DayChange,
			DayChangePct:  h.DayChangePct,
			UpdatedAt:     fromMs(h.UpdatedAtMs),
		}
	}
	return p
}
