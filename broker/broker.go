package broker

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func ParseSide(s string) (Side, error) {
	switch side := Side(strings.ToUpper(strings.TrimSpace(s))); side {
	case Buy, Sell:
		return side, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

type OrderKind string

const (
	Market    OrderKind = "MARKET"
	Limit     OrderKind = "LIMIT"
	Stop      OrderKind = "STOP"
	StopLimit OrderKind = "STOP_LIMIT"
)

func ParseOrderKind(s string) (OrderKind, error) {
	switch k := OrderKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case Market, Limit, Stop, StopLimit:
		return k, nil
	default:
		return "", fmt.Errorf("unknown order kind %q", s)
	}
}

// NeedsLimit reports whether the kind carries a limit price.
func (k OrderKind) NeedsLimit() bool { return k == Limit || k == StopLimit }

// NeedsStop reports whether the kind carries a stop price.
func (k OrderKind) NeedsStop() bool { return k == Stop || k == StopLimit }

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusExecuted  Status = "EXECUTED"
	StatusCancelled Status = "CANCELLED"
	StatusPartial   Status = "PARTIAL"
)

// CanTransition lists the only status moves a persisted trade may make.
// EXECUTED and CANCELLED are final.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusExecuted || to == StatusCancelled || to == StatusPartial
	case StatusPartial:
		return to == StatusExecuted || to == StatusCancelled
	default:
		return false
	}
}

// OrderRequest is a proposed order. A zero LimitPrice or StopPrice means unset.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Kind       OrderKind
	Quantity   int64
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// Charges is the itemized cost of one trade. Every component is already
// rounded to 2 dp and Total is their sum.
type Charges struct {
	Brokerage      decimal.Decimal
	TransactionTax decimal.Decimal
	ExchangeFee    decimal.Decimal
	ConsumptionTax decimal.Decimal
	StampDuty      decimal.Decimal
	RegulatorFee   decimal.Decimal
	Total          decimal.Decimal
}

// Trade is the persisted form of an order.
type Trade struct {
	ID        string
	AccountID string
	Symbol    string
	Side      Side
	Kind      OrderKind

	Quantity   int64
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
	// Price is the reference price the order was validated against.
	Price decimal.Decimal

	Status           Status
	ExecutedQuantity int64
	ExecutedPrice    decimal.Decimal
	TotalValue       decimal.Decimal
	Charges          Charges
	RealizedPnL      decimal.NullDecimal

	CreatedAt  time.Time
	ExecutedAt time.Time // zero until executed
	Note       string
}

// Request rebuilds the order that produced t.
func (t Trade) Request() OrderRequest {
	return OrderRequest{
		Symbol:     t.Symbol,
		Side:       t.Side,
		Kind:       t.Kind,
		Quantity:   t.Quantity,
		LimitPrice: t.LimitPrice,
		StopPrice:  t.StopPrice,
	}
}
