package sim

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/adarshjiiidev/Kagazi/broker"
)

// Slippage yields the fraction by which a market fill moves against the order.
type Slippage interface {
	Fraction() decimal.Decimal
}

type NoSlippage struct{}

func (NoSlippage) Fraction() decimal.Decimal { return decimal.Zero }

// RandomSlippage draws uniformly from [0, max). Safe for concurrent use.
type RandomSlippage struct {
	mu  sync.Mutex
	rng *rand.Rand
	max decimal.Decimal
}

func NewRandomSlippage(max decimal.Decimal, seed int64) *RandomSlippage {
	return &RandomSlippage{rng: rand.New(rand.NewSource(seed)), max: max}
}

func (s *RandomSlippage) Fraction() decimal.Decimal {
	s.mu.Lock()
	f := s.rng.Float64()
	s.mu.Unlock()
	return decimal.NewFromFloat(f).Mul(s.max).Truncate(8)
}

// Execution is what the engine decided for one order.
type Execution struct {
	Price    decimal.Decimal
	Quantity int64
	Status   broker.Status
}

type Executor struct {
	slip Slippage
}

func NewExecutor(s Slippage) *Executor {
	if s == nil {
		s = NoSlippage{}
	}
	return &Executor{slip: s}
}

// Execute fills MARKET orders at once with slippage against the side,
// rounded to 2 dp. Every other kind stays PENDING with nothing executed.
func (x *Executor) Execute(order broker.OrderRequest, current decimal.Decimal) Execution {
	if order.Kind != broker.Market {
		return Execution{Status: broker.StatusPending}
	}

	s := x.slip.Fraction()
	factor := decimal.NewFromInt(1).Add(s)
	if order.Side == broker.Sell {
		factor = decimal.NewFromInt(1).Sub(s)
	}
	return Execution{
		Price:    current.Mul(factor).Round(2),
		Quantity: order.Quantity,
		Status:   broker.StatusExecuted,
	}
}

// Fill executes a pending LIMIT order at its limit price. Callers check
// ShouldExecute first.
func (x *Executor) Fill(order broker.OrderRequest) Execution {
	return Execution{
		Price:    order.LimitPrice.Round(2),
		Quantity: order.Quantity,
		Status:   broker.StatusExecuted,
	}
}

// ShouldExecute reports whether a LIMIT order is marketable at current:
// BUY when current <= limit, SELL when current >= limit. Other kinds never
// are.
func ShouldExecute(order broker.OrderRequest, current decimal.Decimal) bool {
	if order.Kind != broker.Limit || !order.LimitPrice.IsPositive() || !current.IsPositive() {
		return false
	}
	switch order.Side {
	case broker.Buy:
		return current.LessThanOrEqual(order.LimitPrice)
	case broker.Sell:
		return current.GreaterThanOrEqual(order.LimitPrice)
	default:
		return false
	}
}
