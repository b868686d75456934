package portfolio

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/adarshjiiidev/Kagazi/portfolio"
)

func TestPrint(t *testing.T) {
	d := decimal.RequireFromString
	p := portfolio.New("acc", d("998999.46"), time.Now())
	p.Holdings["X"] = &portfolio.Holding{
		Symbol:        "X",
		Quantity:      10,
		AvgPrice:      d("100.054"),
		CurrentPrice:  d("110"),
		InvestedValue: d("1000.54"),
		CurrentValue:  d("1100"),
		PnL:           d("99.46"),
		PnLPct:        d("9.94"),
		DayChangePct:  d("1.5"),
	}
	p.Recompute()

	var buf bytes.Buffer
	Print(&buf, p, "USD")
	out := buf.String()

	assert.Contains(t, out, "cash       $998,999.46")
	assert.Contains(t, out, "net worth  $1,000,099.46")
	assert.Contains(t, out, "+$99.46")
	assert.Contains(t, out, "100.05")
	assert.Contains(t, out, "+9.94%")

	buf.Reset()
	Print(&buf, portfolio.New("empty", d("5"), time.Now()), "USD")
	assert.Contains(t, buf.String(), "no holdings")
}
