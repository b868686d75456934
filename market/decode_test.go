package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeQuote(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"symbol":"tcs","price":"3890.55","open":3850,"high":3901.2,"low":3844,
		"prev_close":"3860","volume":125000,"market_state":"regular","time":"2024-03-04T09:30:05Z"}`)

	q, err := DecodeQuote(raw)
	require.NoError(t, err)

	assert.Equal(t, "TCS", q.Symbol)
	assert.Equal(t, "3890.55", q.Price.String())
	assert.Equal(t, "3901.2", q.High.String())
	assert.Equal(t, "3860", q.PrevClose.String())
	assert.Equal(t, int64(125000), q.Volume)
	assert.Equal(t, StateRegular, q.State)
	assert.True(t, q.Time.Equal(time.Date(2024, 3, 4, 9, 30, 5, 0, time.UTC)))
}

func TestDecodeQuoteDefaultsAndUnixTime(t *testing.T) {
	t.Parallel()

	q, err := DecodeQuote([]byte(`{"symbol":"X","price":100,"time":1709544600}`))
	require.NoError(t, err)
	assert.Equal(t, StateRegular, q.State)
	assert.True(t, q.High.IsZero())
	assert.Equal(t, int64(0), q.Volume)
	assert.Equal(t, int64(1709544600), q.Time.Unix())
}

func TestDecodeQuoteRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		errMsg string
	}{
		{"not json", `{"symbol":`, "invalid json"},
		{"array", `[1,2]`, "expected a json object"},
		{"missing price", `{"symbol":"X","time":1}`, "price is required"},
		{"non numeric price", `{"symbol":"X","price":"abc","time":1}`, "price is not numeric"},
		{"bool volume", `{"symbol":"X","price":1,"volume":true,"time":1}`, "volume is not numeric"},
		{"fractional volume", `{"symbol":"X","price":1,"volume":1.5,"time":1}`, "volume must be an integer"},
		{"bad state", `{"symbol":"X","price":1,"market_state":"LUNCH","time":1}`, "unknown market state"},
		{"missing time", `{"symbol":"X","price":1}`, "time is required"},
		{"bad time", `{"symbol":"X","price":1,"time":"yesterday"}`, "bad time"},
		{"missing symbol", `{"price":1,"time":1}`, "symbol is required"},
		{"negative price", `{"symbol":"X","price":-4,"time":1}`, "price must be positive"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeQuote([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
