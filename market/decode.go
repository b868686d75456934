package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// DecodeQuote turns an untyped JSON quote snapshot into a validated Quote.
//
// Accepted fields: symbol, price, open, high, low, prev_close, volume,
// market_state and time. Numeric fields may be JSON numbers or numeric
// strings. price, symbol and time are required; time is RFC3339 or unix
// seconds. A missing market_state is read as REGULAR.
func DecodeQuote(raw []byte) (Quote, error) {
	if !gjson.ValidBytes(raw) {
		return Quote{}, fmt.Errorf("decode quote: invalid json")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return Quote{}, fmt.Errorf("decode quote: expected a json object")
	}

	q := Quote{Symbol: NormalizeSymbol(doc.Get("symbol").String())}

	var err error
	if q.Price, err = decimalField(doc, "price", true); err != nil {
		return Quote{}, err
	}
	if q.Open, err = decimalField(doc, "open", false); err != nil {
		return Quote{}, err
	}
	if q.High, err = decimalField(doc, "high", false); err != nil {
		return Quote{}, err
	}
	if q.Low, err = decimalField(doc, "low", false); err != nil {
		return Quote{}, err
	}
	if q.PrevClose, err = decimalField(doc, "prev_close", false); err != nil {
		return Quote{}, err
	}

	vol, err := decimalField(doc, "volume", false)
	if err != nil {
		return Quote{}, err
	}
	if !vol.IsInteger() {
		return Quote{}, fmt.Errorf("decode quote: volume must be an integer, got %s", vol)
	}
	q.Volume = vol.IntPart()

	q.State = StateRegular
	if st := doc.Get("market_state"); st.Exists() && st.Type != gjson.Null {
		if q.State, err = ParseMarketState(st.String()); err != nil {
			return Quote{}, fmt.Errorf("decode quote: %w", err)
		}
	}

	if q.Time, err = timeField(doc, "time"); err != nil {
		return Quote{}, err
	}

	if err := q.Validate(); err != nil {
		return Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	return q, nil
}

func decimalField(doc gjson.Result, key string, required bool) (decimal.Decimal, error) {
	v := doc.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		if required {
			return decimal.Zero, fmt.Errorf("decode quote: %s is required", key)
		}
		return decimal.Zero, nil
	}

	var s string
	switch v.Type {
	case gjson.Number:
		s = v.Raw
	case gjson.String:
		s = strings.TrimSpace(v.Str)
	default:
		return decimal.Zero, fmt.Errorf("decode quote: %s is not numeric (%s)", key, v.Raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode quote: %s is not numeric (%q)", key, s)
	}
	return d, nil
}

func timeField(doc gjson.Result, key string) (time.Time, error) {
	v := doc.Get(key)
	switch v.Type {
	case gjson.Number:
		return time.Unix(v.Int(), 0).UTC(), nil
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(v.Str))
		if err != nil {
			return time.Time{}, fmt.Errorf("decode quote: bad %s %q: %w", key, v.Str, err)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("decode quote: %s is required", key)
	}
}
