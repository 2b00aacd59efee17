package reconciliation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary payload field that may arrive as a JSON number, a
// numeric string, or null. Valid is false when the field was absent or unparseable.
type Amount struct {
	Value decimal.Decimal
	Valid bool
}

// NewAmount returns a present amount
func NewAmount(v decimal.Decimal) Amount {
	return Amount{Value: v, Valid: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		// Malformed values degrade to absent rather than failing the whole payload
		*a = Amount{}
		return nil
	}

	v, ok := ParseAmount(raw)
	*a = Amount{Value: v, Valid: ok}
	return nil
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("null"), nil
	}
	return []byte(a.Value.String()), nil
}

// OrZero returns the value, or zero when absent
func (a Amount) OrZero() decimal.Decimal {
	if !a.Valid {
		return decimal.Zero
	}
	return a.Value
}

// Ptr returns a pointer to the value, or nil when absent
func (a Amount) Ptr() *decimal.Decimal {
	if !a.Valid {
		return nil
	}
	v := a.Value
	return &v
}

// ParseAmount coerces a decoded payload value into a decimal.
// Supported inputs: float64, float32, int, int64, json.Number, decimal.Decimal and
// strings such as "1234.56", "1.234,56", "R$ 12,90". Returns false for nil or
// anything that cannot be read as a number.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case int32:
		return decimal.NewFromInt32(n), true
	case json.Number:
		return parseNumericString(n.String())
	case string:
		return parseNumericString(n)
	default:
		return decimal.Zero, false
	}
}

// parseNumericString parses plain and locale formatted numeric strings.
// When both '.' and ',' are present the right-most one is the decimal separator.
func parseNumericString(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Round2 rounds to two decimal places, half away from zero.
// decimal has no negative zero, so -0.001 rounds to a plain 0.
func Round2(d decimal.Decimal) decimal.Decimal {
	r := d.Round(2)
	if r.IsZero() {
		return decimal.Zero
	}
	return r
}

// ---------------------------------------------------------------------------
// Logistics types
// ---------------------------------------------------------------------------

// LogisticsType classifies how an order is fulfilled and shipped
type LogisticsType string

const (
	LogisticsSelfService  LogisticsType = "self_service"
	LogisticsDropOff      LogisticsType = "drop_off"
	LogisticsXDDropOff    LogisticsType = "xd_drop_off"
	LogisticsFulfillment  LogisticsType = "fulfillment"
	LogisticsCrossDocking LogisticsType = "cross_docking"
	LogisticsUnknown      LogisticsType = ""
)

var logisticsAliases = map[string]LogisticsType{
	"flex":        LogisticsSelfService,
	"agency":      LogisticsXDDropOff,
	"collection":  LogisticsCrossDocking,
	"full":        LogisticsFulfillment,
	"fbm":         LogisticsFulfillment,
	"dropoff":     LogisticsDropOff,
	"selfservice": LogisticsSelfService,
}

// NormalizeLogisticsType lowercases and canonicalizes a marketplace logistics type
func NormalizeLogisticsType(s string) LogisticsType {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	if alias, ok := logisticsAliases[s]; ok {
		return alias
	}
	return LogisticsType(s)
}

// IsFreightEligible reports whether the type belongs to the seller-shipped
// family whose freight is charged back against list cost.
func (t LogisticsType) IsFreightEligible() bool {
	switch t {
	case LogisticsDropOff, LogisticsXDDropOff, LogisticsFulfillment, LogisticsCrossDocking:
		return true
	default:
		return false
	}
}

// String returns the string representation
func (t LogisticsType) String() string {
	return string(t)
}
