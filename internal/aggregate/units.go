package aggregate

import (
	"encoding/json"
	"math/big"
	"strconv"
)

var centimetersPerMeter = big.NewRat(100, 1)

// metersToCentimeters scales a numeric diameter by 100. The product is taken
// on the decimal value, so 0.2 becomes exactly 20. Non-numeric values are
// returned unchanged.
func metersToCentimeters(v any) any {
	var text string
	switch n := v.(type) {
	case json.Number:
		text = n.String()
	case float64:
		text = strconv.FormatFloat(n, 'g', -1, 64)
	case float32:
		text = strconv.FormatFloat(float64(n), 'g', -1, 32)
	case int:
		text = strconv.Itoa(n)
	case int64:
		text = strconv.FormatInt(n, 10)
	default:
		return v
	}
	r, ok := new(big.Rat).SetString(text)
	if !ok {
		return v
	}
	f, _ := r.Mul(r, centimetersPerMeter).Float64()
	return f
}
