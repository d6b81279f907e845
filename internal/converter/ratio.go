package converter

import (
	"fmt"
	"math/big"
)

// Ratio formats the size saving of converted relative to original as a
// percentage with two decimals, e.g. "37.50%". The value is computed in
// float64 and rounded half up on its exact binary value, so it matches the
// strings produced by browser clients for the same sizes. A zero original
// yields "0.00%".
func Ratio(original, converted int64) string {
	if original <= 0 {
		return "0.00%"
	}

	return fixed2((1-float64(converted)/float64(original))*100) + "%"
}

// fixed2 prints x with exactly two decimals. Ties round away from zero and
// small negative values keep their sign ("-0.00").
func fixed2(x float64) string {
	if x < 0 {
		return "-" + fixed2(-x)
	}

	v := new(big.Float).SetPrec(256).SetFloat64(x)
	v.Mul(v, big.NewFloat(100))
	v.Add(v, big.NewFloat(0.5))

	n, _ := v.Int(nil)
	cents := new(big.Int)
	units, _ := new(big.Int).QuoRem(n, big.NewInt(100), cents)

	return fmt.Sprintf("%s.%02d", units.String(), cents.Int64())
}
