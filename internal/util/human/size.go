package human

import (
	"strconv"
	"strings"
)

var sizePrefixes = []string{"K", "M", "G", "T", "P", "E"}

// Size formats a byte count with decimal prefixes, keeping at most prec significant digits.
// Trailing zeros in the fraction are dropped, so 1500 becomes "1.5KB".
func Size(n int64, prec int) string {
	if n < 0 {
		return "-" + Size(-n, prec)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10) + "B"
	}
	mul, whole := int64(1), n
	for _, prefix := range sizePrefixes {
		mul *= 1000
		whole /= 1000
		if whole >= 1000 {
			continue
		}
		var b strings.Builder
		_, _ = b.WriteString(strconv.FormatInt(whole, 10))
		digits, fracMul := 0, mul
		for digits < prec-b.Len() && fracMul > 1 {
			digits++
			fracMul /= 10
		}
		frac := (n - whole*mul) / fracMul
		for digits > 0 && frac%10 == 0 {
			digits--
			frac /= 10
		}
		if digits != 0 {
			s := strconv.FormatInt(frac, 10)
			_ = b.WriteByte('.')
			_, _ = b.WriteString(strings.Repeat("0", digits-len(s)))
			_, _ = b.WriteString(s)
		}
		_, _ = b.WriteString(prefix + "B")
		return b.String()
	}
	panic("must not happen")
}
