package reporting

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// numbers groups thousands with commas and uses '.' as decimal separator.
var numbers = message.NewPrinter(language.English)

// FormatUSD renders v as "$1,234.560000" with the given decimals.
func FormatUSD(v float64, decimals int) string {
	s := numbers.Sprintf("%."+strconv.Itoa(decimals)+"f", v)
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}

// FormatPercent renders v as "1,234.56%". A nil gain renders empty.
func FormatPercent(v *float64) string {
	if v == nil {
		return ""
	}
	return numbers.Sprintf("%.2f", *v) + "%"
}
