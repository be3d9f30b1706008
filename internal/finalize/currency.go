package finalize

import (
	"regexp"
	"strings"
)

// moneyPattern matches a dollar amount of at least four ungrouped digits. Amounts already
// grouped with commas never match, which keeps normalisation idempotent.
var moneyPattern = regexp.MustCompile(`\$\s*(\d{4,})(?:\.(\d{1,2}))?`)

// NormalizeCurrency rewrites ungrouped dollar amounts as "$" + grouped thousands with two
// decimals: "$14308.3" becomes "$14,308.30". An amount that runs on into more digits or
// decimals ("$1234.567", "$1234.5.6") is left alone. Digits are regrouped as text, so
// amounts of any length keep their exact value.
func NormalizeCurrency(text string) string {
	matches := moneyPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		if runsOn(text, end) {
			continue
		}
		frac := ""
		if m[4] >= 0 {
			frac = text[m[4]:m[5]]
		}
		b.WriteString(text[last:start])
		b.WriteByte('$')
		writeGrouped(&b, text[m[2]:m[3]])
		b.WriteByte('.')
		b.WriteString((frac + "00")[:2])
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// writeGrouped writes an unsigned digit string with comma thousands separators.
func writeGrouped(b *strings.Builder, digits string) {
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		digits = "0"
	}
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(digits[i])
	}
}

// runsOn reports whether the number ending at i continues: a digit, or a decimal point
// followed by a digit. A sentence-ending period does not count.
func runsOn(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	if isDigit(text[i]) {
		return true
	}
	return text[i] == '.' && i+1 < len(text) && isDigit(text[i+1])
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
