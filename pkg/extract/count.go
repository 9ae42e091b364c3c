package extract

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// multipliers maps lowercased count suffixes to their scale
var multipliers = map[string]float64{
	"k":        1e3,
	"m":        1e6,
	"b":        1e9,
	"mil":      1e3,
	"tsd":      1e3,
	"mio":      1e6,
	"mln":      1e6,
	"mrd":      1e9,
	"thousand": 1e3,
	"million":  1e6,
	"billion":  1e9,
	"万":        1e4,
	"萬":        1e4,
	"亿":        1e8,
	"億":        1e8,
}

// ParseCount reads a compact human count such as "1,234", "1.2K",
// "1,5 Mio" or "3.4万" followed by optional words ("12.5k followers").
// A single separator followed by exactly three digits is grouping unless a
// suffix follows; otherwise it is the decimal mark.
func ParseCount(s string) (int64, bool) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u00a0', '\u202f', '\u2009':
			return ' '
		}
		return r
	}, s)

	runes := []rune(s)
	start := -1
	for i, r := range runes {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}

	// the numeric run: digits and separators, spaces only between digits
	end := start
scan:
	for end < len(runes) {
		r := runes[end]
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '\'':
			end++
		case r == ' ' && groupFollows(runes, end+1):
			end++
		default:
			break scan
		}
	}
	number := strings.TrimRight(string(runes[start:end]), ".,'")
	mult := suffixMultiplier(string(runes[end:]))

	value, ok := parseNumber(number, mult > 1)
	if !ok {
		return 0, false
	}
	// counts past int64 are markup noise, not real totals
	n := math.Round(value * mult)
	if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n >= math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

// groupFollows is true when runes[i:] starts with exactly three digits
func groupFollows(runes []rune, i int) bool {
	n := 0
	for i+n < len(runes) && runes[i+n] >= '0' && runes[i+n] <= '9' {
		n++
	}
	return n == 3
}

func suffixMultiplier(rest string) float64 {
	rest = strings.TrimLeft(rest, " ")
	var word []rune
	for _, r := range rest {
		if !unicode.IsLetter(r) {
			break
		}
		word = append(word, unicode.ToLower(r))
		// CJK scale characters stand alone
		if unicode.Is(unicode.Han, r) {
			break
		}
	}
	if m, ok := multipliers[string(word)]; ok {
		return m
	}
	return 1
}

// parseNumber resolves grouping versus decimal separators. scaled means a
// suffix follows, which makes a lone separator a decimal mark.
func parseNumber(num string, scaled bool) (float64, bool) {
	num = strings.NewReplacer(" ", "", "'", "").Replace(num)
	if num == "" {
		return 0, false
	}

	dots := strings.Count(num, ".")
	commas := strings.Count(num, ",")
	decimal := ""

	switch {
	case dots > 0 && commas > 0:
		if strings.LastIndex(num, ".") > strings.LastIndex(num, ",") {
			decimal = "."
		} else {
			decimal = ","
		}
	case dots == 1 || commas == 1:
		sep := "."
		if commas == 1 {
			sep = ","
		}
		idx := strings.LastIndex(num, sep)
		if scaled || len(num)-idx-1 != 3 {
			decimal = sep
		}
	}

	var intPart, fracPart string
	if decimal != "" {
		i := strings.LastIndex(num, decimal)
		intPart, fracPart = num[:i], num[i+1:]
	} else {
		intPart = num
	}
	intPart = strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if intPart == "" {
		intPart = "0"
	}

	text := intPart
	if fracPart != "" {
		text += "." + fracPart
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
