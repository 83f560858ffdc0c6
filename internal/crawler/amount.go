package crawler

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/nao1215/creatorcrawl/internal/model"
)

// amountPattern matches "<number>[ ]<tys.|mln>[ ]<zł>". The integer part
// may be grouped in thousands with single spaces ("1 234").
var amountPattern = regexp.MustCompile(`^(\d{1,3}(?: \d{3})+|\d+)([.,]\d+)?\s*(tys\.|mln)?\s*(zł)?$`)

// Magnitude suffixes used by the listing.
const (
	suffixThousand = "tys."
	suffixMillion  = "mln"
)

// ParseAmount converts a locale-formatted figure such as "150", "2 tys. zł",
// "1 234 zł" or "1,5 mln" into a number. Text that does not have that shape yields
// model.Unknown (-1). It never panics.
func ParseAmount(text string) float64 {
	text = strings.Map(func(r rune) rune {
		if r == '\u00a0' || r == '\u202f' {
			return ' '
		}
		return r
	}, text)
	text = strings.TrimFunc(text, unicode.IsSpace)

	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return model.Unknown
	}

	number := strings.ReplaceAll(m[1], " ", "") + strings.Replace(m[2], ",", ".", 1)
	v, err := strconv.ParseFloat(number, 64)
	if err != nil {
		return model.Unknown
	}

	switch m[3] {
	case suffixThousand:
		v *= 1_000
	case suffixMillion:
		v *= 1_000_000
	}
	return v
}
