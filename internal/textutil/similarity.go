package textutil

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultTitleThreshold is the token-set ratio at or above which two titles
// are treated as the same work.
const DefaultTitleThreshold = 75

var folder = cases.Fold()

// Normalize folds case, strips combining marks, and replaces every rune that
// is not a letter or digit with a single space.
func Normalize(value string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), value)
	if err != nil {
		stripped = value
	}
	folded := folder.String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// TokenSet returns the sorted, de-duplicated tokens of a normalized value.
func TokenSet(value string) []string {
	fields := strings.Fields(Normalize(value))
	if len(fields) == 0 {
		return nil
	}
	sort.Strings(fields)
	out := fields[:1]
	for _, f := range fields[1:] {
		if f != out[len(out)-1] {
			out = append(out, f)
		}
	}
	return out
}

// Ratio returns the indel similarity of two strings scaled to 0..100:
// 2*LCS / (len(a)+len(b)). Either string empty scores 0.
func Ratio(a, b string) int {
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	lcs := edlib.LCS(a, b)
	return int(math.Round(100 * float64(2*lcs) / float64(la+lb)))
}

// TokenSetRatio scores two titles 0..100 ignoring token order, duplicates and
// subset relations. The result is symmetric in its arguments.
func TokenSetRatio(a, b string) int {
	ta, tb := TokenSet(a), TokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inA := make(map[string]struct{}, len(ta))
	for _, tok := range ta {
		inA[tok] = struct{}{}
	}
	inB := make(map[string]struct{}, len(tb))
	for _, tok := range tb {
		inB[tok] = struct{}{}
	}

	var shared, onlyA, onlyB []string
	for _, tok := range ta {
		if _, ok := inB[tok]; ok {
			shared = append(shared, tok)
		} else {
			onlyA = append(onlyA, tok)
		}
	}
	for _, tok := range tb {
		if _, ok := inA[tok]; !ok {
			onlyB = append(onlyB, tok)
		}
	}

	sect := strings.Join(shared, " ")
	combinedA := strings.TrimSpace(sect + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(sect + " " + strings.Join(onlyB, " "))

	return max(Ratio(sect, combinedA), Ratio(sect, combinedB), Ratio(combinedA, combinedB))
}

// TitlesEquivalent reports whether two optional titles name the same work.
// Equal values, including both absent, match without scoring.
func TitlesEquivalent(a, b *string, threshold int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if *a == *b {
		return true
	}
	return TokenSetRatio(*a, *b) >= threshold
}
