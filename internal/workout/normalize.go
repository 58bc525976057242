package workout

import (
	"math"
	"strconv"
	"strings"
	"unicode"
)

// WeightsDelimiter separates weight tokens in the canonical format. The
// comma is reserved as a decimal separator and translated to a point before
// parsing; the oldest persisted records used it as the delimiter instead
// (see parseLegacyWeights).
const WeightsDelimiter = ";"

// EntryInput carries the raw form field values as the renderer extracted
// them.
type EntryInput struct {
	Exercise string
	Sets     string
	Reps     string
	Weights  string
	Failure  bool
}

// NormalizedEntry is a validated, typed entry ready for persistence.
type NormalizedEntry struct {
	Exercise    string
	ExerciseKey string
	Sets        int
	Reps        int
	WeightsRaw  string
	Weights     []float64
	Failure     bool
}

// NormalizeEntryInput validates and cleans raw entry input. It is pure: no
// store call happens before it succeeds.
func NormalizeEntryInput(in EntryInput) (NormalizedEntry, error) {
	name := NormalizeExerciseName(in.Exercise)
	if name == "" {
		return NormalizedEntry{}, ErrEmptyExerciseName
	}

	sets, err := parsePositiveInt(in.Sets)
	if err != nil {
		return NormalizedEntry{}, ErrInvalidSets
	}
	reps, err := parsePositiveInt(in.Reps)
	if err != nil {
		return NormalizedEntry{}, ErrInvalidReps
	}

	raw := CleanWeights(in.Weights)
	weights := ParseWeights(raw)
	if len(weights) == 0 {
		return NormalizedEntry{}, ErrInvalidWeights
	}

	return NormalizedEntry{
		Exercise:    name,
		ExerciseKey: strings.ToLower(name),
		Sets:        sets,
		Reps:        reps,
		WeightsRaw:  raw,
		Weights:     weights,
		Failure:     in.Failure,
	}, nil
}

// NormalizeExerciseName trims, collapses internal whitespace runs to a single
// space, and capitalizes the first character. Idempotent.
func NormalizeExerciseName(s string) string {
	name := strings.Join(strings.Fields(s), " ")
	if name == "" {
		return ""
	}
	r := []rune(name)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// CleanWeights strips all whitespace and translates decimal commas to points.
// The result is the stored raw form, kept for display and editing fidelity.
func CleanWeights(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if r == ',' {
			b.WriteRune('.')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseWeights splits a cleaned weights string on the canonical delimiter and
// keeps the tokens that parse to positive finite numbers, in order.
func ParseWeights(s string) []float64 {
	return splitWeights(s, WeightsDelimiter)
}

// parseLegacyWeights parses weights as persisted by any historical schema:
// semicolon-delimited when a semicolon is present, otherwise the old
// comma-delimited form (whole-kilo weights only, so commas were never
// decimals there).
func parseLegacyWeights(s string) []float64 {
	if strings.Contains(s, WeightsDelimiter) {
		return splitWeights(CleanWeights(s), WeightsDelimiter)
	}
	var noSpace strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			noSpace.WriteRune(r)
		}
	}
	return splitWeights(noSpace.String(), ",")
}

func splitWeights(s, delim string) []float64 {
	var out []float64
	for _, tok := range strings.Split(s, delim) {
		if tok == "" {
			continue
		}
		w, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsInf(w, 0) || math.IsNaN(w) || w <= 0 {
			continue
		}
		out = append(out, w)
	}
	return out
}

// FormatWeights renders a weight list for display, one decimal place,
// canonical delimiter. ParseWeights(FormatWeights(ws)) round-trips modulo
// that rounding.
func FormatWeights(ws []float64) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = strconv.FormatFloat(math.Round(w*10)/10, 'f', -1, 64)
	}
	return strings.Join(parts, WeightsDelimiter)
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}
