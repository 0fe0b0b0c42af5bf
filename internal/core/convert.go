package core

// convert.go is the normalizer: it coerces raw bronze scalars into typed,
// nullable pgtype values.
//
// Bronze values arrive in whatever shape the provider produced them: CSV text,
// typed database values, or Go scalars from tests. Every function here accepts
// any of those and never fails. Input that cannot be read as the declared type
// becomes a value with Valid=false, which is the pipeline's single notion of
// "missing". In particular an empty or whitespace-only string is missing, and
// an unrecognized boolean is missing rather than false.

import (
	"database/sql/driver"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// numericRegex validates that a string is a plain decimal after trimming.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// dateLayouts are the ISO-8601 spellings accepted for date columns. They all
// spell one representation, the calendar date YYYY-MM-DD. The other entries only
// admit the trailing time part that timestamp columns carry; it is parsed and
// then discarded. Any other date format is missing.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
}

// Normalize coerces raw into the pgtype value matching t.
func Normalize(raw any, t FieldType) any {
	switch t {
	case FieldDate:
		return NormalizeDate(raw)
	case FieldNumeric:
		return NormalizeNumeric(raw)
	case FieldInteger:
		return NormalizeInteger(raw)
	case FieldBool:
		return NormalizeBool(raw)
	default:
		return NormalizeText(raw)
	}
}

// NormalizeText trims surrounding whitespace. Empty results are missing.
func NormalizeText(raw any) pgtype.Text {
	s, ok := rawString(raw)
	if !ok {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// NormalizeDate parses an ISO-8601 date. Unparseable input is missing.
func NormalizeDate(raw any) pgtype.Date {
	if t, ok := raw.(time.Time); ok {
		return dateOf(t)
	}
	if d, ok := raw.(pgtype.Date); ok {
		if !d.Valid || d.InfinityModifier != pgtype.Finite {
			return pgtype.Date{}
		}
		return dateOf(d.Time)
	}

	s, ok := rawString(raw)
	if !ok {
		return pgtype.Date{}
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return dateOf(t)
		}
	}
	return pgtype.Date{}
}

// NormalizeNumeric parses a decimal number. Unparseable input is missing.
func NormalizeNumeric(raw any) pgtype.Numeric {
	d, ok := parseDecimal(raw)
	if !ok {
		return pgtype.Numeric{}
	}
	return NumericFromDecimal(d)
}

// Postgres NUMERIC limits: digits before and after the decimal point.
const (
	maxNumericIntDigits  = 131072
	maxNumericFracDigits = 16383
)

// maxInt64Exponent is the largest base-10 exponent an int64 can carry with a
// single-digit coefficient.
const maxInt64Exponent = 18

// NormalizeInteger parses an integer. Integral decimals such as "42.0" are
// accepted; fractional or out-of-range values are missing. The result keeps
// missing distinct from zero.
func NormalizeInteger(raw any) pgtype.Int8 {
	d, ok := parseDecimal(raw)
	if !ok || d.Exponent() > maxInt64Exponent || !d.IsInteger() {
		return pgtype.Int8{}
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: bi.Int64(), Valid: true}
}

// NormalizeBool maps {y, yes, true, 1} to true and {n, no, false, 0} to false,
// case-insensitively. Anything else is missing, not false.
func NormalizeBool(raw any) pgtype.Bool {
	if b, ok := raw.(bool); ok {
		return pgtype.Bool{Bool: b, Valid: true}
	}
	s, ok := rawString(raw)
	if !ok {
		return pgtype.Bool{}
	}
	switch strings.ToLower(s) {
	case "y", "yes", "true", "1":
		return pgtype.Bool{Bool: true, Valid: true}
	case "n", "no", "false", "0":
		return pgtype.Bool{Bool: false, Valid: true}
	default:
		return pgtype.Bool{}
	}
}

// NumericFromDecimal converts a decimal into a valid pgtype.Numeric.
func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

// DecimalFromNumeric converts a pgtype.Numeric into a decimal.
// The boolean is false for missing, NaN, or infinite values.
func DecimalFromNumeric(n pgtype.Numeric) (decimal.Decimal, bool) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), true
}

func parseDecimal(raw any) (decimal.Decimal, bool) {
	s, ok := rawString(raw)
	if !ok || !numericRegex.MatchString(s) {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !fitsNumeric(d) {
		return decimal.Zero, false
	}
	return d, true
}

// fitsNumeric reports whether d can be stored in a Postgres NUMERIC column.
// Only the coefficient and exponent are inspected, so a value like 1e50000000
// is refused without being expanded.
func fitsNumeric(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -maxNumericFracDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= maxNumericIntDigits
}

func dateOf(t time.Time) pgtype.Date {
	y, m, d := t.Date()
	return pgtype.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Valid: true}
}

// rawString renders a raw scalar as trimmed text. The boolean is false when the
// value is nil, empty after trimming, or otherwise carries no data.
func rawString(raw any) (string, bool) {
	var s string
	switch v := raw.(type) {
	case nil:
		return "", false
	case string:
		s = v
	case []byte:
		s = string(v)
	case bool:
		s = strconv.FormatBool(v)
	case int:
		s = strconv.FormatInt(int64(v), 10)
	case int8:
		s = strconv.FormatInt(int64(v), 10)
	case int16:
		s = strconv.FormatInt(int64(v), 10)
	case int32:
		s = strconv.FormatInt(int64(v), 10)
	case int64:
		s = strconv.FormatInt(v, 10)
	case uint:
		s = strconv.FormatUint(uint64(v), 10)
	case uint8:
		s = strconv.FormatUint(uint64(v), 10)
	case uint16:
		s = strconv.FormatUint(uint64(v), 10)
	case uint32:
		s = strconv.FormatUint(uint64(v), 10)
	case uint64:
		s = strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case time.Time:
		s = v.Format(time.RFC3339Nano)
	case decimal.Decimal:
		s = v.String()
	case driver.Valuer:
		val, err := v.Value()
		if err != nil {
			return "", false
		}
		if _, nested := val.(driver.Valuer); nested {
			return "", false
		}
		return rawString(val)
	case fmt.Stringer:
		s = v.String()
	default:
		return "", false
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

func formatFloat(f float64, bits int) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, bits), true
}
