package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLooseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"$1,200.50", 1200.5, true},
		{"1.234,5 €", 1234.5, true},
		{"1,200", 1200, true},
		{"1,5", 1.5, true},
		{"1.234.567", 1234567, true},
		{"(300)", -300, true},
		{"-$5", -5, true},
		{"45%", 45, true},
		{"USD 12", 12, true},
		{"usd 7", 7, true},
		{"2.5e2", 250, true},
		{"1 234", 1234, true},
		{"12abc", 0, false},
		{"$", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseLooseNumber(c.in, NumberFormat{})
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-9, c.in)
		}
	}

	got, ok := ParseLooseNumber("1.200", NumberFormat{Decimal: ',', Thousands: '.'})
	assert.True(t, ok)
	assert.InDelta(t, 1200, got, 1e-9)
}

func TestParseNumberIsStrict(t *testing.T) {
	for _, s := range []string{"1", "-2.5", " 3 ", "1e3", ".5"} {
		_, ok := ParseNumber(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"NaN", "inf", "1,000", "$3", "0x10", ""} {
		_, ok := ParseNumber(s)
		assert.False(t, ok, s)
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "1200.5", FormatNumber(1200.5))
	assert.Equal(t, "15", FormatNumber(15))
	assert.Equal(t, "0", FormatNumber(0))
	assert.Equal(t, "-3", FormatNumber(-3))
}

func TestMatchDateLayoutPrefersFullColumn(t *testing.T) {
	layout, hits := MatchDateLayout([]string{"2024-01-05", "2024-02-10"}, DateLayouts)
	assert.Equal(t, "2006-01-02", layout)
	assert.Equal(t, 2, hits)

	// 13/04 only parses day-first, so the month-first layout loses.
	layout, hits = MatchDateLayout([]string{"03/04/2024", "13/04/2024"}, DateLayouts)
	assert.Equal(t, "02/01/2006", layout)
	assert.Equal(t, 2, hits)

	layout, hits = MatchDateLayout([]string{"2024-01-05", "soon", "2024-03-01"}, DateLayouts)
	assert.Equal(t, "2006-01-02", layout)
	assert.Equal(t, 2, hits)

	_, hits = MatchDateLayout([]string{"apple"}, DateLayouts)
	assert.Zero(t, hits)
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, KindNumeric, InferKind([]string{"1", "2.5", "-3"}))
	assert.Equal(t, KindBoolean, InferKind([]string{"true", "No", "YES"}))
	assert.Equal(t, KindDatetime, InferKind([]string{"2024-01-01", "2024-05-06"}))
	assert.Equal(t, KindCategorical, InferKind([]string{"red", "blue", "red"}))
	assert.Equal(t, KindCategorical, InferKind([]string{"$1,200", "$300"}))
	assert.Equal(t, KindText, InferKind(nil))

	long := make([]string, 0, 3)
	for i := 0; i < 3; i++ {
		long = append(long, string(make([]byte, 80)))
	}
	assert.Equal(t, KindText, InferKind(long))
}

func TestParseBoolShortForms(t *testing.T) {
	for _, s := range []string{"y", "T", " yes "} {
		v, ok := ParseBool(s)
		assert.True(t, ok, s)
		assert.True(t, v, s)
	}
	v, ok := ParseBool("F")
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = ParseBool("1")
	assert.False(t, ok)
}
