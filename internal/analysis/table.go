package analysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/KaramelBytes/datatidy-cli/internal/dataset"
)

// Options controls profiling.
type Options struct {
	// SampleRows is how many leading rows are kept as the sample.
	SampleRows int
	// OutlierThreshold is the robust |z| (MAD based) above which a numeric
	// value counts as an outlier.
	OutlierThreshold float64
	// TopValues caps the categorical frequency list.
	TopValues int
}

// DefaultOptions returns reasonable defaults for profiling.
func DefaultOptions() Options {
	return Options{
		SampleRows:       100,
		OutlierThreshold: 3.5,
		TopValues:        8,
	}
}

// Report is a markdown-friendly profile of a dataset.
type Report struct {
	Name         string          `json:"name"`
	Rows         int             `json:"rows"`
	Cols         int             `json:"columns"`
	MissingTotal int             `json:"missing_total"`
	Duplicates   int             `json:"duplicates"`
	Columns      []ColumnProfile `json:"profiles"`
	Header       []string        `json:"-"`
	Samples      [][]string      `json:"-"`
	Warnings     []string        `json:"warnings,omitempty"`
}

// ColumnProfile captures the inferred kind and statistics of one column.
type ColumnProfile struct {
	Name     string       `json:"name"`
	Kind     dataset.Kind `json:"kind"`
	Unit     string       `json:"unit,omitempty"`
	NonNull  int          `json:"non_null"`
	Missing  int          `json:"missing"`
	Distinct int          `json:"distinct"`
	// Numeric stats
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
	Mean   float64 `json:"mean,omitempty"`
	Std    float64 `json:"std,omitempty"`
	Median float64 `json:"median,omitempty"`
	// Outliers (robust Z via MAD)
	OutliersCount    int     `json:"outliers,omitempty"`
	OutliersMaxAbsZ  float64 `json:"outliers_max_abs_z,omitempty"`
	OutlierThreshold float64 `json:"outlier_threshold,omitempty"`
	// Categorical top values
	TopValues []CategoryCount `json:"top_values,omitempty"`
	Examples  []string        `json:"examples,omitempty"`
}

// MissingPct is the share of missing cells in percent.
func (c ColumnProfile) MissingPct() float64 {
	total := c.NonNull + c.Missing
	if total == 0 {
		return 0
	}
	return float64(c.Missing) * 100.0 / float64(total)
}

type CategoryCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

const maxExamples = 5

// Profile summarizes ds. It does not modify ds and is deterministic.
func Profile(ds *dataset.Dataset, opt Options) *Report {
	if opt.SampleRows <= 0 {
		opt.SampleRows = DefaultOptions().SampleRows
	}
	if opt.OutlierThreshold <= 0 {
		opt.OutlierThreshold = 3.5
	}
	if opt.TopValues <= 0 {
		opt.TopValues = 8
	}
	rep := &Report{Name: ds.Name, Rows: ds.NumRows(), Cols: ds.NumCols(), Header: ds.ColumnNames()}
	rep.MissingTotal = ds.MissingCount()
	rep.Duplicates = ds.DuplicateCount()

	rep.Columns = make([]ColumnProfile, 0, ds.NumCols())
	for j := range ds.Columns {
		rep.Columns = append(rep.Columns, profileColumn(&ds.Columns[j], opt))
	}

	n := rep.Rows
	if n > opt.SampleRows {
		n = opt.SampleRows
	}
	records := ds.Records()
	rep.Samples = records[:n]

	rep.Warnings = profileWarnings(rep, opt)
	return rep
}

func profileColumn(col *dataset.Column, opt Options) ColumnProfile {
	_, unit := splitUnits(col.Name)
	p := ColumnProfile{Name: col.Name, Kind: col.Kind, Unit: unit}
	counts := make(map[string]int)
	var order []string
	var nums []float64

	// numeric stats via Welford
	var n int
	var mean, m2 float64
	min, max := math.Inf(1), math.Inf(-1)

	for _, cell := range col.Cells {
		if cell.Missing {
			p.Missing++
			continue
		}
		p.NonNull++
		v := cell.Value
		if _, seen := counts[v]; !seen {
			order = append(order, v)
			if len(p.Examples) < maxExamples {
				p.Examples = append(p.Examples, v)
			}
		}
		counts[v]++
		if col.Kind != dataset.KindNumeric {
			continue
		}
		x, ok := dataset.ParseNumber(v)
		if !ok {
			continue
		}
		n++
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
		delta := x - mean
		mean += delta / float64(n)
		m2 += delta * (x - mean)
		nums = append(nums, x)
	}
	p.Distinct = len(counts)

	switch col.Kind {
	case dataset.KindNumeric:
		if n == 0 {
			break
		}
		p.Min, p.Max, p.Mean = min, max, mean
		if n > 1 {
			p.Std = math.Sqrt(m2 / float64(n-1))
		}
		median, mad := medianMAD(nums)
		p.Median = median
		if len(nums) >= 8 {
			p.OutlierThreshold = opt.OutlierThreshold
			if mad > 0 {
				for _, v := range nums {
					az := math.Abs(0.6745 * (v - median) / mad)
					if az > opt.OutlierThreshold {
						p.OutliersCount++
					}
					if az > p.OutliersMaxAbsZ {
						p.OutliersMaxAbsZ = az
					}
				}
			}
		}
	case dataset.KindCategorical, dataset.KindBoolean:
		tops := make([]CategoryCount, 0, len(counts))
		for _, v := range order {
			tops = append(tops, CategoryCount{Value: v, Count: counts[v]})
		}
		// stable keeps first-seen order among equal counts
		sort.SliceStable(tops, func(i, j int) bool { return tops[i].Count > tops[j].Count })
		if len(tops) > opt.TopValues {
			tops = tops[:opt.TopValues]
		}
		p.TopValues = tops
	}
	return p
}

func profileWarnings(rep *Report, opt Options) []string {
	var out []string
	if rep.Rows == 0 {
		out = append(out, "dataset has no rows")
	}
	for _, c := range rep.Columns {
		switch {
		case rep.Rows > 0 && c.NonNull == 0:
			out = append(out, fmt.Sprintf("column %s is entirely missing", safeName(c.Name)))
		case c.MissingPct() > 50:
			out = append(out, fmt.Sprintf("column %s is %.0f%% missing", safeName(c.Name), c.MissingPct()))
		case c.Distinct == 1 && rep.Rows > 1:
			out = append(out, fmt.Sprintf("column %s holds a single value", safeName(c.Name)))
		}
		if c.OutliersCount > 0 {
			out = append(out, fmt.Sprintf("column %s has %d outliers above |z|>%.1f", safeName(c.Name), c.OutliersCount, c.OutlierThreshold))
		}
	}
	if rep.Duplicates > 0 {
		out = append(out, fmt.Sprintf("%d duplicate rows", rep.Duplicates))
	}
	if rep.Rows > len(rep.Samples) && len(rep.Samples) > 0 {
		out = append(out, fmt.Sprintf("sample limited to the first %d/%d rows", len(rep.Samples), rep.Rows))
	}
	return out
}

// Markdown renders a compact report suitable for prompts or standalone docs.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[DATASET SUMMARY]\n")
	if r.Name != "" {
		b.WriteString(fmt.Sprintf("File: %s\n", r.Name))
	}
	b.WriteString(fmt.Sprintf("Rows: %d\n", r.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", r.Cols))
	missPct := 0.0
	if cells := r.Rows * r.Cols; cells > 0 {
		missPct = float64(r.MissingTotal) * 100.0 / float64(cells)
	}
	b.WriteString(fmt.Sprintf("Missing cells: %d (%.1f%%)\n", r.MissingTotal, missPct))
	b.WriteString(fmt.Sprintf("Duplicate rows: %d\n\n", r.Duplicates))

	b.WriteString("[SCHEMA]\n")
	for _, c := range r.Columns {
		name := safeName(c.Name)
		if c.Unit != "" {
			name = fmt.Sprintf("%s [%s]", name, c.Unit)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%, distinct %d)", name, c.Kind, c.NonNull, c.MissingPct(), c.Distinct))
		switch c.Kind {
		case dataset.KindNumeric:
			if c.NonNull > 0 {
				b.WriteString(fmt.Sprintf(": min %.4g, max %.4g, mean %.4g, median %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Median, c.Std))
			}
			if c.OutlierThreshold > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f", c.OutliersCount, c.OutlierThreshold))
				if c.OutliersMaxAbsZ > 0 {
					b.WriteString(fmt.Sprintf(" (max |z|≈%.2f)", c.OutliersMaxAbsZ))
				}
			}
		case dataset.KindCategorical, dataset.KindBoolean:
			if len(c.TopValues) > 0 {
				b.WriteString(": top ")
				for i, kv := range c.TopValues {
					if i > 0 {
						b.WriteString(", ")
					}
					b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
				}
			}
		default:
			if len(c.Examples) > 0 {
				b.WriteString(": e.g., ")
				for i, ex := range c.Examples {
					if i > 0 {
						b.WriteString(" | ")
					}
					b.WriteString(safeVal(clip(ex, 80)))
				}
			}
		}
		b.WriteString("\n")
	}
	if len(r.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n")
		b.WriteString("| ")
		for i, name := range r.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(safeVal(safeName(name)))
		}
		b.WriteString(" |\n| ")
		for i := range r.Header {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString("---")
		}
		b.WriteString(" |\n")
		for _, row := range r.Samples {
			b.WriteString("| ")
			for i := range r.Header {
				if i > 0 {
					b.WriteString(" | ")
				}
				val := ""
				if i < len(row) {
					val = row[i]
				}
				b.WriteString(safeVal(clip(val, 80)))
			}
			b.WriteString(" |\n")
		}
	}
	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// SampleCSV renders the header and sample rows as CSV. Missing cells are
// empty fields.
func (r *Report) SampleCSV() string {
	var b strings.Builder
	w := csv.NewWriter(&b)
	_ = w.Write(r.Header)
	for _, row := range r.Samples {
		_ = w.Write(row)
	}
	w.Flush()
	return b.String()
}

// Column returns the profile of the named column.
func (r *Report) Column(name string) (ColumnProfile, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

func safeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(unnamed)"
	}
	return s
}
func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

var unitPatterns = []struct {
	re   *regexp.Regexp
	pick int
}{
	{regexp.MustCompile(`^(.*)\s*\(([^)]+)\)\s*$`), 2},  // e.g., Alpha (%)
	{regexp.MustCompile(`^(.*)\s*\[([^\]]+)\]\s*$`), 2}, // e.g., Mass [mg/L]
	{regexp.MustCompile(`^(.*?)[_\s-]+(mg/L|g/L|ug/L|°[CF]|Brix|%|ppm|ppb|USD|EUR|kg|km)$`), 2},
}

// splitUnits separates a trailing unit annotation from a header name.
func splitUnits(name string) (clean string, unit string) {
	s := strings.TrimSpace(name)
	for _, p := range unitPatterns {
		if m := p.re.FindStringSubmatch(s); len(m) >= 3 {
			base := strings.TrimSpace(m[1])
			u := strings.TrimSpace(m[p.pick])
			if base != "" && u != "" {
				return base, u
			}
		}
	}
	return s, ""
}

// medianMAD computes median and MAD (median absolute deviation) of values.
func medianMAD(vals []float64) (median, mad float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	cp := make([]float64, len(vals))
	copy(cp, vals)
	sort.Float64s(cp)
	median = quantile(cp, 0.5)
	dev := make([]float64, len(cp))
	for i, v := range cp {
		d := v - median
		if d < 0 {
			d = -d
		}
		dev[i] = d
	}
	sort.Float64s(dev)
	mad = quantile(dev, 0.5)
	return
}

// Median returns the median of vals (0 for none).
func Median(vals []float64) float64 {
	m, _ := medianMAD(vals)
	return m
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}
