package issues

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode"
)

type rawAssessment struct {
	Issues          []json.RawMessage `json:"issues"`
	Recommendations []json.RawMessage `json:"recommendations"`
	Summary         string            `json:"summary"`
	Severity        string            `json:"severity"`
}

type rawIssue struct {
	Description string          `json:"description"`
	Issue       string          `json:"issue"`
	Text        string          `json:"text"`
	Severity    string          `json:"severity"`
	Columns     json.RawMessage `json:"columns"`
	Column      string          `json:"column"`
}

// ParseAssessment turns a model reply into an Assessment. It accepts a JSON
// object (optionally inside a markdown code fence, or surrounded by prose),
// with issues given either as strings or as objects. A reply that holds no
// JSON becomes a single Medium issue carrying the text. An empty reply yields
// an empty assessment. columns is used to infer affected columns.
func ParseAssessment(text string, columns []string) *Assessment {
	text = strings.TrimSpace(text)
	if text == "" {
		return &Assessment{}
	}
	raw, ok := decodeObject(stripFences(text))
	if !ok {
		raw, ok = decodeObject(braced(text))
	}
	if !ok {
		return &Assessment{
			Issues:   []Issue{{Description: text, Severity: Medium, Columns: inferColumns(text, columns)}},
			Severity: Medium,
		}
	}

	overall, ok := ParseSeverity(raw.Severity)
	if !ok {
		overall = Medium
	}
	a := &Assessment{Summary: strings.TrimSpace(raw.Summary), Severity: overall}
	for _, m := range raw.Issues {
		if is, ok := decodeIssue(m, overall, columns); ok {
			a.Issues = append(a.Issues, is)
		}
	}
	sort.SliceStable(a.Issues, func(i, j int) bool {
		return a.Issues[i].Severity.Rank() < a.Issues[j].Severity.Rank()
	})
	for _, m := range raw.Recommendations {
		if s := textOf(m); s != "" {
			a.Recommendations = append(a.Recommendations, s)
		}
	}
	return a
}

func decodeObject(s string) (rawAssessment, bool) {
	var raw rawAssessment
	if s == "" || !strings.HasPrefix(s, "{") {
		return raw, false
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return raw, false
	}
	return raw, true
}

// stripFences returns the body of the first ```json (or bare ```) block.
func stripFences(s string) string {
	for _, open := range []string{"```json", "```JSON", "```"} {
		i := strings.Index(s, open)
		if i < 0 {
			continue
		}
		body := s[i+len(open):]
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
		return strings.TrimSpace(body)
	}
	return s
}

// braced returns the text from the first '{' to the last '}'.
func braced(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func decodeIssue(m json.RawMessage, overall Severity, columns []string) (Issue, bool) {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return Issue{}, false
		}
		return Issue{Description: s, Severity: overall, Columns: inferColumns(s, columns)}, true
	}
	var ri rawIssue
	if err := json.Unmarshal(m, &ri); err != nil {
		return Issue{}, false
	}
	desc := firstNonEmpty(ri.Description, ri.Issue, ri.Text)
	if desc == "" {
		return Issue{}, false
	}
	sev, ok := ParseSeverity(ri.Severity)
	if !ok {
		sev = overall
	}
	cols := stringList(ri.Columns)
	if ri.Column != "" {
		cols = append(cols, ri.Column)
	}
	if len(cols) == 0 {
		cols = inferColumns(desc, columns)
	}
	return Issue{Description: desc, Severity: sev, Columns: cols}, true
}

// stringList decodes a JSON string or array of strings.
func stringList(m json.RawMessage) []string {
	if len(m) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(m, &list); err == nil {
		out := list[:0]
		for _, s := range list {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	var one string
	if err := json.Unmarshal(m, &one); err == nil && strings.TrimSpace(one) != "" {
		return []string{strings.TrimSpace(one)}
	}
	return nil
}

// textOf renders a recommendation given as a string or as an object.
func textOf(m json.RawMessage) string {
	var s string
	if err := json.Unmarshal(m, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj map[string]any
	if err := json.Unmarshal(m, &obj); err == nil {
		for _, k := range []string{"description", "recommendation", "step", "action", "text"} {
			if v, ok := obj[k].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return strings.TrimSpace(string(m))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// inferColumns returns the column names mentioned in text, matched case
// insensitively on word boundaries, in column order.
func inferColumns(text string, columns []string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, c := range columns {
		name := strings.ToLower(strings.TrimSpace(c))
		if name == "" {
			continue
		}
		if mentions(lower, name) {
			out = append(out, c)
		}
	}
	return out
}

func mentions(text, name string) bool {
	for off := 0; off < len(text); {
		i := strings.Index(text[off:], name)
		if i < 0 {
			return false
		}
		i += off
		end := i + len(name)
		if boundary(text, i-1) && boundary(text, end) {
			return true
		}
		off = i + 1
	}
	return false
}

// boundary reports whether the byte at i does not continue a word.
func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	r := rune(s[i])
	return r < 0x80 && !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
}
