package dataset

// Values longer than this are treated as free text rather than categories.
const maxCategoryLen = 64

// InferKind classifies a column from its non-missing values: numeric when all
// parse as plain numbers, boolean when all are in the ParseBool vocabulary, datetime
// when one layout parses all, categorical for short low-cardinality values,
// text otherwise. No values at all yields text.
func InferKind(values []string) Kind {
	if len(values) == 0 {
		return KindText
	}
	numeric, boolean := true, true
	for _, v := range values {
		if numeric {
			if _, ok := ParseNumber(v); !ok {
				numeric = false
			}
		}
		if boolean {
			if _, ok := ParseBool(v); !ok {
				boolean = false
			}
		}
		if !numeric && !boolean {
			break
		}
	}
	switch {
	case numeric:
		return KindNumeric
	case boolean:
		return KindBoolean
	}
	if _, hits := MatchDateLayout(values, DateLayouts); hits == len(values) {
		return KindDatetime
	}
	distinct := make(map[string]struct{})
	for _, v := range values {
		if len(v) > maxCategoryLen {
			return KindText
		}
		distinct[v] = struct{}{}
	}
	limit := len(values) / 2
	if limit < 20 {
		limit = 20
	}
	if len(distinct) <= limit {
		return KindCategorical
	}
	return KindText
}
