package dataset

import "fmt"

// InvalidDatasetError reports a broken structural invariant, such as columns
// of different lengths. Loaders never produce such a dataset, so seeing this
// error points at a bug upstream.
type InvalidDatasetError struct {
	Column string
	Reason string
}

func (e *InvalidDatasetError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("invalid dataset: column %q %s", e.Column, e.Reason)
	}
	return fmt.Sprintf("invalid dataset: %s", e.Reason)
}
