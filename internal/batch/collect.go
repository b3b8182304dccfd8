// Package batch provides collect-results-with-isolated-failures: every item of
// a batch is processed independently, failures are reported and skipped, and
// only successes are aggregated.
package batch

// Outcome records how a single item of a batch ended.
type Outcome[R any] struct {
	Index int
	Value R
	Err   error
}

// Collect applies process to every item in order. An item whose process call
// returns an error is handed to onFailure and left out of the result; it never
// stops the remaining items. The returned slice keeps the input order of the
// successful items and is empty, not nil, when every item failed.
func Collect[T, R any](items []T, process func(index int, item T) (R, error), onFailure func(index int, err error)) []R {
	results := make([]R, 0, len(items))

	for _, outcome := range Run(items, process) {
		if outcome.Err != nil {
			if onFailure != nil {
				onFailure(outcome.Index, outcome.Err)
			}

			continue
		}

		results = append(results, outcome.Value)
	}

	return results
}

// Run applies process to every item and returns one Outcome per item, in order.
// A panic inside process is not recovered.
func Run[T, R any](items []T, process func(index int, item T) (R, error)) []Outcome[R] {
	outcomes := make([]Outcome[R], len(items))

	for index, item := range items {
		value, err := process(index, item)
		outcomes[index] = Outcome[R]{Index: index, Value: value, Err: err}
	}

	return outcomes
}
