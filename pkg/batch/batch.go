// Package batch splits outgoing feature collections to fit a payload byte
// budget, and id lists to fit a URL length budget.
package batch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidBudget is returned for non-positive budgets.
var ErrInvalidBudget = errors.New("budget must be > 0")

// TooLargeError reports an item that exceeds the budget on its own.
type TooLargeError struct {
	Index  int
	Size   int
	Budget int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("item %d alone is %d bytes, over budget of %d bytes", e.Index, e.Size, e.Budget)
}

// Size returns the serialized size of a chunk as a JSON array.
func Size[T any](items []T) (int, error) {
	b, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("marshal chunk: %w", err)
	}
	return len(b), nil
}

// Payload splits items into contiguous chunks whose serialized size is at
// most budget bytes. Order is preserved and nothing is dropped.
//
// The chunk length is estimated once from the first item; each chunk starts
// from twice that estimate and halves until it fits.
func Payload[T any](items []T, budget int) ([][]T, error) {
	if budget <= 0 {
		return nil, ErrInvalidBudget
	}
	if len(items) == 0 {
		return nil, nil
	}

	sample, err := Size(items[:1])
	if err != nil {
		return nil, err
	}
	estimate := budget / sample
	if estimate < 1 {
		estimate = 1
	}

	var chunks [][]T
	for cursor := 0; cursor < len(items); {
		n := min(2*estimate, len(items)-cursor)
		for n > 0 {
			size, err := Size(items[cursor : cursor+n])
			if err != nil {
				return nil, err
			}
			if size <= budget {
				break
			}
			if n == 1 {
				return nil, &TooLargeError{Index: cursor, Size: size, Budget: budget}
			}
			n /= 2
		}

		chunks = append(chunks, items[cursor:cursor+n])
		cursor += n
	}

	return chunks, nil
}

// IDs splits ids into contiguous chunks sized so that each chunk, joined into
// a query string, keeps the URL under urlBudget characters.
func IDs(ids []string, urlBudget, baseLen int) [][]string {
	if len(ids) == 0 {
		return nil
	}

	total := 0
	for _, id := range ids {
		total += len(id)
	}
	avg := total / len(ids)

	size := (urlBudget - baseLen) / (avg + 1)
	if size < 1 {
		size = 1
	}

	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for i := 0; i < len(ids); i += size {
		chunks = append(chunks, ids[i:min(i+size, len(ids))])
	}
	return chunks
}
