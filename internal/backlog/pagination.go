package backlog

import "context"

// collectOffset fetches pages at offsets 0, PageSize, 2*PageSize, ... until a
// page comes back shorter than PageSize.
func collectOffset[T any](ctx context.Context, fetch func(ctx context.Context, offset int) ([]T, error)) ([]T, error) {
	var all []T
	for offset := 0; ; offset += PageSize {
		page, err := fetch(ctx, offset)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}
	}
}

// collectWatermark fetches ascending pages, asking each time for ids above
// the highest one seen so far, until a page comes back shorter than PageSize.
// minID is nil on the first call.
func collectWatermark[T any](ctx context.Context, fetch func(ctx context.Context, minID *int) ([]T, error), id func(T) int) ([]T, error) {
	var (
		all   []T
		minID *int
	)
	for {
		page, err := fetch(ctx, minID)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < PageSize {
			return all, nil
		}

		highest := id(page[0])
		for _, item := range page[1:] {
			if v := id(item); v > highest {
				highest = v
			}
		}
		next := highest + 1
		minID = &next
	}
}
