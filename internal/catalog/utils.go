package catalog

import (
	"context"
)

const defaultChunkSize = 100

// fetchAll is a generic pagination helper. A negative total means unknown:
// paging stops at the first short page.
func fetchAll[T any](
	ctx context.Context,
	fetch func(ctx context.Context, offset, limit int) ([]T, error),
	total int,
	chunkSize int,
	onProgress func(loaded, total int),
) ([]T, error) {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	var all []T
	offset := 0

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		items, err := fetch(ctx, offset, chunkSize)
		if err != nil {
			return nil, err
		}

		all = append(all, items...)

		if onProgress != nil {
			onProgress(len(all), total)
		}

		if len(items) < chunkSize || (total >= 0 && len(all) >= total) {
			break
		}
		offset += chunkSize
	}

	return all, nil
}
