package storage

import "sort"

// Paginate returns the window [offset, offset+limit) of items and the total
// number of items before slicing. A limit <= 0 means no cap; a negative offset
// is treated as 0; an offset past the end yields an empty, non-nil slice.
func Paginate[T any](items []T, offset, limit int) ([]T, int) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return []T{}, total
	}

	end := total
	if limit > 0 && limit < total-offset {
		end = offset + limit
	}
	return items[offset:end], total
}

// SortNewestFirst orders entities by CreatedAt descending, ties broken by ID ascending
func SortNewestFirst[T Object](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].GetObjectMeta(), items[j].GetObjectMeta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// PageAfter returns up to limit entities following the one whose ID equals
// cursor. An empty cursor starts at the beginning; a cursor not present in
// items yields an empty page. A limit <= 0 returns the remainder.
func PageAfter[T Object](items []T, cursor string, limit int) []T {
	start := 0
	if cursor != "" {
		start = -1
		for i, item := range items {
			if item.GetObjectMeta().ID == cursor {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return []T{}
		}
	}

	page, _ := Paginate(items, start, limit)
	return page
}
