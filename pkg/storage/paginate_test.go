package storage

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/virtplane/pkg/types"
)

func TestPaginate(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}

	tests := []struct {
		name   string
		offset int
		limit  int
		want   []int
	}{
		{"first page", 0, 2, []int{0, 1}},
		{"middle page", 2, 2, []int{2, 3}},
		{"short last page", 4, 2, []int{4}},
		{"no limit", 1, 0, []int{1, 2, 3, 4}},
		{"negative limit", 0, -1, []int{0, 1, 2, 3, 4}},
		{"negative offset", -3, 2, []int{0, 1}},
		{"offset at end", 5, 2, []int{}},
		{"offset past end", 50, 2, []int{}},
		{"limit larger than set", 0, 100, []int{0, 1, 2, 3, 4}},
		{"max int limit", 1, math.MaxInt, []int{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total := Paginate(items, tt.offset, tt.limit)
			assert.Equal(t, 5, total)
			assert.NotNil(t, page)
			assert.Equal(t, tt.want, page)
		})
	}
}

func TestPaginateEmpty(t *testing.T) {
	page, total := Paginate([]string(nil), 0, 10)
	assert.Equal(t, 0, total)
	assert.Empty(t, page)
	assert.NotNil(t, page)
}

func TestPaginatePagesRebuildSet(t *testing.T) {
	items := make([]int, 23)
	for i := range items {
		items[i] = i
	}

	var rebuilt []int
	for offset := 0; ; offset += 5 {
		page, total := Paginate(items, offset, 5)
		require.Equal(t, 23, total)
		if len(page) == 0 {
			break
		}
		rebuilt = append(rebuilt, page...)
	}
	assert.Equal(t, items, rebuilt)
}

func stamped(id string, at time.Time) *widget {
	return &widget{ObjectMeta: types.ObjectMeta{ID: id, CreatedAt: at}}
}

func ids(items []*widget) []string {
	out := make([]string, len(items))
	for i, w := range items {
		out[i] = w.ID
	}
	return out
}

func TestSortNewestFirst(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	t3 := t2.Add(time.Minute)

	items := []*widget{stamped("b", t1), stamped("z", t3), stamped("a", t1), stamped("m", t2)}
	SortNewestFirst(items)

	assert.Equal(t, []string{"z", "m", "a", "b"}, ids(items))
}

func TestPageAfter(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := []*widget{
		stamped("v3", t1.Add(2*time.Second)),
		stamped("v2", t1.Add(time.Second)),
		stamped("v1", t1),
	}

	tests := []struct {
		name   string
		cursor string
		limit  int
		want   []string
	}{
		{"no cursor", "", 2, []string{"v3", "v2"}},
		{"no cursor no limit", "", 0, []string{"v3", "v2", "v1"}},
		{"after first", "v3", 2, []string{"v2", "v1"}},
		{"after middle limited", "v2", 1, []string{"v1"}},
		{"after last", "v1", 5, []string{}},
		{"unknown cursor", "gone", 5, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(PageAfter(items, tt.cursor, tt.limit)))
		})
	}
}
