package session

import (
	"testing"
	"time"
)

func TestTotalPages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		total int
		limit int
		want  int
	}{
		{name: "empty", total: 0, limit: 20, want: 0},
		{name: "exact multiple", total: 40, limit: 20, want: 2},
		{name: "partial last page", total: 41, limit: 20, want: 3},
		{name: "single message", total: 1, limit: 20, want: 1},
		{name: "limit one", total: 5, limit: 1, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TotalPages(tt.total, tt.limit); got != tt.want {
				t.Errorf("TotalPages(%d, %d) = %d, want %d", tt.total, tt.limit, got, tt.want)
			}
		})
	}
}

func TestDefaultTitle(t *testing.T) {
	t.Parallel()

	createdAt := time.Date(2025, time.March, 7, 15, 4, 5, 0, time.UTC)
	if got, want := DefaultTitle(createdAt), "Chat 2025-03-07"; got != want {
		t.Errorf("DefaultTitle = %q, want %q", got, want)
	}
}
