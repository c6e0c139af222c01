package store

import (
	"errors"
	"reflect"
	"testing"
)

func TestChunkRange(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		chunkSize int
		want      [][2]int
	}{
		{name: "empty", total: 0, chunkSize: 3, want: nil},
		{name: "exact", total: 6, chunkSize: 3, want: [][2]int{{0, 3}, {3, 6}}},
		{name: "remainder", total: 7, chunkSize: 3, want: [][2]int{{0, 3}, {3, 6}, {6, 7}}},
		{name: "single window", total: 4, chunkSize: 0, want: [][2]int{{0, 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [][2]int
			err := ChunkRange(tt.total, tt.chunkSize, func(start, end int) error {
				got = append(got, [2]int{start, end})
				return nil
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("windows = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChunkRange_StopsOnError(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := ChunkRange(10, 2, func(start, end int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestDedupeStrings(t *testing.T) {
	got := DedupeStrings([]string{"ACME", "", "PRICING", "ACME", "RENEWAL"})
	want := []string{"ACME", "PRICING", "RENEWAL"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("DedupeStrings = %v, want %v", got, want)
	}
	if DedupeStrings(nil) != nil {
		t.Fatal("expected nil for nil input")
	}
}
