package worker

import "testing"

func TestPartition(t *testing.T) {
	tests := []struct {
		items    int
		n        int
		expected []int
		desc     string
	}{
		{200, 4, []int{50, 50, 50, 50}, "even split"},
		{10, 4, []int{3, 3, 2, 2}, "remainder goes to leading chunks"},
		{3, 4, []int{1, 1, 1}, "fewer items than chunks"},
		{5, 0, []int{5}, "non-positive n"},
		{0, 4, nil, "empty input"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			items := make([]int, tt.items)
			for i := range items {
				items[i] = i
			}

			chunks := Partition(items, tt.n)
			if len(chunks) != len(tt.expected) {
				t.Fatalf("expected %d chunks, got %d", len(tt.expected), len(chunks))
			}

			next := 0
			for i, chunk := range chunks {
				if len(chunk) != tt.expected[i] {
					t.Errorf("chunk %d: expected size %d, got %d", i, tt.expected[i], len(chunk))
				}
				for _, v := range chunk {
					if v != next {
						t.Fatalf("chunks are not contiguous: expected %d, got %d", next, v)
					}
					next++
				}
			}
		})
	}
}

func TestPartition_ChunksDoNotAlias(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	chunks := Partition(items, 2)

	chunks[0] = append(chunks[0], "x")
	if chunks[1][0] != "c" {
		t.Errorf("appending to one chunk overwrote the next: %v", chunks[1])
	}
}
