package worker

// Partition splits items into n contiguous chunks whose sizes differ by at
// most one, larger chunks first. Fewer than n items yields len(items)
// single-item chunks; n <= 0 is treated as 1.
func Partition[T any](items []T, n int) [][]T {
	if n <= 0 {
		n = 1
	}
	if len(items) == 0 {
		return nil
	}
	if n > len(items) {
		n = len(items)
	}

	size := len(items) / n
	extra := len(items) % n

	chunks := make([][]T, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		end := start + size
		if i < extra {
			end++
		}
		chunks = append(chunks, items[start:end:end])
		start = end
	}
	return chunks
}
