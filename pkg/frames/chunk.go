package frames

// DefaultChunkSize is the outbound audio frame size.
const DefaultChunkSize = 4096

// Chunk splits data into consecutive slices of at most size bytes. The
// slices alias data; the last one may be shorter.
func Chunk(data []byte, size int) [][]byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(data) == 0 {
		return nil
	}
	out := make([][]byte, 0, (len(data)+size-1)/size)
	for start := 0; start < len(data); start += size {
		end := start + size
		if end > len(data) {
			end = len(data)
		}
		out = append(out, data[start:end:end])
	}
	return out
}
