package upload

// Chunk sizing bounds. The part count cap stays under the 10000-part
// object store limit with headroom for retried tails.
const (
	// MinChunkSize is the smallest chunk clients are asked to send.
	MinChunkSize int64 = 8 << 20 // 8 MiB

	// ChunkSizeMultiple is the alignment for the chosen chunk size.
	ChunkSizeMultiple int64 = 5 << 20 // 5 MiB

	// MaxParts bounds ceil(totalBytes/chunkSize).
	MaxParts int64 = 9000
)

// ChunkSizeFor picks the per-session chunk size: at least MinChunkSize,
// large enough that the upload fits in MaxParts parts, rounded up to a
// ChunkSizeMultiple boundary.
func ChunkSizeFor(totalBytes int64) int64 {
	size := MinChunkSize

	// ceil(totalBytes / MaxParts)
	if perPart := (totalBytes + MaxParts - 1) / MaxParts; perPart > size {
		size = perPart
	}

	// Round up to the next multiple.
	if rem := size % ChunkSizeMultiple; rem != 0 {
		size += ChunkSizeMultiple - rem
	}
	return size
}
