package protocol

// Decoding limits that keep a hostile peer from forcing large
// allocations or deep recursion.
const (
	// DefaultMaxAllocation is the default maximum size of a single byte
	// or text string (4MB).
	DefaultMaxAllocation = 4 * 1024 * 1024

	// HardMaxAllocation is the absolute ceiling for a configured
	// allocation limit (16MB).
	HardMaxAllocation = 16 * 1024 * 1024

	// MaxCollectionCount is the maximum number of items a definite
	// array or map may declare.
	MaxCollectionCount = 1_000_000

	// MaxNestingDepth limits how many containers and tags may be open
	// at once while reading or skipping.
	MaxNestingDepth = 256
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxAllocation sets the largest string the reader will
// materialize. Values above HardMaxAllocation are clamped.
func WithMaxAllocation(n int) ReaderOption {
	return func(r *Reader) {
		if n <= 0 {
			return
		}
		if n > HardMaxAllocation {
			n = HardMaxAllocation
		}
		r.maxAlloc = n
	}
}
