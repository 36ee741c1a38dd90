package shuffle

// Option configures an Iterator.
type Option func(*options)

type options struct {
	chunkSize     *int
	existingOrder []int
	shuffler      Shuffler
	storage       Storage
	key           string
}

func newOptions(opts []Option) *options {
	o := &options{shuffler: DefaultShuffler}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithChunkSize sets how many indices are drawn per chunk.
// Values above the playlist length are clamped to it.
func WithChunkSize(n int) Option {
	return func(o *options) {
		o.chunkSize = &n
	}
}

// WithExistingOrder resumes from a previously generated order.
func WithExistingOrder(order []int) Option {
	return func(o *options) {
		o.existingOrder = order
	}
}

// WithShuffler replaces the random permutation primitive.
func WithShuffler(s Shuffler) Option {
	return func(o *options) {
		if s != nil {
			o.shuffler = s
		}
	}
}

// WithStorage mirrors every mutation to storage under key.
func WithStorage(s Storage, key string) Option {
	return func(o *options) {
		o.storage = s
		o.key = key
	}
}
