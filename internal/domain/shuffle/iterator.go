// Package shuffle provides a chunked, bidirectionally navigable shuffle order
// over the indices of a playlist.
//
// The order is built lazily: the first chunk is drawn at construction and
// further chunks are appended on demand, so large playlists are never shuffled
// up front. Every mutation is mirrored to an optional Storage so a session can
// be resumed exactly where it left off.
//
// An Iterator is not safe for concurrent use. It is owned by exactly one
// playback session and callers serialize access to it.
package shuffle

import (
	"slices"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// MaxChunkSize bounds the number of indices drawn per chunk.
const MaxChunkSize = 100

// Errors
var (
	ErrInvalidConstruction = errors.New("invalid shuffle construction")
	ErrNoSnapshot          = errors.New("no shuffle snapshot stored")
)

// Iterator produces a non-repeating pseudo-random visiting order over
// [0, totalLength), starting from a fixed index.
type Iterator struct {
	// Identity
	startIndex  int
	totalLength int
	chunkSize   int

	// Sequence state
	order     []int
	seen      map[int]struct{}
	pointer   int
	completed bool

	// Collaborators
	shuffler Shuffler
	storage  Storage
	key      string
}

// New creates an iterator that starts at startIndex over totalLength indices.
// The start index counts as already playing: Pointer is 0 after construction.
//
// With WithStorage, a stored snapshot for the same start index and length is
// adopted as is. With WithExistingOrder, the given order is used instead of
// drawing a first chunk.
func New(startIndex, totalLength int, opts ...Option) (*Iterator, error) {
	o := newOptions(opts)

	if totalLength < 1 {
		return nil, errors.Wrapf(ErrInvalidConstruction, "total length must be at least 1, got %d", totalLength)
	}
	if startIndex < 0 || startIndex >= totalLength {
		return nil, errors.Wrapf(ErrInvalidConstruction, "start index %d out of range [0,%d)", startIndex, totalLength)
	}

	chunkSize := min(totalLength, MaxChunkSize)
	if o.chunkSize != nil {
		if *o.chunkSize < 1 {
			return nil, errors.Wrapf(ErrInvalidConstruction, "chunk size must be at least 1, got %d", *o.chunkSize)
		}
		chunkSize = min(*o.chunkSize, totalLength)
	}

	it := &Iterator{
		startIndex:  startIndex,
		totalLength: totalLength,
		chunkSize:   chunkSize,
		shuffler:    o.shuffler,
		storage:     o.storage,
		key:         o.key,
	}

	if o.existingOrder == nil && it.resumeFromStorage() {
		return it, nil
	}

	if o.existingOrder != nil {
		if err := validateOrder(o.existingOrder, startIndex, totalLength); err != nil {
			return nil, errors.Wrap(errors.Mark(err, ErrInvalidConstruction), "invalid existing order")
		}
		it.setOrder(o.existingOrder)
	} else {
		it.setOrder(it.firstChunk())
	}
	it.pointer = 0
	it.completed = false
	it.persist()

	return it, nil
}

// Restore rebuilds an iterator purely from the snapshot stored under key.
// It returns ErrNoSnapshot when nothing is stored.
func Restore(storage Storage, key string, opts ...Option) (*Iterator, error) {
	data, ok, err := storage.Get(key)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read snapshot %q", key)
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoSnapshot, "key %q", key)
	}

	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConstruction), "failed to decode snapshot")
	}
	if err := snap.Validate(); err != nil {
		return nil, errors.Wrap(errors.Mark(err, ErrInvalidConstruction), "invalid snapshot")
	}

	o := newOptions(opts)
	it := &Iterator{
		shuffler: o.shuffler,
		storage:  storage,
		key:      key,
	}
	it.adopt(snap)
	return it, nil
}

// Next advances the cursor and returns the next index. It returns -1 when the
// current chunk is exhausted (State reports whether more chunks remain) and
// marks the pass completed once every index has been visited.
func (it *Iterator) Next() int {
	switch {
	case it.pointer == -1:
		it.pointer = 0
		it.persist()
		return it.order[0]
	case it.pointer+1 < len(it.order):
		it.pointer++
		it.persist()
		return it.order[it.pointer]
	case len(it.order) < it.totalLength:
		return -1
	default:
		it.completed = true
		it.persist()
		return -1
	}
}

// Prev moves the cursor back and returns that index, or -1 at the start of the
// pass or after the pass completed.
func (it *Iterator) Prev() int {
	if it.completed || it.pointer <= 0 {
		return -1
	}
	it.pointer--
	it.persist()
	return it.order[it.pointer]
}

// State reports where the cursor stands relative to the generated order.
func (it *Iterator) State() State {
	return stateOf(it.pointer, len(it.order), it.totalLength)
}

// InitNextChunk appends up to ChunkSize indices drawn uniformly from those not
// yet in the order. It never moves the cursor and only draws once the current
// chunk is exhausted with indices left (StateHasEndedAndMoreChunks).
func (it *Iterator) InitNextChunk() {
	if st := it.State(); st != StateHasEndedAndMoreChunks {
		zlog.Debug().Msgf("shuffle: no chunk to draw: key=%s state=%s", it.key, st)
		return
	}

	pool := make([]int, 0, it.totalLength-len(it.order))
	for i := 0; i < it.totalLength; i++ {
		if _, drawn := it.seen[i]; !drawn {
			pool = append(pool, i)
		}
	}
	it.shuffler.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	for _, idx := range pool[:min(it.chunkSize, len(pool))] {
		it.order = append(it.order, idx)
		it.seen[idx] = struct{}{}
	}
	it.persist()
}

// ResetForRepeat rewinds the cursor to the start of the same order so the
// identical sequence replays. The start index counts as playing again.
func (it *Iterator) ResetForRepeat() {
	it.pointer = 0
	it.completed = false
	it.persist()
}

// InvalidateCurrent marks the current position as not yet consumed. The next
// call to Next restarts the pass at the start index without reshuffling.
func (it *Iterator) InvalidateCurrent() {
	it.pointer = -1
	it.completed = false
	it.persist()
}

// DetachStorage stops mirroring the state to storage. Later mutations stay in
// memory only.
func (it *Iterator) DetachStorage() {
	it.storage = nil
}

// Order returns a copy of the generated order.
func (it *Iterator) Order() []int {
	return slices.Clone(it.order)
}

// Pointer returns the cursor position within Order, or -1.
func (it *Iterator) Pointer() int {
	return it.pointer
}

// Current returns the index under the cursor, or -1 if nothing is playing.
func (it *Iterator) Current() int {
	if it.pointer < 0 {
		return -1
	}
	return it.order[it.pointer]
}

// StartIndex returns the index the pass started from.
func (it *Iterator) StartIndex() int {
	return it.startIndex
}

// TotalLength returns the number of indices in the playlist.
func (it *Iterator) TotalLength() int {
	return it.totalLength
}

// ChunkSize returns the number of indices drawn per chunk.
func (it *Iterator) ChunkSize() int {
	return it.chunkSize
}

// TotalPlayed returns how many tracks of the pass have been reached.
func (it *Iterator) TotalPlayed() int {
	if it.pointer < 0 {
		return 0
	}
	return it.pointer + 1
}

// Completed reports whether the full permutation has been exhausted.
func (it *Iterator) Completed() bool {
	return it.completed
}

// Snapshot returns the persisted form of the iterator state.
func (it *Iterator) Snapshot() Snapshot {
	return Snapshot{
		StartIndex:  it.startIndex,
		TotalLength: it.totalLength,
		ChunkSize:   it.chunkSize,
		Order:       it.Order(),
		Pointer:     it.pointer,
		Completed:   it.completed,
	}
}

// firstChunk shuffles every index but the start index and keeps the first
// chunkSize-1 of them behind it.
func (it *Iterator) firstChunk() []int {
	candidates := make([]int, 0, it.totalLength-1)
	for i := 0; i < it.totalLength; i++ {
		if i != it.startIndex {
			candidates = append(candidates, i)
		}
	}
	it.shuffler.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	order := make([]int, 0, it.chunkSize)
	order = append(order, it.startIndex)
	return append(order, candidates[:it.chunkSize-1]...)
}

func (it *Iterator) setOrder(order []int) {
	it.order = slices.Clone(order)
	it.seen = make(map[int]struct{}, len(it.order))
	for _, idx := range it.order {
		it.seen[idx] = struct{}{}
	}
}

// adopt replaces the whole state with a validated snapshot.
func (it *Iterator) adopt(snap Snapshot) {
	it.startIndex = snap.StartIndex
	it.totalLength = snap.TotalLength
	it.chunkSize = snap.ChunkSize
	it.setOrder(snap.Order)
	it.pointer = snap.Pointer
	it.completed = snap.Completed
}

// resumeFromStorage adopts a stored snapshot for the same playlist identity.
// Read or decode failures degrade to a fresh start.
func (it *Iterator) resumeFromStorage() bool {
	if it.storage == nil {
		return false
	}

	data, ok, err := it.storage.Get(it.key)
	if err != nil {
		zlog.Warn().Msgf("shuffle: failed to read snapshot, starting fresh: key=%s error=%v", it.key, err)
		return false
	}
	if !ok {
		return false
	}

	snap, err := UnmarshalSnapshot(data)
	if err != nil {
		zlog.Warn().Msgf("shuffle: ignoring unusable snapshot: key=%s error=%v", it.key, err)
		return false
	}
	if snap.StartIndex != it.startIndex || snap.TotalLength != it.totalLength {
		zlog.Info().Msgf("shuffle: snapshot belongs to another pass, starting fresh: key=%s start=%d length=%d",
			it.key, snap.StartIndex, snap.TotalLength)
		return false
	}
	if err := snap.Validate(); err != nil {
		zlog.Warn().Msgf("shuffle: ignoring unusable snapshot: key=%s error=%v", it.key, err)
		return false
	}

	it.adopt(snap)
	zlog.Debug().Msgf("shuffle: resumed from snapshot: key=%s pointer=%d drawn=%d/%d",
		it.key, it.pointer, len(it.order), it.totalLength)
	return true
}

// persist mirrors the state to storage. Failures are logged and ignored: the
// in-memory iterator stays authoritative.
func (it *Iterator) persist() {
	if it.storage == nil {
		return
	}
	if err := it.storage.Set(it.key, MarshalSnapshot(it.Snapshot())); err != nil {
		zlog.Warn().Msgf("shuffle: failed to persist snapshot: key=%s error=%v", it.key, err)
	}
}

// validateOrder checks an order against the iterator invariants.
func validateOrder(order []int, startIndex, totalLength int) error {
	if len(order) == 0 {
		return errors.New("order is empty")
	}
	if len(order) > totalLength {
		return errors.Newf("order has %d entries for %d tracks", len(order), totalLength)
	}
	if order[0] != startIndex {
		return errors.Newf("order starts with %d, want start index %d", order[0], startIndex)
	}

	// Sized by the order, never by totalLength, which may come from an
	// untrusted snapshot.
	seen := make(map[int]struct{}, len(order))
	for i, idx := range order {
		if idx < 0 || idx >= totalLength {
			return errors.Newf("order[%d] = %d out of range [0,%d)", i, idx, totalLength)
		}
		if _, dup := seen[idx]; dup {
			return errors.Newf("order[%d] = %d is a duplicate", i, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}
