package shuffle

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identity leaves the candidate pool in ascending order.
var identity = ShufflerFunc(func(int, func(i, j int)) {})

// reverse reverses the candidate pool.
var reverse = ShufflerFunc(func(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
})

type memStorage struct {
	data map[string][]byte
	sets int
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (m *memStorage) Get(key string) ([]byte, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStorage) Set(key string, value []byte) error {
	m.sets++
	m.data[key] = value
	return nil
}

type failingStorage struct{}

func (failingStorage) Get(string) ([]byte, bool, error) { return nil, false, errors.New("disk on fire") }
func (failingStorage) Set(string, []byte) error         { return errors.New("disk on fire") }

// assertInvariants checks the properties that hold in every reachable state.
func assertInvariants(t *testing.T, it *Iterator) {
	t.Helper()
	order := it.Order()

	require.NotEmpty(t, order)
	assert.Equal(t, it.StartIndex(), order[0])
	assert.LessOrEqual(t, len(order), it.TotalLength())

	seen := make(map[int]bool)
	for _, idx := range order {
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, it.TotalLength())
		assert.False(t, seen[idx], "duplicate index %d", idx)
		seen[idx] = true
	}

	assert.GreaterOrEqual(t, it.Pointer(), -1)
	assert.Less(t, it.Pointer(), len(order))
	assert.Equal(t, max(it.Pointer()+1, 0), it.TotalPlayed())
	assert.Equal(t, stateOf(it.Pointer(), len(order), it.TotalLength()), it.State())
	if it.Completed() {
		assert.Equal(t, it.TotalLength(), len(order))
		assert.Equal(t, len(order)-1, it.Pointer())
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		startIndex  int
		totalLength int
		opts        []Option
	}{
		{name: "zero length", startIndex: 0, totalLength: 0},
		{name: "negative start", startIndex: -1, totalLength: 5},
		{name: "start past end", startIndex: 5, totalLength: 5},
		{name: "zero chunk size", startIndex: 0, totalLength: 5, opts: []Option{WithChunkSize(0)}},
		{name: "order not starting at start index", startIndex: 0, totalLength: 5, opts: []Option{WithExistingOrder([]int{1, 0})}},
		{name: "order with duplicate", startIndex: 0, totalLength: 5, opts: []Option{WithExistingOrder([]int{0, 2, 2})}},
		{name: "order out of range", startIndex: 0, totalLength: 5, opts: []Option{WithExistingOrder([]int{0, 5})}},
		{name: "empty order", startIndex: 0, totalLength: 5, opts: []Option{WithExistingOrder([]int{})}},
		{name: "order longer than playlist", startIndex: 0, totalLength: 2, opts: []Option{WithExistingOrder([]int{0, 1, 2})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := New(tt.startIndex, tt.totalLength, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, it)
			assert.True(t, errors.Is(err, ErrInvalidConstruction), "got %v", err)
		})
	}
}

func TestNew_FirstChunk(t *testing.T) {
	tests := []struct {
		name        string
		startIndex  int
		totalLength int
		opts        []Option
		expected    []int
	}{
		{
			name:        "default chunk covers small playlist",
			startIndex:  2,
			totalLength: 5,
			expected:    []int{2, 0, 1, 3, 4},
		},
		{
			name:        "explicit chunk size truncates",
			startIndex:  0,
			totalLength: 6,
			opts:        []Option{WithChunkSize(2)},
			expected:    []int{0, 1},
		},
		{
			name:        "chunk larger than playlist is clamped",
			startIndex:  1,
			totalLength: 3,
			opts:        []Option{WithChunkSize(50)},
			expected:    []int{1, 0, 2},
		},
		{
			name:        "shuffler decides candidate order",
			startIndex:  0,
			totalLength: 5,
			opts:        []Option{WithShuffler(reverse), WithChunkSize(3)},
			expected:    []int{0, 4, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]Option{WithShuffler(identity)}, tt.opts...)
			it, err := New(tt.startIndex, tt.totalLength, opts...)
			require.NoError(t, err)

			assert.Equal(t, tt.expected, it.Order())
			assert.Equal(t, 0, it.Pointer())
			assert.Equal(t, 1, it.TotalPlayed())
			assert.False(t, it.Completed())
			assertInvariants(t, it)
		})
	}
}

func TestNew_DefaultChunkSizeIsCapped(t *testing.T) {
	it, err := New(7, 1000, WithShuffler(NewSeededShuffler(42)))
	require.NoError(t, err)

	assert.Equal(t, MaxChunkSize, it.ChunkSize())
	assert.Len(t, it.Order(), MaxChunkSize)
	assertInvariants(t, it)
}

func TestIterator_SingleTrack(t *testing.T) {
	// Scenario A
	it, err := New(0, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, it.Order())
	assert.Equal(t, StateHasEndedNoChunks, it.State())

	assert.Equal(t, -1, it.Next())
	assert.True(t, it.Completed())
	assert.Equal(t, -1, it.Prev())
	assert.Equal(t, -1, it.Prev())
	assertInvariants(t, it)
}

func TestIterator_Chunked(t *testing.T) {
	// Scenario B
	it, err := New(0, 6, WithChunkSize(2))
	require.NoError(t, err)
	assert.Len(t, it.Order(), 2)

	next := it.Next()
	assert.GreaterOrEqual(t, next, 1)
	assert.Less(t, next, 6)
	assert.Equal(t, 1, it.Pointer())

	assert.Equal(t, -1, it.Next())
	assert.Equal(t, StateHasEndedAndMoreChunks, it.State())
	assert.Equal(t, 1, it.Pointer(), "exhausted chunk must not move the cursor")
	assert.False(t, it.Completed())

	it.InitNextChunk()
	assert.Len(t, it.Order(), 4)
	assert.Equal(t, 1, it.Pointer())
	assert.Equal(t, StateCanContinueChunk, it.State())
	assertInvariants(t, it)
}

func TestIterator_FullPass(t *testing.T) {
	// Scenario C
	order := []int{0, 2, 4, 6, 3, 5, 7, 8, 9, 1}
	it, err := New(0, 10, WithExistingOrder(order))
	require.NoError(t, err)

	var got []int
	for {
		idx := it.Next()
		if idx == -1 {
			break
		}
		got = append(got, idx)
		assertInvariants(t, it)
	}

	assert.Equal(t, []int{2, 4, 6, 3, 5, 7, 8, 9, 1}, got)
	assert.True(t, it.Completed())
	assert.Equal(t, StateHasEndedNoChunks, it.State())
	assert.Equal(t, 10, it.TotalPlayed())

	// Scenario D
	assert.Equal(t, -1, it.Prev())
	assert.Equal(t, 9, it.Pointer())

	it.ResetForRepeat()
	assert.Equal(t, 0, it.Pointer())
	assert.False(t, it.Completed())
	assert.Equal(t, order, it.Order())
	assert.Equal(t, 2, it.Next())
	assert.Equal(t, 4, it.Next())
	assertInvariants(t, it)
}

func TestIterator_Prev(t *testing.T) {
	it, err := New(0, 5, WithExistingOrder([]int{0, 3, 1, 4, 2}))
	require.NoError(t, err)

	assert.Equal(t, -1, it.Prev(), "prev at the first track is a no-op")
	assert.Equal(t, 0, it.Pointer())

	assert.Equal(t, 3, it.Next())
	assert.Equal(t, 1, it.Next())
	assert.Equal(t, 3, it.TotalPlayed())

	assert.Equal(t, 3, it.Prev())
	assert.Equal(t, 2, it.TotalPlayed())
	assert.Equal(t, 0, it.Prev())
	assert.Equal(t, 1, it.TotalPlayed())
	assert.Equal(t, -1, it.Prev())
	assert.Equal(t, 0, it.Pointer())

	assert.Equal(t, 3, it.Next(), "forward after backward replays the same order")
	assertInvariants(t, it)
}

func TestIterator_InitNextChunk(t *testing.T) {
	it, err := New(3, 10, WithChunkSize(4), WithShuffler(identity))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 0, 1, 2}, it.Order())

	for it.Next() != -1 {
	}
	require.Equal(t, StateHasEndedAndMoreChunks, it.State())

	it.InitNextChunk()
	assert.Equal(t, []int{3, 0, 1, 2, 4, 5, 6, 7}, it.Order())

	for it.Next() != -1 {
	}
	it.InitNextChunk()
	assert.Equal(t, []int{3, 0, 1, 2, 4, 5, 6, 7, 8, 9}, it.Order(), "last chunk takes only what is left")

	it.InitNextChunk()
	assert.Len(t, it.Order(), 10, "full order is left untouched")
	assertInvariants(t, it)
}

func TestIterator_InitNextChunkMidChunk(t *testing.T) {
	it, err := New(0, 10, WithChunkSize(4), WithShuffler(identity))
	require.NoError(t, err)

	it.InitNextChunk()
	assert.Equal(t, []int{0, 1, 2, 3}, it.Order(), "no draw while the chunk can continue")

	it.Next()
	it.InvalidateCurrent()
	it.InitNextChunk()
	assert.Len(t, it.Order(), 4, "no draw with nothing playing")
	assertInvariants(t, it)
}

func TestIterator_InitNextChunkGrowth(t *testing.T) {
	it, err := New(11, 257, WithChunkSize(37), WithShuffler(NewSeededShuffler(7)))
	require.NoError(t, err)

	for len(it.Order()) < it.TotalLength() {
		before := len(it.Order())
		for it.Next() != -1 {
		}
		it.InitNextChunk()
		assert.Equal(t, before+min(37, 257-before), len(it.Order()))
		assertInvariants(t, it)
	}

	for it.Next() != -1 {
	}
	assert.True(t, it.Completed())
	assert.Equal(t, 257, it.TotalPlayed())
}

func TestIterator_InvalidateCurrent(t *testing.T) {
	it, err := New(0, 4, WithExistingOrder([]int{0, 2, 1, 3}))
	require.NoError(t, err)
	it.Next()
	it.Next()

	it.InvalidateCurrent()
	assert.Equal(t, -1, it.Pointer())
	assert.Equal(t, -1, it.Current())
	assert.Equal(t, 0, it.TotalPlayed())
	assert.Equal(t, StateCanContinueChunk, it.State())
	assert.Equal(t, -1, it.Prev())

	assert.Equal(t, 0, it.Next())
	assert.Equal(t, 0, it.Pointer())
	assert.Equal(t, 2, it.Next())
	assertInvariants(t, it)
}

func TestIterator_InvalidateAfterCompletion(t *testing.T) {
	it, err := New(1, 2, WithShuffler(identity))
	require.NoError(t, err)
	assert.Equal(t, 0, it.Next())
	assert.Equal(t, -1, it.Next())
	require.True(t, it.Completed())

	it.InvalidateCurrent()
	assert.False(t, it.Completed())
	assert.Equal(t, 1, it.Next())
	assertInvariants(t, it)
}

func TestIterator_Persistence(t *testing.T) {
	store := newMemStorage()
	it, err := New(0, 6, WithChunkSize(3), WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, 1, store.sets, "construction persists")

	it.Next()
	it.Next()
	assert.Equal(t, -1, it.Next(), "no-op navigation does not persist")
	assert.Equal(t, 3, store.sets)
	it.InitNextChunk()
	it.Prev()
	assert.Equal(t, 5, store.sets)

	snap, err := UnmarshalSnapshot(store.data["session"])
	require.NoError(t, err)
	assert.Equal(t, it.Snapshot(), snap)

	resumed, err := New(0, 6, WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, it.Order(), resumed.Order())
	assert.Equal(t, 1, resumed.Pointer())
	assert.Equal(t, 3, resumed.ChunkSize())
	assert.Equal(t, it.Next(), resumed.Next())
}

func TestIterator_PersistenceIdentityMismatch(t *testing.T) {
	store := newMemStorage()
	_, err := New(0, 6, WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)

	it, err := New(2, 6, WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, 2, it.StartIndex())
	assert.Equal(t, []int{2, 0, 1, 3, 4, 5}, it.Order())
}

func TestIterator_ExistingOrderWinsOverSnapshot(t *testing.T) {
	store := newMemStorage()
	first, err := New(0, 4, WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)
	first.Next()

	it, err := New(0, 4, WithExistingOrder([]int{0, 3}), WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3}, it.Order())
	assert.Equal(t, 0, it.Pointer())
}

func TestIterator_CorruptSnapshotStartsFresh(t *testing.T) {
	store := newMemStorage()
	store.data["session"] = []byte{0xff, 0xff, 0xff}

	it, err := New(0, 3, WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, it.Order())
}

func TestIterator_PersistenceFailureIsIgnored(t *testing.T) {
	it, err := New(0, 3, WithShuffler(identity), WithStorage(failingStorage{}, "session"))
	require.NoError(t, err)

	assert.Equal(t, 1, it.Next())
	assert.Equal(t, 2, it.Next())
	assert.Equal(t, 1, it.Prev())
	assertInvariants(t, it)
}

func TestRestore(t *testing.T) {
	store := newMemStorage()

	_, err := Restore(store, "missing")
	assert.True(t, errors.Is(err, ErrNoSnapshot))

	it, err := New(4, 8, WithChunkSize(3), WithStorage(store, "session"))
	require.NoError(t, err)
	it.Next()

	restored, err := Restore(store, "session")
	require.NoError(t, err)
	assert.Equal(t, it.Snapshot(), restored.Snapshot())

	store.data["bad"] = MarshalSnapshot(Snapshot{StartIndex: 0, TotalLength: 2, ChunkSize: 2, Order: []int{1}})
	_, err = Restore(store, "bad")
	assert.True(t, errors.Is(err, ErrInvalidConstruction))

	_, err = Restore(failingStorage{}, "session")
	assert.Error(t, err)
}

func TestRestore_OversizedSnapshot(t *testing.T) {
	store := newMemStorage()
	store.data["session"] = MarshalSnapshot(Snapshot{TotalLength: 1 << 62, ChunkSize: 1, Order: []int{0}})

	restored, err := Restore(store, "session")
	require.NoError(t, err)
	assert.Equal(t, 1<<62, restored.TotalLength())
	assert.Equal(t, []int{0}, restored.Order())

	it, err := New(0, 5, WithShuffler(identity), WithStorage(store, "session"))
	require.NoError(t, err)
	assert.Equal(t, 5, it.TotalLength())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, it.Order(), "oversized snapshot is ignored")
	assertInvariants(t, it)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "can_continue_chunk", StateCanContinueChunk.String())
	assert.Equal(t, "has_ended_and_more_chunks", StateHasEndedAndMoreChunks.String())
	assert.Equal(t, "has_ended_no_chunks", StateHasEndedNoChunks.String())
	assert.Equal(t, "unknown", State(42).String())
}
