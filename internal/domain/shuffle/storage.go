package shuffle

// Storage is the synchronous key-value store snapshots are written to.
// Get reports false when nothing is stored under key.
type Storage interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
}
