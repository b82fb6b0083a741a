package offset

// Store keeps the byte offset of already consumed content per logical file key.
// Implementations must be safe for concurrent use by unrelated keys.
type Store interface {
	// Get returns the stored offset for key
	// Returns 0 if no offset is stored (read from the beginning)
	Get(key string) uint64

	// Set stores the offset for key, overwriting any previous value
	Set(key string, offset uint64)

	// Delete removes the offset for key
	Delete(key string)

	// List returns a snapshot of all stored offsets
	List() map[string]uint64

	// Len returns the number of stored offsets
	Len() int
}
