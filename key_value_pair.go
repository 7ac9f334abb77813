package strata

// KeyValuePair is a tuple, 'used by caches and stores to let caller code pair a
// key with its value in bulk operations.
type KeyValuePair[TK any, TV any] struct {
	Key   TK
	Value TV
}
