// Package hash provides a fast, non-cryptographic byte hash used to dedupe
// interned strings in the textual decoder.
package hash

import "github.com/cespare/xxhash/v2"

// ID computes the xxHash64 of the given string.
//
// The intern arena keys a hash->string map with this so repeated attribute
// values (tag keys, roles, usernames) are copied into the arena at most once.
func ID(data string) uint64 {
	return xxhash.Sum64String(data)
}

// Bytes computes the xxHash64 of the given byte slice.
func Bytes(data []byte) uint64 {
	return xxhash.Sum64(data)
}
