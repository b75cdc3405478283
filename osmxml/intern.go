package osmxml

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/hash"
)

// internCap bounds the textual decoder's intern arena. Every attribute
// string value (tag keys/values, roles, usernames, textual timestamps) the
// decoder keeps past its element's end event is copied in here once; a
// document that forces more distinct strings than this through the arena is
// treated as hostile rather than just large.
const internCap = 1024 * 1024

// arena is a small append-only byte buffer deduped by content hash, so a
// document repeating the same tag key or username thousands of times pays
// the copy cost once.
type arena struct {
	buf    []byte
	lookup map[uint64]string
}

func newArena() *arena {
	return &arena{
		buf:    make([]byte, 0, 4096),
		lookup: make(map[uint64]string, 256),
	}
}

// intern appends s to the arena, unless an identical string has already been
// interned, and returns a string holding those bytes. The string conversion
// copies them, so the returned string does not alias the arena buffer.
func (a *arena) intern(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	key := hash.ID(s)
	if existing, ok := a.lookup[key]; ok && existing == s {
		return existing, nil
	}
	if len(a.buf)+len(s) > internCap {
		return "", errs.ErrInternOverflow
	}
	start := len(a.buf)
	a.buf = append(a.buf, s...)
	out := string(a.buf[start : start+len(s)])
	a.lookup[key] = out
	return out, nil
}

// reset clears the arena for reuse across a new Open/Reset cycle.
func (a *arena) reset() {
	a.buf = a.buf[:0]
	for k := range a.lookup {
		delete(a.lookup, k)
	}
}
