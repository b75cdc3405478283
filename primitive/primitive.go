// Package primitive holds the OSM primitive types the reader emits to
// callbacks: nodes, ways, relations, their shared Tag/Info metadata, and the
// one-shot Bounds record.
//
// All string fields (Tag.Key/Value, Info.UserSID, Member.Role, the textual
// form of a timestamp) are handed out under a borrow contract: they are
// valid until the next call that advances the reader past the enclosing
// block (binary) or past the element's end event (textual), and callers
// that need to retain them past the callback that received them must copy.
// The current decoders build them as Go strings copied out of the block's
// uncompressed buffer (binary) or the intern arena (textual).
package primitive

// Tag is a borrowed (key, value) string pair.
type Tag struct {
	Key   string
	Value string
}

// TimestampKind distinguishes the two representations Info.Timestamp can
// carry, since the binary path only ever sees a unix-seconds integer while
// the textual path may carry the original ISO-ish string verbatim.
type TimestampKind uint8

const (
	// TimestampNone means no timestamp was present.
	TimestampNone TimestampKind = iota
	// TimestampUnix means Unix holds unix seconds.
	TimestampUnix
	// TimestampText means Text holds a borrowed textual timestamp.
	TimestampText
)

// Timestamp is a tagged union over the two ways a primitive's modification
// time can be encoded.
type Timestamp struct {
	Kind TimestampKind
	Unix int64
	Text string
}

// Info is optional per-primitive metadata.
type Info struct {
	Present   bool
	Version   int32
	Changeset int64
	UID       int32
	UserSID   string
	Timestamp Timestamp
}

// Node is a point primitive.
type Node struct {
	ID   int64
	Lat  float64
	Lon  float64
	Info Info
	Tags []Tag
}

// Way is an ordered sequence of node references.
type Way struct {
	ID       int64
	Info     Info
	Tags     []Tag
	NodeRefs []int64
}

// MemberType is the kind of primitive a relation Member points to.
type MemberType uint8

const (
	MemberNode MemberType = iota
	MemberWay
	MemberRelation
)

// Member is one entry of a Relation's ordered member list.
type Member struct {
	RefID int64
	Role  string
	Type  MemberType
}

// Relation is an ordered sequence of typed, roled member references.
type Relation struct {
	ID      int64
	Info    Info
	Tags    []Tag
	Members []Member
}

// Bounds is the optional bounding box declared by a file. The textual reader
// delivers only the first <bounds> element. The binary reader delivers the
// bbox of every OSMHeader blob it decodes, in stream order, so it arrives
// once and before any primitive only when the file's single OSMHeader blob
// comes first.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// ValidCoordinate reports whether lat/lon fall within the valid degree range.
func ValidCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
