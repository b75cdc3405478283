// Package errs collects the sentinel errors the reader can return.
//
// Every error is a flat package-level sentinel; call sites wrap it with
// fmt.Errorf("...: %w", ...) to attach positional context (byte offset,
// field name, block index). errors.Is against one of these sentinels is
// always the right way to classify a failure.
package errs

import "errors"

// Format errors: ErrUnknownFormat is surfaced by Open; ErrUnsupportedFeature
// by the ProcessNextBlock call whose frames carry the offending blob.
var (
	// ErrUnknownFormat means the open-time probe matched neither the
	// binary PBF framing nor the textual element prefix.
	ErrUnknownFormat = errors.New("osmpbf: unrecognized input format")

	// ErrUnsupportedFeature means a required_features string in the
	// OSMHeader block names something other than OsmSchema-V0.6 or
	// DenseNodes, or a Blob carries an LZMA or bzip2 payload.
	ErrUnsupportedFeature = errors.New("osmpbf: unsupported required feature")
)

// Framing errors: surfaced while reading the blob header/length envelope.
var (
	ErrShortHeader     = errors.New("osmpbf: short blob header length prefix")
	ErrHeaderTooLarge  = errors.New("osmpbf: blob header exceeds 64KiB")
	ErrPayloadTooLarge = errors.New("osmpbf: blob payload exceeds 64MiB")
	ErrUnknownBlobType = errors.New("osmpbf: unknown blob type")
)

// Decode errors: surfaced while decoding a blob's wire content.
var (
	ErrTruncated              = errors.New("osmpbf: field crosses end of buffer")
	ErrMissingRequiredField   = errors.New("osmpbf: message is missing a required field")
	ErrBadWireType            = errors.New("osmpbf: unsupported wire type")
	ErrMalformedRelation      = errors.New("osmpbf: relation member arrays have unequal length")
	ErrOutOfRangeCoordinate   = errors.New("osmpbf: coordinate outside valid degree range")
	ErrStringIndexOutOfRange  = errors.New("osmpbf: string table index out of range")
	ErrDecompressFailed       = errors.New("osmpbf: blob decompression failed")
	ErrCompressedRatioTooHigh = errors.New("osmpbf: declared uncompressed size exceeds 100x compressed size")
	ErrInvalidGranularity     = errors.New("osmpbf: block granularity must be positive")
	ErrMismatchedTagArrays    = errors.New("osmpbf: tag key/value index arrays have unequal length")
)

// Textual-decoder errors; ErrInvalidMemberType is also returned by the binary
// relation decoder for an out-of-range member type.
var (
	ErrInternOverflow     = errors.New("osmpbf: textual intern arena exceeded capacity")
	ErrNestedEntityAttack = errors.New("osmpbf: too many scanner iterations without an element boundary")
	ErrInvalidMemberType  = errors.New("osmpbf: member type is not one of node, way, relation")
)

// Orchestrator errors.
var (
	ErrReaderClosed = errors.New("osmpbf: reader is closed")
	ErrReaderFailed = errors.New("osmpbf: reader is in a failed state; call Reset to continue")
)
