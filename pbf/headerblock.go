package pbf

import (
	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/internal/varint"
	"github.com/osmpbf/streamreader/internal/wire"
	"github.com/osmpbf/streamreader/primitive"
)

// supportedFeatures is the set of required_features values this reader
// understands. A file declaring a required feature outside this set cannot
// be read correctly, so DecodeHeaderBlock fails (and with it the
// ProcessNextBlock call that reaches the header) rather than silently drop data.
var supportedFeatures = map[string]bool{
	"OsmSchema-V0.6": true,
	"DenseNodes":     true,
}

// HeaderBlock is the decoded contents of the file's single OSMHeader blob.
type HeaderBlock struct {
	Bounds       primitive.Bounds
	HasBounds    bool
	Required     []string
	Optional     []string
	Writingprogram string
}

// nanoDegree is the scale factor OSMHeader.HeaderBBox coordinates are
// encoded in (billionths of a degree), independent of any PrimitiveBlock's
// own granularity.
const nanoDegree = 1e9

// DecodeHeaderBlock parses an OSMHeader message and validates its declared
// required_features against supportedFeatures.
//
//	message HeaderBlock {
//	  optional HeaderBBox bbox = 1;
//	  repeated string required_features = 4;
//	  repeated string optional_features = 5;
//	  optional string writingprogram = 16;
//	}
//	message HeaderBBox {
//	  required sint64 left = 1;
//	  required sint64 right = 2;
//	  required sint64 top = 3;
//	  required sint64 bottom = 4;
//	}
func DecodeHeaderBlock(buf []byte) (HeaderBlock, error) {
	var hb HeaderBlock
	c := varint.NewCursor(buf)
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return HeaderBlock{}, err
		}
		switch fieldNum {
		case 1:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return HeaderBlock{}, err
			}
			bounds, err := decodeHeaderBBox(sub)
			if err != nil {
				return HeaderBlock{}, err
			}
			hb.Bounds = bounds
			hb.HasBounds = true
		case 4:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return HeaderBlock{}, err
			}
			feature := string(sub.Buf()[sub.Pos:sub.Limit])
			hb.Required = append(hb.Required, feature)
			if !supportedFeatures[feature] {
				return HeaderBlock{}, errs.ErrUnsupportedFeature
			}
		case 5:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return HeaderBlock{}, err
			}
			hb.Optional = append(hb.Optional, string(sub.Buf()[sub.Pos:sub.Limit]))
		case 16:
			sub, err := wire.ReadLengthDelimited(c)
			if err != nil {
				return HeaderBlock{}, err
			}
			hb.Writingprogram = string(sub.Buf()[sub.Pos:sub.Limit])
		default:
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return HeaderBlock{}, err
			}
		}
	}
	return hb, nil
}

func decodeHeaderBBox(c *varint.Cursor) (primitive.Bounds, error) {
	var left, right, top, bottom int64
	for !c.Done() {
		fieldNum, wireType, err := wire.ReadTag(c)
		if err != nil {
			return primitive.Bounds{}, err
		}
		if wireType != wire.Varint {
			if err := wire.SkipUnknown(c, wireType); err != nil {
				return primitive.Bounds{}, err
			}
			continue
		}
		v, err := varint.ReadVarSInt64(c)
		if err != nil {
			return primitive.Bounds{}, err
		}
		switch fieldNum {
		case 1:
			left = v
		case 2:
			right = v
		case 3:
			top = v
		case 4:
			bottom = v
		}
	}
	return primitive.Bounds{
		MinLon: float64(left) / nanoDegree,
		MaxLon: float64(right) / nanoDegree,
		MaxLat: float64(top) / nanoDegree,
		MinLat: float64(bottom) / nanoDegree,
	}, nil
}
