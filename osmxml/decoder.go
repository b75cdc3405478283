// Package osmxml implements the textual (XML) sibling of the binary OSM PBF
// reader: a chunked, streaming event scanner producing the same primitive
// structures as the binary path, for extracts distributed as plain OSM XML.
package osmxml

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/osmpbf/streamreader/errs"
	"github.com/osmpbf/streamreader/primitive"
)

// chunkSize is the read buffer size the underlying token stream uses per
// refill, matching the binary reader's blob-sized I/O granularity.
const chunkSize = 64 * 1024

// maxTokensWithoutElement bounds how many raw tokens (mostly whitespace/text
// between elements) the scanner tolerates before giving up on a document
// that never produces an element boundary — the textual equivalent of a
// billion-laughs style attack.
const maxTokensWithoutElement = 64 * 1024

// maxNodeRefsPerWay caps how many <nd> children a single way accumulates.
// Real extracts never come close to this; a document that does is treated
// as malformed, and refs beyond the cap are dropped with a warning rather
// than aborting the whole parse (the binary path has no such cap, since its
// packed-delta array length is bounded by the blob size itself).
const maxNodeRefsPerWay = 1 << 20

// Emitter receives primitives as the decoder produces them, mirroring the
// binary reader's callback contract.
type Emitter struct {
	OnNodes    func([]primitive.Node)
	OnWay      func(primitive.Way)
	OnRelation func(primitive.Relation)
	OnBounds   func(primitive.Bounds)
}

// Decoder streams primitives out of a textual OSM document.
type Decoder struct {
	xd          *xml.Decoder
	arena       *arena
	emit        Emitter
	boundsSent  bool
	tokensSinceElement int
}

// New wraps r, reading in chunkSize-sized increments.
func New(r io.Reader, emit Emitter) *Decoder {
	return &Decoder{
		xd:    xml.NewDecoder(bufio.NewReaderSize(r, chunkSize)),
		arena: newArena(),
		emit:  emit,
	}
}

// Run drives the decoder to completion, invoking the configured Emitter
// callbacks as primitives close. Returns nil at a clean end of document.
func (d *Decoder) Run() error {
	for {
		tok, err := d.xd.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("osmxml: reading token: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			d.tokensSinceElement = 0
			if err := d.handleStart(el); err != nil {
				return err
			}
		case xml.EndElement:
			d.tokensSinceElement = 0
		default:
			if err := d.countToken(); err != nil {
				return err
			}
		}
	}
}

func (d *Decoder) handleStart(el xml.StartElement) error {
	switch el.Name.Local {
	case "bounds":
		return d.handleBounds(el)
	case "node":
		return d.handleNode(el)
	case "way":
		return d.handleWay(el)
	case "relation":
		return d.handleRelation(el)
	}
	return nil
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseInt32(s string) int32 {
	v, _ := strconv.ParseInt(s, 10, 32)
	return int32(v)
}

func (d *Decoder) handleBounds(el xml.StartElement) error {
	if d.boundsSent {
		return nil
	}
	var b primitive.Bounds
	if box, ok := attr(el, "box"); ok {
		parts := strings.Split(box, ",")
		if len(parts) == 4 {
			b.MinLon = parseFloat(parts[0])
			b.MinLat = parseFloat(parts[1])
			b.MaxLon = parseFloat(parts[2])
			b.MaxLat = parseFloat(parts[3])
		}
	} else {
		if v, ok := attr(el, "minlon"); ok {
			b.MinLon = parseFloat(v)
		}
		if v, ok := attr(el, "minlat"); ok {
			b.MinLat = parseFloat(v)
		}
		if v, ok := attr(el, "maxlon"); ok {
			b.MaxLon = parseFloat(v)
		}
		if v, ok := attr(el, "maxlat"); ok {
			b.MaxLat = parseFloat(v)
		}
	}
	d.boundsSent = true
	if d.emit.OnBounds != nil {
		d.emit.OnBounds(b)
	}
	return nil
}

func (d *Decoder) infoFromAttrs(el xml.StartElement) (primitive.Info, error) {
	info := primitive.Info{Version: -1}
	haveAny := false
	if v, ok := attr(el, "version"); ok {
		info.Version = parseInt32(v)
		haveAny = true
	}
	if v, ok := attr(el, "changeset"); ok {
		info.Changeset = parseInt64(v)
		haveAny = true
	}
	if v, ok := attr(el, "uid"); ok {
		info.UID = parseInt32(v)
		haveAny = true
	}
	if v, ok := attr(el, "user"); ok {
		s, err := d.arena.intern(v)
		if err != nil {
			return primitive.Info{}, err
		}
		info.UserSID = s
		haveAny = true
	}
	if v, ok := attr(el, "timestamp"); ok {
		s, err := d.arena.intern(v)
		if err != nil {
			return primitive.Info{}, err
		}
		info.Timestamp = primitive.Timestamp{Kind: primitive.TimestampText, Text: s}
		haveAny = true
	}
	info.Present = haveAny
	return info, nil
}

func (d *Decoder) readTags(startName string) ([]primitive.Tag, error) {
	var tags []primitive.Tag
	for {
		tok, err := d.xd.Token()
		if err != nil {
			return nil, fmt.Errorf("osmxml: reading %s children: %w", startName, err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			d.tokensSinceElement = 0
			if el.Name.Local == "tag" {
				k, _ := attr(el, "k")
				v, _ := attr(el, "v")
				ik, err := d.arena.intern(k)
				if err != nil {
					return nil, err
				}
				iv, err := d.arena.intern(v)
				if err != nil {
					return nil, err
				}
				tags = append(tags, primitive.Tag{Key: ik, Value: iv})
				if err := d.xd.Skip(); err != nil {
					return nil, err
				}
			} else {
				if err := d.xd.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			d.tokensSinceElement = 0
			if el.Name.Local == startName {
				return tags, nil
			}
		default:
			if err := d.countToken(); err != nil {
				return nil, err
			}
		}
	}
}

// countToken increments the nested-entity-attack counter for a token that is
// neither a StartElement nor an EndElement, returning ErrNestedEntityAttack
// once the cap is exceeded. Every token-reading loop in this decoder — the
// top-level Run loop and the per-primitive child loops below — must call
// this for any token it doesn't already reset the counter for, so a flood of
// non-element tokens can't defeat the cap by hiding one level deeper than
// the document root.
func (d *Decoder) countToken() error {
	d.tokensSinceElement++
	if d.tokensSinceElement > maxTokensWithoutElement {
		return errs.ErrNestedEntityAttack
	}
	return nil
}

func (d *Decoder) handleNode(el xml.StartElement) error {
	var n primitive.Node
	if v, ok := attr(el, "id"); ok {
		n.ID = parseInt64(v)
	}
	if v, ok := attr(el, "lat"); ok {
		n.Lat = parseFloat(v)
	}
	if v, ok := attr(el, "lon"); ok {
		n.Lon = parseFloat(v)
	}
	if !primitive.ValidCoordinate(n.Lat, n.Lon) {
		return errs.ErrOutOfRangeCoordinate
	}
	info, err := d.infoFromAttrs(el)
	if err != nil {
		return err
	}
	n.Info = info

	tags, err := d.readTagsAndChildren("node")
	if err != nil {
		return err
	}
	n.Tags = tags

	if d.emit.OnNodes != nil {
		d.emit.OnNodes([]primitive.Node{n})
	}
	return nil
}

// readTagsAndChildren consumes a node/way/relation's children generically,
// collecting <tag> entries and letting the caller hook in element-specific
// children (<nd>, <member>) via the returned raw element list is avoided in
// favor of direct per-kind handlers below; this helper is used by the plain
// <node> case, which has no other child kinds.
func (d *Decoder) readTagsAndChildren(startName string) ([]primitive.Tag, error) {
	return d.readTags(startName)
}

func (d *Decoder) handleWay(el xml.StartElement) error {
	var w primitive.Way
	if v, ok := attr(el, "id"); ok {
		w.ID = parseInt64(v)
	}
	info, err := d.infoFromAttrs(el)
	if err != nil {
		return err
	}
	w.Info = info

	for {
		tok, err := d.xd.Token()
		if err != nil {
			return fmt.Errorf("osmxml: reading way children: %w", err)
		}
		switch e := tok.(type) {
		case xml.StartElement:
			d.tokensSinceElement = 0
			switch e.Name.Local {
			case "nd":
				if v, ok := attr(e, "ref"); ok {
					if len(w.NodeRefs) >= maxNodeRefsPerWay {
						log.Printf("osmxml: way %d exceeds %d node refs, truncating", w.ID, maxNodeRefsPerWay)
					} else {
						w.NodeRefs = append(w.NodeRefs, parseInt64(v))
					}
				}
				if err := d.xd.Skip(); err != nil {
					return err
				}
			case "tag":
				k, _ := attr(e, "k")
				v, _ := attr(e, "v")
				ik, err := d.arena.intern(k)
				if err != nil {
					return err
				}
				iv, err := d.arena.intern(v)
				if err != nil {
					return err
				}
				w.Tags = append(w.Tags, primitive.Tag{Key: ik, Value: iv})
				if err := d.xd.Skip(); err != nil {
					return err
				}
			default:
				if err := d.xd.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			d.tokensSinceElement = 0
			if e.Name.Local == "way" {
				if d.emit.OnWay != nil {
					d.emit.OnWay(w)
				}
				return nil
			}
		default:
			if err := d.countToken(); err != nil {
				return err
			}
		}
	}
}

func parseMemberType(s string) (primitive.MemberType, error) {
	switch s {
	case "node":
		return primitive.MemberNode, nil
	case "way":
		return primitive.MemberWay, nil
	case "relation":
		return primitive.MemberRelation, nil
	default:
		return 0, errs.ErrInvalidMemberType
	}
}

func (d *Decoder) handleRelation(el xml.StartElement) error {
	var r primitive.Relation
	if v, ok := attr(el, "id"); ok {
		r.ID = parseInt64(v)
	}
	info, err := d.infoFromAttrs(el)
	if err != nil {
		return err
	}
	r.Info = info

	for {
		tok, err := d.xd.Token()
		if err != nil {
			return fmt.Errorf("osmxml: reading relation children: %w", err)
		}
		switch e := tok.(type) {
		case xml.StartElement:
			d.tokensSinceElement = 0
			switch e.Name.Local {
			case "member":
				typeStr, _ := attr(e, "type")
				memberType, err := parseMemberType(typeStr)
				if err != nil {
					return err
				}
				refStr, _ := attr(e, "ref")
				roleStr, _ := attr(e, "role")
				role, err := d.arena.intern(roleStr)
				if err != nil {
					return err
				}
				r.Members = append(r.Members, primitive.Member{
					RefID: parseInt64(refStr),
					Role:  role,
					Type:  memberType,
				})
				if err := d.xd.Skip(); err != nil {
					return err
				}
			case "tag":
				k, _ := attr(e, "k")
				v, _ := attr(e, "v")
				ik, err := d.arena.intern(k)
				if err != nil {
					return err
				}
				iv, err := d.arena.intern(v)
				if err != nil {
					return err
				}
				r.Tags = append(r.Tags, primitive.Tag{Key: ik, Value: iv})
				if err := d.xd.Skip(); err != nil {
					return err
				}
			default:
				if err := d.xd.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			d.tokensSinceElement = 0
			if e.Name.Local == "relation" {
				if d.emit.OnRelation != nil {
					d.emit.OnRelation(r)
				}
				return nil
			}
		default:
			if err := d.countToken(); err != nil {
				return err
			}
		}
	}
}
