package core

import (
	"fmt"
	"strconv"

	digest "github.com/opencontainers/go-digest"
)

// Int2 is a pair of int32 values.
type Int2 struct{ X, Y int32 }

// Int3 is a triple of int32 values.
type Int3 struct{ X, Y, Z int32 }

// Byte3 is a triple of bytes.
type Byte3 struct{ X, Y, Z uint8 }

// Vec2 is a 2-component float32 vector.
type Vec2 struct{ X, Y float32 }

// Vec3 is a 3-component float32 vector.
type Vec3 struct{ X, Y, Z float32 }

// Vec4 is a 4-component float32 vector.
type Vec4 struct{ X, Y, Z, W float32 }

// ID is an identifier from the ID lookback table. It is either a plain
// number or an interned string.
type ID struct {
	number   uint32
	str      string
	isString bool
}

// NumberID returns a numeric identifier.
func NumberID(n uint32) ID {
	return ID{number: n}
}

// StringID returns a string identifier.
func StringID(s string) ID {
	return ID{str: s, isString: true}
}

// IsString reports whether the identifier is a string.
func (id ID) IsString() bool { return id.isString }

// Number returns the numeric value and whether the identifier is numeric.
func (id ID) Number() (uint32, bool) {
	return id.number, !id.isString
}

// String returns the string form. Numeric identifiers are formatted in decimal.
func (id ID) String() string {
	if id.isString {
		return id.str
	}
	return strconv.FormatUint(uint64(id.number), 10)
}

// Ident names an asset: its identifier, collection and author.
type Ident struct {
	ID         string
	Collection ID
	Author     string
}

func (i Ident) String() string {
	return fmt.Sprintf("(%q, %q, %q)", i.ID, i.Collection, i.Author)
}

// CollectionName returns the name of the identifier's collection. String
// collections are returned as is; numeric ones go through CollectionName.
func (i Ident) CollectionName() (string, bool) {
	if n, ok := i.Collection.Number(); ok {
		return CollectionName(n)
	}
	return i.Collection.String(), true
}

var collections = map[uint32]string{
	0: "Speed", 1: "Alpine", 2: "Rally", 3: "Island", 4: "Bay", 5: "Coast",
	6: "Stadium", 7: "Basic", 8: "Plain", 9: "Moon", 10: "Toy", 11: "Valley",
	12: "Canyon", 13: "Lagoon", 14: "Deprecated_Arena",
	17: "TMCommon", 18: "Canyon4", 19: "Canyon256", 20: "Valley4", 21: "Valley256",
	22: "Lagoon4", 23: "Lagoon256", 24: "Stadium4", 25: "Stadium256", 26: "Stadium2020",
	100: "History", 101: "Society", 102: "Galaxy",
	200: "Gothic", 201: "Paris", 202: "Storm", 203: "Cryo",
	204: "Meteor", 205: "Meteor4", 206: "Meteor256", 299: "SMCommon",
	10000: "Vehicles", 10001: "Orbital", 10002: "Actors", 10003: "Common",
}

// CollectionName returns the well-known name of a numeric collection ID.
func CollectionName(id uint32) (string, bool) {
	name, ok := collections[id]
	return name, ok
}

// Locator points at a file outside the container.
type Locator struct {
	Version  uint8
	Checksum []byte // 32 bytes when Version >= 3
	Path     string
	URL      string
}

// HasChecksum reports whether a non-zero checksum is recorded.
func (l Locator) HasChecksum() bool {
	for _, b := range l.Checksum {
		if b != 0 {
			return true
		}
	}
	return false
}

// Digest returns the checksum as a sha256 digest, or "" when none is recorded.
func (l Locator) Digest() digest.Digest {
	if len(l.Checksum) != checksumSize || !l.HasChecksum() {
		return ""
	}
	return digest.NewDigestFromBytes(digest.SHA256, l.Checksum)
}

const checksumSize = 32
