// Package pmtiles reads PMTiles v3 archive headers so base layers backed by
// a local archive can inherit its zoom range, bounds and tile format.
//
// Spec: https://github.com/protomaps/PMTiles/blob/main/spec/v3/spec.md
package pmtiles

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/paulmach/orb"
)

// Compression is the compression algorithm applied to individual tiles.
type Compression uint8

const (
	UnknownCompression Compression = 0
	NoCompression      Compression = 1
	Gzip               Compression = 2
	Brotli             Compression = 3
	Zstd               Compression = 4
)

// TileType is the format of individual tile contents.
type TileType uint8

const (
	UnknownTileType TileType = 0
	Mvt             TileType = 1
	Png             TileType = 2
	Jpeg            TileType = 3
	Webp            TileType = 4
	Avif            TileType = 5
)

// String returns the short name used in layer definitions.
func (t TileType) String() string {
	switch t {
	case Mvt:
		return "mvt"
	case Png:
		return "png"
	case Jpeg:
		return "jpg"
	case Webp:
		return "webp"
	case Avif:
		return "avif"
	}
	return "unknown"
}

// Raster reports whether tiles are images rather than vector tiles.
func (t TileType) Raster() bool {
	return t == Png || t == Jpeg || t == Webp || t == Avif
}

// HeaderLen is the size of the fixed binary header.
const HeaderLen = 127

var (
	ErrShortHeader = errors.New("pmtiles: buffer too small for header")
	ErrNotPMTiles  = errors.New("pmtiles: magic number not detected")
)

// Header is the fixed header of a PMTiles v3 archive.
type Header struct {
	SpecVersion         uint8
	RootOffset          uint64
	RootLength          uint64
	MetadataOffset      uint64
	MetadataLength      uint64
	LeafDirectoryOffset uint64
	LeafDirectoryLength uint64
	TileDataOffset      uint64
	TileDataLength      uint64
	AddressedTilesCount uint64
	TileEntriesCount    uint64
	TileContentsCount   uint64
	Clustered           bool
	InternalCompression Compression
	TileCompression     Compression
	TileType            TileType
	MinZoom             uint8
	MaxZoom             uint8
	MinLonE7            int32
	MinLatE7            int32
	MaxLonE7            int32
	MaxLatE7            int32
	CenterZoom          uint8
	CenterLonE7         int32
	CenterLatE7         int32
}

// Bound returns the archive bounds in lon/lat degrees.
func (h Header) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(h.MinLonE7) / 1e7, float64(h.MinLatE7) / 1e7},
		Max: orb.Point{float64(h.MaxLonE7) / 1e7, float64(h.MaxLatE7) / 1e7},
	}
}

// Center returns the suggested initial view centre in lon/lat degrees.
func (h Header) Center() orb.Point {
	return orb.Point{float64(h.CenterLonE7) / 1e7, float64(h.CenterLatE7) / 1e7}
}

// ParseHeader decodes the binary header at the start of an archive.
func ParseHeader(d []byte) (Header, error) {
	h := Header{}
	if len(d) < HeaderLen {
		return h, ErrShortHeader
	}
	if string(d[0:7]) != "PMTiles" {
		return h, ErrNotPMTiles
	}

	le := binary.LittleEndian
	h.SpecVersion = d[7]
	h.RootOffset = le.Uint64(d[8:16])
	h.RootLength = le.Uint64(d[16:24])
	h.MetadataOffset = le.Uint64(d[24:32])
	h.MetadataLength = le.Uint64(d[32:40])
	h.LeafDirectoryOffset = le.Uint64(d[40:48])
	h.LeafDirectoryLength = le.Uint64(d[48:56])
	h.TileDataOffset = le.Uint64(d[56:64])
	h.TileDataLength = le.Uint64(d[64:72])
	h.AddressedTilesCount = le.Uint64(d[72:80])
	h.TileEntriesCount = le.Uint64(d[80:88])
	h.TileContentsCount = le.Uint64(d[88:96])
	h.Clustered = d[96] == 0x1
	h.InternalCompression = Compression(d[97])
	h.TileCompression = Compression(d[98])
	h.TileType = TileType(d[99])
	h.MinZoom = d[100]
	h.MaxZoom = d[101]
	h.MinLonE7 = int32(le.Uint32(d[102:106]))
	h.MinLatE7 = int32(le.Uint32(d[106:110]))
	h.MaxLonE7 = int32(le.Uint32(d[110:114]))
	h.MaxLatE7 = int32(le.Uint32(d[114:118]))
	h.CenterZoom = d[118]
	h.CenterLonE7 = int32(le.Uint32(d[119:123]))
	h.CenterLatE7 = int32(le.Uint32(d[123:127]))

	return h, nil
}

// Bytes encodes the header. Used to write fixtures and archive stubs.
func (h Header) Bytes() []byte {
	b := make([]byte, HeaderLen)
	copy(b[0:7], "PMTiles")

	le := binary.LittleEndian
	b[7] = 3
	le.PutUint64(b[8:16], h.RootOffset)
	le.PutUint64(b[16:24], h.RootLength)
	le.PutUint64(b[24:32], h.MetadataOffset)
	le.PutUint64(b[32:40], h.MetadataLength)
	le.PutUint64(b[40:48], h.LeafDirectoryOffset)
	le.PutUint64(b[48:56], h.LeafDirectoryLength)
	le.PutUint64(b[56:64], h.TileDataOffset)
	le.PutUint64(b[64:72], h.TileDataLength)
	le.PutUint64(b[72:80], h.AddressedTilesCount)
	le.PutUint64(b[80:88], h.TileEntriesCount)
	le.PutUint64(b[88:96], h.TileContentsCount)
	if h.Clustered {
		b[96] = 0x1
	}
	b[97] = uint8(h.InternalCompression)
	b[98] = uint8(h.TileCompression)
	b[99] = uint8(h.TileType)
	b[100] = h.MinZoom
	b[101] = h.MaxZoom
	le.PutUint32(b[102:106], uint32(h.MinLonE7))
	le.PutUint32(b[106:110], uint32(h.MinLatE7))
	le.PutUint32(b[110:114], uint32(h.MaxLonE7))
	le.PutUint32(b[114:118], uint32(h.MaxLatE7))
	b[118] = h.CenterZoom
	le.PutUint32(b[119:123], uint32(h.CenterLonE7))
	le.PutUint32(b[123:127], uint32(h.CenterLatE7))
	return b
}

// ReadHeader reads the header of the archive at path.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	buf := make([]byte, HeaderLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Header{}, fmt.Errorf("%s: %w", path, ErrShortHeader)
		}
		return Header{}, err
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return Header{}, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
