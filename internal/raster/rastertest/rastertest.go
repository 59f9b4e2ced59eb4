// Package rastertest writes minimal GeoTIFF fixtures for tests: classic
// little-endian TIFF, one uncompressed strip, float32 samples.
package rastertest

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
)

// Options controls the written fixture.
type Options struct {
	Width, Height int
	Values        []float32 // band-1 samples, row major, len Width*Height
	Bands         int       // 1 (default) or 2; band 2 repeats band 1
	PixelSize     float64   // cell size in x, 0 omits the pixel scale tag
	PixelSizeY    float64   // cell size in y, 0 means same as PixelSize
	EPSG          int       // CRS code, 0 omits the geo key directory
	Geographic    bool      // geographic model type instead of projected
	Nodata        *float64  // GDAL_NODATA tag
}

type entry struct {
	tag, typ uint16
	count    uint32
	inline   []byte // value when it fits in 4 bytes
	extra    []byte // out-of-line value data
}

// WriteGeoTIFF writes the fixture to path.
func WriteGeoTIFF(path string, o Options) error {
	if o.Bands == 0 {
		o.Bands = 1
	}
	if o.Bands > 2 {
		return fmt.Errorf("rastertest: at most 2 bands supported")
	}
	if len(o.Values) != o.Width*o.Height {
		return fmt.Errorf("rastertest: need %d values, got %d", o.Width*o.Height, len(o.Values))
	}

	le := binary.LittleEndian

	// Pixel data: chunky interleave, band 2 repeating band 1.
	pixels := make([]byte, 0, len(o.Values)*4*o.Bands)
	var scratch [4]byte
	for _, v := range o.Values {
		le.PutUint32(scratch[:], math.Float32bits(v))
		for b := 0; b < o.Bands; b++ {
			pixels = append(pixels, scratch[:]...)
		}
	}

	entries := []entry{
		longEntry(256, uint32(o.Width)),
		longEntry(257, uint32(o.Height)),
		shortsEntry(258, repeat(uint16(32), o.Bands)),
		shortsEntry(259, []uint16{1}),               // no compression
		shortsEntry(262, []uint16{1}),               // BlackIsZero
		{tag: 273, typ: 4, count: 1, extra: pixels}, // StripOffsets patched below
		shortsEntry(277, []uint16{uint16(o.Bands)}),
		longEntry(278, uint32(o.Height)),
		longEntry(279, uint32(len(pixels))),
		shortsEntry(339, repeat(uint16(3), o.Bands)), // IEEE float
	}

	if o.PixelSize > 0 {
		dy := o.PixelSizeY
		if dy == 0 {
			dy = o.PixelSize
		}
		scale := make([]byte, 24)
		le.PutUint64(scale[0:], math.Float64bits(o.PixelSize))
		le.PutUint64(scale[8:], math.Float64bits(dy))
		le.PutUint64(scale[16:], math.Float64bits(0))
		entries = append(entries, entry{tag: 33550, typ: 12, count: 3, extra: scale})
	}

	if o.EPSG != 0 {
		modelType := uint16(1)
		csKey := uint16(3072)
		if o.Geographic {
			modelType = 2
			csKey = 2048
		}
		keys := []uint16{
			1, 1, 0, 2, // version, revision, minor, key count
			1024, 0, 1, modelType,
			csKey, 0, 1, uint16(o.EPSG),
		}
		entries = append(entries, shortsEntry(34735, keys))
	}

	if o.Nodata != nil {
		s := strconv.FormatFloat(*o.Nodata, 'g', -1, 64) + "\x00"
		entries = append(entries, entry{tag: 42113, typ: 2, count: uint32(len(s)), inline: nil, extra: []byte(s)})
	}

	// Layout: header(8) + entry count(2) + entries(12 each) + next(4),
	// then out-of-line data in entry order.
	ifdSize := 2 + len(entries)*12 + 4
	dataOffset := uint32(8 + ifdSize)

	var data []byte
	for i := range entries {
		e := &entries[i]
		if e.extra == nil {
			continue
		}
		if len(e.extra) <= 4 && e.tag != 273 {
			e.inline = e.extra
			e.extra = nil
			continue
		}
		e.inline = make([]byte, 4)
		le.PutUint32(e.inline, dataOffset+uint32(len(data)))
		data = append(data, e.extra...)
		// Word-align the next block.
		if len(data)%2 == 1 {
			data = append(data, 0)
		}
	}

	out := make([]byte, 0, 8+ifdSize+len(data))
	out = append(out, 'I', 'I', 42, 0)
	out = le.AppendUint32(out, 8)
	out = le.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		out = le.AppendUint16(out, e.tag)
		out = le.AppendUint16(out, e.typ)
		out = le.AppendUint32(out, e.count)
		v := e.inline
		for len(v) < 4 {
			v = append(v, 0)
		}
		out = append(out, v[:4]...)
	}
	out = le.AppendUint32(out, 0) // no next IFD
	out = append(out, data...)

	return os.WriteFile(path, out, 0o644)
}

func longEntry(tag uint16, v uint32) entry {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return entry{tag: tag, typ: 4, count: 1, inline: b}
}

func shortsEntry(tag uint16, vs []uint16) entry {
	b := make([]byte, len(vs)*2)
	for i, v := range vs {
		binary.LittleEndian.PutUint16(b[i*2:], v)
	}
	e := entry{tag: tag, typ: 3, count: uint32(len(vs))}
	if len(b) <= 4 {
		e.inline = b
	} else {
		e.extra = b
	}
	return e
}

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}
