package raster

import (
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// TIFF returns the pure-Go backend. It reads the TIFF/GeoTIFF tag
// structure directly and is always available, at the cost of supporting
// only the layouts the solver stack actually produces: classic
// (non-Big) TIFF, strip-organized, uncompressed or deflate.
func TIFF() Backend {
	return Backend{
		Name:      "tiff",
		Available: func() bool { return true },
		Open:      openTIFF,
	}
}

// TIFF tag and GeoKey identifiers.
const (
	tagImageWidth      = 256
	tagImageLength     = 257
	tagBitsPerSample   = 258
	tagCompression     = 259
	tagStripOffsets    = 273
	tagSamplesPerPixel = 277
	tagRowsPerStrip    = 278
	tagStripByteCounts = 279
	tagSampleFormat    = 339
	tagModelPixelScale = 33550
	tagGeoKeyDirectory = 34735
	tagGDALNoData      = 42113

	geoKeyModelType       = 1024
	geoKeyGeographicType  = 2048
	geoKeyProjectedCSType = 3072

	modelTypeProjected  = 1
	modelTypeGeographic = 2

	compressionNone       = 1
	compressionDeflate    = 8
	compressionDeflateOld = 32946

	sampleFormatUint  = 1
	sampleFormatInt   = 2
	sampleFormatFloat = 3
)

type tiffRaster struct {
	f     *os.File
	order binary.ByteOrder
	valid bool

	width, height int
	bands         int
	bits          int
	sampleFormat  int
	compression   int

	stripOffsets []int64
	stripCounts  []int64

	pixelDX, pixelDY float64
	hasPixelScale    bool

	modelType int
	epsg      int
	hasGeoKey bool

	nodata    float64
	hasNodata bool
}

func openTIFF(path string) (Raster, error) {
	f, err := os.Open(path)
	if err != nil {
		// A path that cannot be opened is not a valid raster; existence is
		// a separate check's concern.
		return &tiffRaster{}, nil
	}

	r := &tiffRaster{f: f, bands: 1, compression: compressionNone, sampleFormat: sampleFormatUint}
	if err := r.parse(); err != nil {
		r.valid = false
		return r, nil
	}
	r.valid = true
	return r, nil
}

func (r *tiffRaster) parse() error {
	var header [8]byte
	if _, err := io.ReadFull(r.f, header[:]); err != nil {
		return err
	}
	switch string(header[:2]) {
	case "II":
		r.order = binary.LittleEndian
	case "MM":
		r.order = binary.BigEndian
	default:
		return fmt.Errorf("not a tiff: bad byte order mark")
	}
	if r.order.Uint16(header[2:4]) != 42 {
		return fmt.Errorf("not a tiff: bad magic")
	}
	ifdOffset := int64(r.order.Uint32(header[4:8]))
	return r.parseIFD(ifdOffset)
}

type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	rawValue [4]byte
}

// typeSizes maps TIFF field types to their byte width.
var typeSizes = map[uint16]int{1: 1, 2: 1, 3: 2, 4: 4, 5: 8, 6: 1, 7: 1, 8: 2, 9: 4, 10: 8, 11: 4, 12: 8}

func (r *tiffRaster) parseIFD(offset int64) error {
	var countBuf [2]byte
	if _, err := r.f.ReadAt(countBuf[:], offset); err != nil {
		return err
	}
	n := int(r.order.Uint16(countBuf[:]))
	buf := make([]byte, n*12)
	if _, err := r.f.ReadAt(buf, offset+2); err != nil {
		return err
	}

	for i := 0; i < n; i++ {
		e := ifdEntry{
			tag:   r.order.Uint16(buf[i*12:]),
			typ:   r.order.Uint16(buf[i*12+2:]),
			count: r.order.Uint32(buf[i*12+4:]),
		}
		copy(e.rawValue[:], buf[i*12+8:i*12+12])
		if err := r.applyEntry(e); err != nil {
			return err
		}
	}
	if r.width == 0 || r.height == 0 {
		return fmt.Errorf("tiff without dimensions")
	}
	return nil
}

func (r *tiffRaster) applyEntry(e ifdEntry) error {
	switch e.tag {
	case tagImageWidth:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.width = int(v[0])
	case tagImageLength:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.height = int(v[0])
	case tagBitsPerSample:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.bits = int(v[0])
	case tagCompression:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.compression = int(v[0])
	case tagSamplesPerPixel:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.bands = int(v[0])
	case tagSampleFormat:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.sampleFormat = int(v[0])
	case tagStripOffsets:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.stripOffsets = v
	case tagStripByteCounts:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.stripCounts = v
	case tagModelPixelScale:
		v, err := r.doubleValues(e)
		if err != nil {
			return err
		}
		if len(v) >= 2 {
			r.pixelDX, r.pixelDY = math.Abs(v[0]), math.Abs(v[1])
			r.hasPixelScale = true
		}
	case tagGeoKeyDirectory:
		v, err := r.intValues(e)
		if err != nil {
			return err
		}
		r.applyGeoKeys(v)
	case tagGDALNoData:
		s, err := r.asciiValue(e)
		if err != nil {
			return err
		}
		if nd, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			r.nodata, r.hasNodata = nd, true
		}
	}
	return nil
}

// applyGeoKeys walks the GeoKeyDirectory: a 4-short header followed by
// 4-short entries (key id, tag location, count, value).
func (r *tiffRaster) applyGeoKeys(dir []int64) {
	if len(dir) < 4 {
		return
	}
	r.hasGeoKey = true
	for i := 4; i+3 < len(dir); i += 4 {
		key, loc, value := dir[i], dir[i+1], dir[i+3]
		if loc != 0 {
			continue // value stored in another tag, not needed here
		}
		switch key {
		case geoKeyModelType:
			r.modelType = int(value)
		case geoKeyProjectedCSType, geoKeyGeographicType:
			if value > 0 && value < 32767 {
				r.epsg = int(value)
			}
		}
	}
}

// valueBytes returns the raw bytes of an entry's value, following the
// offset indirection when the value does not fit inline.
func (r *tiffRaster) valueBytes(e ifdEntry) ([]byte, error) {
	size, ok := typeSizes[e.typ]
	if !ok {
		return nil, fmt.Errorf("unknown tiff field type %d", e.typ)
	}
	total := size * int(e.count)
	if total <= 4 {
		return e.rawValue[:total], nil
	}
	buf := make([]byte, total)
	offset := int64(r.order.Uint32(e.rawValue[:]))
	if _, err := r.f.ReadAt(buf, offset); err != nil {
		return nil, err
	}
	return buf, nil
}

func (r *tiffRaster) intValues(e ifdEntry) ([]int64, error) {
	buf, err := r.valueBytes(e)
	if err != nil {
		return nil, err
	}
	out := make([]int64, e.count)
	for i := range out {
		switch e.typ {
		case 1: // BYTE
			out[i] = int64(buf[i])
		case 3: // SHORT
			out[i] = int64(r.order.Uint16(buf[i*2:]))
		case 4: // LONG
			out[i] = int64(r.order.Uint32(buf[i*4:]))
		default:
			return nil, fmt.Errorf("unexpected field type %d for tag %d", e.typ, e.tag)
		}
	}
	return out, nil
}

func (r *tiffRaster) doubleValues(e ifdEntry) ([]float64, error) {
	if e.typ != 12 {
		return nil, fmt.Errorf("unexpected field type %d for tag %d", e.typ, e.tag)
	}
	buf, err := r.valueBytes(e)
	if err != nil {
		return nil, err
	}
	out := make([]float64, e.count)
	for i := range out {
		out[i] = math.Float64frombits(r.order.Uint64(buf[i*8:]))
	}
	return out, nil
}

func (r *tiffRaster) asciiValue(e ifdEntry) (string, error) {
	if e.typ != 2 {
		return "", fmt.Errorf("unexpected field type %d for tag %d", e.typ, e.tag)
	}
	buf, err := r.valueBytes(e)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

func (r *tiffRaster) Close() error {
	if r.f == nil {
		return nil
	}
	err := r.f.Close()
	r.f = nil
	return err
}

func (r *tiffRaster) IsValidGeoTIFF() bool { return r.valid }

func (r *tiffRaster) BandCount() int {
	if !r.valid {
		return 0
	}
	return r.bands
}

func (r *tiffRaster) HasProjection() bool {
	return r.valid && r.hasGeoKey && r.modelType != 0
}

func (r *tiffRaster) IsGeographic() bool {
	return r.valid && r.modelType == modelTypeGeographic
}

func (r *tiffRaster) EPSGCode() (int, bool) {
	if !r.valid || r.epsg == 0 {
		return 0, false
	}
	return r.epsg, true
}

func (r *tiffRaster) PixelSize() (float64, float64, bool) {
	if !r.valid || !r.hasPixelScale {
		return 0, 0, false
	}
	return r.pixelDX, r.pixelDY, true
}

func (r *tiffRaster) Shape() (int, int) {
	if !r.valid {
		return 0, 0
	}
	return r.width, r.height
}

// MinMax scans every strip of the first band, skipping nodata and NaN
// samples.
func (r *tiffRaster) MinMax() (float64, float64, error) {
	if !r.valid {
		return 0, 0, ErrNoData
	}
	if len(r.stripOffsets) == 0 || len(r.stripOffsets) != len(r.stripCounts) {
		return 0, 0, fmt.Errorf("unsupported tiff layout: no strip data")
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	found := false

	for i := range r.stripOffsets {
		data, err := r.readStrip(i)
		if err != nil {
			return 0, 0, err
		}
		if err := r.scanSamples(data, func(v float64) {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
			found = true
		}); err != nil {
			return 0, 0, err
		}
	}

	if !found {
		return 0, 0, ErrNoData
	}
	return minV, maxV, nil
}

func (r *tiffRaster) readStrip(i int) ([]byte, error) {
	raw := make([]byte, r.stripCounts[i])
	if _, err := r.f.ReadAt(raw, r.stripOffsets[i]); err != nil {
		return nil, fmt.Errorf("read strip %d: %w", i, err)
	}

	switch r.compression {
	case compressionNone:
		return raw, nil
	case compressionDeflate, compressionDeflateOld:
		zr, err := zlib.NewReader(strings.NewReader(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("inflate strip %d: %w", i, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("inflate strip %d: %w", i, err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported tiff compression %d", r.compression)
	}
}

// scanSamples decodes the first band's samples from a decompressed strip
// and feeds each valid value to yield.
func (r *tiffRaster) scanSamples(data []byte, yield func(float64)) error {
	sampleSize := r.bits / 8
	if sampleSize == 0 {
		return fmt.Errorf("unsupported bits per sample %d", r.bits)
	}
	stride := sampleSize * r.bands

	for off := 0; off+sampleSize <= len(data); off += stride {
		var v float64
		switch {
		case r.sampleFormat == sampleFormatFloat && r.bits == 32:
			v = float64(math.Float32frombits(r.order.Uint32(data[off:])))
		case r.sampleFormat == sampleFormatFloat && r.bits == 64:
			v = math.Float64frombits(r.order.Uint64(data[off:]))
		case r.sampleFormat == sampleFormatInt && r.bits == 8:
			v = float64(int8(data[off]))
		case r.sampleFormat == sampleFormatInt && r.bits == 16:
			v = float64(int16(r.order.Uint16(data[off:])))
		case r.sampleFormat == sampleFormatInt && r.bits == 32:
			v = float64(int32(r.order.Uint32(data[off:])))
		case r.sampleFormat == sampleFormatUint && r.bits == 8:
			v = float64(data[off])
		case r.sampleFormat == sampleFormatUint && r.bits == 16:
			v = float64(r.order.Uint16(data[off:]))
		case r.sampleFormat == sampleFormatUint && r.bits == 32:
			v = float64(r.order.Uint32(data[off:]))
		default:
			return fmt.Errorf("unsupported sample format %d/%d bits", r.sampleFormat, r.bits)
		}
		if math.IsNaN(v) {
			continue
		}
		if r.hasNodata && v == r.nodata {
			continue
		}
		yield(v)
	}
	return nil
}
