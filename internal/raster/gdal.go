package raster

import (
	"encoding/json"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// GDAL returns the backend that shells out to the gdalinfo binary. It is
// available whenever gdalinfo is on PATH and handles every format and
// compression GDAL does, including remote rasters via /vsicurl/.
func GDAL() Backend {
	return Backend{
		Name: "gdal",
		Available: func() bool {
			_, err := exec.LookPath("gdalinfo")
			return err == nil
		},
		Open: openGDAL,
	}
}

type gdalInfo struct {
	DriverShortName  string     `json:"driverShortName"`
	Size             []int      `json:"size"`
	GeoTransform     []float64  `json:"geoTransform"`
	CoordinateSystem gdalCRS    `json:"coordinateSystem"`
	Bands            []gdalBand `json:"bands"`
	Stac             gdalStac   `json:"stac"`
}

type gdalCRS struct {
	WKT string `json:"wkt"`
}

type gdalStac struct {
	EPSG *int `json:"proj:epsg"`
}

type gdalBand struct {
	Min      *float64                     `json:"min"`
	Max      *float64                     `json:"max"`
	Metadata map[string]map[string]string `json:"metadata"`
}

type gdalRaster struct {
	info  *gdalInfo // nil when the file did not open as a GTiff
	noPix bool      // gdalinfo reported no valid pixels for statistics
}

func openGDAL(path string) (Raster, error) {
	arg := path
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		arg = "/vsicurl/" + path
	}

	out, err := exec.Command("gdalinfo", "-json", "-stats", arg).CombinedOutput()
	if err != nil {
		// gdalinfo exits non-zero for files it cannot open at all. That is
		// "not a valid raster", not an infrastructure failure.
		return &gdalRaster{}, nil
	}

	// Statistics computation on an empty raster fails but gdalinfo still
	// emits the JSON document, preceded by a warning on some versions.
	noPix := strings.Contains(string(out), "no valid pixels")
	start := strings.IndexByte(string(out), '{')
	if start < 0 {
		return &gdalRaster{}, nil
	}

	var info gdalInfo
	if err := json.Unmarshal(out[start:], &info); err != nil {
		return &gdalRaster{}, nil
	}
	if info.DriverShortName != "GTiff" {
		return &gdalRaster{}, nil
	}
	return &gdalRaster{info: &info, noPix: noPix}, nil
}

func (g *gdalRaster) Close() error { return nil }

func (g *gdalRaster) IsValidGeoTIFF() bool { return g.info != nil }

func (g *gdalRaster) BandCount() int {
	if g.info == nil {
		return 0
	}
	return len(g.info.Bands)
}

func (g *gdalRaster) HasProjection() bool {
	return g.info != nil && g.info.CoordinateSystem.WKT != ""
}

func (g *gdalRaster) IsGeographic() bool {
	if g.info == nil {
		return false
	}
	wkt := g.info.CoordinateSystem.WKT
	return strings.HasPrefix(wkt, "GEOGCRS") || strings.HasPrefix(wkt, "GEOGCS")
}

var epsgPattern = regexp.MustCompile(`(?:ID\["EPSG",(\d+)\]|AUTHORITY\["EPSG","(\d+)"\])\]?\s*$`)

func (g *gdalRaster) EPSGCode() (int, bool) {
	if g.info == nil {
		return 0, false
	}
	if g.info.Stac.EPSG != nil {
		return *g.info.Stac.EPSG, true
	}
	m := epsgPattern.FindStringSubmatch(g.info.CoordinateSystem.WKT)
	if m == nil {
		return 0, false
	}
	for _, s := range m[1:] {
		if s != "" {
			code, err := strconv.Atoi(s)
			if err == nil {
				return code, true
			}
		}
	}
	return 0, false
}

func (g *gdalRaster) PixelSize() (float64, float64, bool) {
	if g.info == nil || len(g.info.GeoTransform) < 6 {
		return 0, 0, false
	}
	dx := g.info.GeoTransform[1]
	dy := g.info.GeoTransform[5]
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx, dy, true
}

func (g *gdalRaster) MinMax() (float64, float64, error) {
	if g.info == nil || len(g.info.Bands) == 0 || g.noPix {
		return 0, 0, ErrNoData
	}
	band := g.info.Bands[0]
	if stats, ok := band.Metadata[""]; ok {
		minS, okMin := stats["STATISTICS_MINIMUM"]
		maxS, okMax := stats["STATISTICS_MAXIMUM"]
		if okMin && okMax {
			minV, err1 := strconv.ParseFloat(minS, 64)
			maxV, err2 := strconv.ParseFloat(maxS, 64)
			if err1 == nil && err2 == nil {
				return minV, maxV, nil
			}
		}
	}
	if band.Min != nil && band.Max != nil {
		return *band.Min, *band.Max, nil
	}
	return 0, 0, ErrNoData
}

func (g *gdalRaster) Shape() (int, int) {
	if g.info == nil || len(g.info.Size) < 2 {
		return 0, 0
	}
	return g.info.Size[0], g.info.Size[1]
}
