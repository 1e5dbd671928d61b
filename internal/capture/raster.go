package capture

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"time"

	"teb-dashboard/internal/models"
)

// Layout of the rasterized dashboard, in CSS pixels before scaling
const (
	rasterWidth   = 1200
	rasterHeader  = 120
	rasterRow     = 60
	rasterFooter  = 40
	rasterPadding = 40
	rasterBarGap  = 12
)

var (
	colorBackground = color.RGBA{R: 248, G: 249, B: 250, A: 255}
	colorHeader     = color.RGBA{R: 30, G: 58, B: 95, A: 255}
	colorTrack      = color.RGBA{R: 220, G: 220, B: 220, A: 255}
	colorHigh       = color.RGBA{R: 231, G: 76, B: 60, A: 255}
	colorMedium     = color.RGBA{R: 241, G: 196, B: 15, A: 255}
	colorLow        = color.RGBA{R: 46, G: 204, B: 113, A: 255}
)

// Rasterize draws an availability bar chart of the snapshot at the given
// pixel density. It stands in for a browser capture when the export runs
// outside the browser.
func Rasterize(snap *models.PeriodSnapshot, scale int) *image.RGBA {
	if scale < 1 {
		scale = 1
	}
	h := rasterHeader + len(snap.Turbines)*rasterRow + rasterFooter
	img := image.NewRGBA(image.Rect(0, 0, rasterWidth*scale, h*scale))
	fill(img, image.Rect(0, 0, rasterWidth, h), scale, colorBackground)
	fill(img, image.Rect(0, 0, rasterWidth, rasterHeader-rasterBarGap), scale, colorHeader)

	trackWidth := rasterWidth - 2*rasterPadding
	for i, t := range snap.Turbines {
		top := rasterHeader + i*rasterRow
		track := image.Rect(rasterPadding, top+rasterBarGap, rasterPadding+trackWidth, top+rasterRow-rasterBarGap)
		fill(img, track, scale, colorTrack)

		avail := math.Max(0, math.Min(100, t.Availability))
		bar := track
		bar.Max.X = track.Min.X + int(float64(trackWidth)*avail/100)
		fill(img, bar, scale, criticalityColor(t.Criticality))
	}
	return img
}

func criticalityColor(c models.Criticality) color.RGBA {
	switch c {
	case models.CriticalityHigh:
		return colorHigh
	case models.CriticalityMedium:
		return colorMedium
	default:
		return colorLow
	}
}

func fill(img *image.RGBA, r image.Rectangle, scale int, c color.Color) {
	scaled := image.Rect(r.Min.X*scale, r.Min.Y*scale, r.Max.X*scale, r.Max.Y*scale)
	draw.Draw(img, scaled, &image.Uniform{C: c}, image.Point{}, draw.Src)
}

// SnapshotLocator rasterizes the dashboard region from a snapshot on demand
type SnapshotLocator struct {
	Snapshot func() *models.PeriodSnapshot
	Scale    int
	Now      func() time.Time
}

// Locate returns a fresh raster for the dashboard marker only
func (l SnapshotLocator) Locate(marker string) (*Capture, bool) {
	if marker != DashboardMarker || l.Snapshot == nil {
		return nil, false
	}
	snap := l.Snapshot()
	if snap == nil {
		return nil, false
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	c, err := FromImage(marker, Rasterize(snap, l.Scale), now())
	if err != nil {
		return nil, false
	}
	return c, true
}
