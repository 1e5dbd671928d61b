package export

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"teb-dashboard/internal/capture"
)

// Visual report geometry, in millimetres on A4 landscape
const (
	visualPageWidth  = 297.0
	visualPageHeight = 210.0
	visualMarginX    = 10.0
	visualBandTop    = 30.0
	visualBandBottom = 10.0
	visualTitleX     = 20.0
	visualTitleY     = 20.0

	// VisualImageWidth is the printed width of the captured raster
	VisualImageWidth = visualPageWidth - 2*visualMarginX
	// VisualBandHeight is the image height available on every page
	VisualBandHeight = visualPageHeight - visualBandTop - visualBandBottom
)

// sliceEpsilon absorbs float noise so an exact fit never adds a page
const sliceEpsilon = 1e-9

// Locator finds the captured raster of a marked dashboard region
type Locator interface {
	Locate(marker string) (*capture.Capture, bool)
}

// Slice is the part of the scaled image printed on one page
type Slice struct {
	Offset float64 // mm from the top of the image
	Height float64 // mm
}

// ScaledHeight is the printed height of a pxWidth x pxHeight raster
func ScaledHeight(pxWidth, pxHeight int) float64 {
	return float64(pxHeight) * VisualImageWidth / float64(pxWidth)
}

// PlanSlices splits an image of printed height h into bands of at most
// band mm. It stops as soon as nothing is left, so it yields ceil(h/band)
// slices and never a trailing empty one.
func PlanSlices(h, band float64) []Slice {
	if band <= 0 {
		return nil
	}
	var slices []Slice
	offset := 0.0
	for remaining := h; remaining > sliceEpsilon; {
		height := band
		if remaining < band {
			height = remaining
		}
		slices = append(slices, Slice{Offset: offset, Height: height})
		offset += height
		remaining -= height
	}
	return slices
}

// BuildVisualReport paginates the capture of a marked region onto landscape
// pages. A missing capture yields ErrTargetNotFound.
func BuildVisualReport(loc Locator, marker string) (*Artifact, error) {
	body, err := guard(KindVisual, func() ([]byte, error) {
		c, ok := loc.Locate(marker)
		if !ok {
			return nil, fmt.Errorf("%w: region %q", ErrTargetNotFound, marker)
		}
		return renderVisual(c)
	})
	if err != nil {
		return nil, err
	}
	return &Artifact{Kind: KindVisual, Filename: VisualFilename, ContentType: ContentTypePDF, Body: body}, nil
}

func renderVisual(c *capture.Capture) ([]byte, error) {
	if c.Width <= 0 || c.Height <= 0 {
		return nil, capture.ErrEmptyCapture
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	opts := fpdf.ImageOptions{ImageType: "PNG"}
	name := "capture-" + c.Marker
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(c.PNG))
	if pdf.Err() {
		return nil, fmt.Errorf("registering capture: %w", pdf.Error())
	}

	h := ScaledHeight(c.Width, c.Height)
	for i, s := range PlanSlices(h, VisualBandHeight) {
		pdf.AddPage()
		if i == 0 {
			pdf.SetFont("Helvetica", "", fontSection)
			pdf.Text(visualTitleX, visualTitleY, tr("Dashboard - Parque Eólico TEB"))
		}
		pdf.ClipRect(visualMarginX, visualBandTop, VisualImageWidth, s.Height, false)
		pdf.ImageOptions(name, visualMarginX, visualBandTop-s.Offset, VisualImageWidth, h, false, opts, 0, "")
		pdf.ClipEnd()
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("writing pdf: %w", err)
	}
	return buf.Bytes(), nil
}
