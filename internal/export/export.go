// Package export builds the downloadable reports of the dashboard: the
// summary PDF, the five-sheet workbook and the paginated dashboard capture.
package export

import (
	"errors"
	"fmt"
)

// Download filenames
const (
	SummaryFilename  = "relatorio-parque-eolico-teb.pdf"
	WorkbookFilename = "dados-parque-eolico-teb.xlsx"
	VisualFilename   = "dashboard-parque-eolico-teb.pdf"
)

// Content types
const (
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Export kinds, used for logging and metrics labels
const (
	KindSummary  = "summary"
	KindWorkbook = "workbook"
	KindVisual   = "visual"
)

// ErrTargetNotFound is returned when the capture region to export is absent.
// It is distinct from a build failure: there is nothing to export yet.
var ErrTargetNotFound = errors.New("export target not found")

// ErrBuildFailed wraps any failure while assembling an artifact
var ErrBuildFailed = errors.New("export build failed")

// Artifact is a finished export ready to be delivered as a download
type Artifact struct {
	Kind        string
	Filename    string
	ContentType string
	Body        []byte
}

// guard runs a build step and turns both returned errors and panics raised
// by the rendering libraries into ErrBuildFailed. No body is returned on failure.
func guard(kind string, build func() ([]byte, error)) (body []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			body = nil
			err = fmt.Errorf("%w: %s: panic: %v", ErrBuildFailed, kind, r)
		}
	}()

	body, err = build()
	if err != nil {
		if errors.Is(err, ErrTargetNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBuildFailed, kind, err)
	}
	return body, nil
}
