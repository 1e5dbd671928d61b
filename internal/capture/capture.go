// Package capture keeps rasterized screen regions of the dashboard, keyed by
// the marker attribute of the region they were taken from.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"
)

// DashboardMarker is the marker of the main dashboard region
const DashboardMarker = "dashboard"

// DefaultScale is the pixel density used when rasterizing a region
const DefaultScale = 2

// ErrEmptyCapture is returned for images with no pixels
var ErrEmptyCapture = errors.New("capture has no pixels")

// Capture is a PNG raster of one dashboard region
type Capture struct {
	Marker     string
	PNG        []byte
	Width      int // pixels
	Height     int // pixels
	CapturedAt time.Time
}

// New validates a PNG payload and records its pixel size
func New(marker string, data []byte, at time.Time) (*Capture, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding capture: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrEmptyCapture
	}
	return &Capture{
		Marker:     marker,
		PNG:        data,
		Width:      cfg.Width,
		Height:     cfg.Height,
		CapturedAt: at,
	}, nil
}

// FromImage encodes an in-memory raster as a capture
func FromImage(marker string, img image.Image, at time.Time) (*Capture, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyCapture
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding capture: %w", err)
	}
	return &Capture{
		Marker:     marker,
		PNG:        buf.Bytes(),
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: at,
	}, nil
}

// Store holds the latest capture per marker
type Store struct {
	mu       sync.RWMutex
	captures map[string]*Capture
}

// NewStore creates an empty capture store
func NewStore() *Store {
	return &Store{captures: make(map[string]*Capture)}
}

// Put replaces the capture of its marker
func (s *Store) Put(c *Capture) {
	s.mu.Lock()
	s.captures[c.Marker] = c
	s.mu.Unlock()
}

// Locate returns the capture for a marker, if one was taken
func (s *Store) Locate(marker string) (*Capture, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.captures[marker]
	return c, ok
}

// Delete drops the capture of a marker
func (s *Store) Delete(marker string) {
	s.mu.Lock()
	delete(s.captures, marker)
	s.mu.Unlock()
}
