package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"teb-dashboard/internal/capture"
	"teb-dashboard/internal/dataset"
	"teb-dashboard/internal/export"
	"teb-dashboard/internal/metrics"
	"teb-dashboard/internal/models"
	"teb-dashboard/internal/session"
)

// Notices shown to the operator when an export cannot be delivered
const (
	noticeTargetMissing = "Elemento do dashboard não encontrado. Tente novamente."
	noticeBuildFailed   = "Erro ao gerar o arquivo. Tente novamente."
	noticeNoLiveData    = "Nenhum dado em tempo real recebido ainda."
)

// Source query values of the export endpoints
const (
	sourceLive   = "live"
	sourceRaster = "raster"
)

// requestSnapshot picks the snapshot named by the period and source query
// parameters. It writes the error response itself when there is none.
func (s *Server) requestSnapshot(w http.ResponseWriter, r *http.Request) (*models.PeriodSnapshot, bool) {
	q := r.URL.Query()
	period := q.Get("period")
	live := q.Get("source") == sourceLive || period == dataset.PeriodRealtime

	snap, err := s.session.Snapshot(period, live)
	if errors.Is(err, session.ErrNoLiveData) {
		respondError(w, http.StatusConflict, noticeNoLiveData)
		return nil, false
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return snap, true
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requestSnapshot(w, r)
	if !ok {
		return
	}
	art, err := export.BuildSummaryReport(snap)
	s.deliver(w, r, export.KindSummary, art, err)
}

func (s *Server) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.requestSnapshot(w, r)
	if !ok {
		return
	}
	art, err := export.BuildWorkbook(snap)
	s.deliver(w, r, export.KindWorkbook, art, err)
}

// handleExportDashboard paginates the capture uploaded for the marker. With
// source=raster the region is rasterized from the period snapshot instead.
func (s *Server) handleExportDashboard(w http.ResponseWriter, r *http.Request) {
	marker := r.URL.Query().Get("marker")
	if marker == "" {
		marker = capture.DashboardMarker
	}

	var loc export.Locator = s.captures
	if r.URL.Query().Get("source") == sourceRaster {
		snap, ok := s.requestSnapshot(w, r)
		if !ok {
			return
		}
		loc = capture.SnapshotLocator{
			Snapshot: func() *models.PeriodSnapshot { return snap },
			Scale:    s.opts.CaptureScale,
			Now:      s.opts.Now,
		}
	}

	art, err := export.BuildVisualReport(loc, marker)
	s.deliver(w, r, export.KindVisual, art, err)
}

// deliver sends a finished artifact as an attachment or answers with the
// notice matching the failure. Nothing of a failed build is sent.
func (s *Server) deliver(w http.ResponseWriter, r *http.Request, kind string, art *export.Artifact, err error) {
	reqID := RequestID(r.Context())
	if err != nil {
		if errors.Is(err, export.ErrTargetNotFound) {
			s.log.Warn("export_target_missing", "kind", kind, "request_id", reqID, "err", err)
			s.metrics.Export(kind, metrics.OutcomeNotFound, 0)
			respondError(w, http.StatusNotFound, noticeTargetMissing)
			return
		}
		s.log.Error("export_build_err", "kind", kind, "request_id", reqID, "err", err)
		s.metrics.Export(kind, metrics.OutcomeError, 0)
		respondError(w, http.StatusInternalServerError, noticeBuildFailed)
		return
	}

	s.metrics.Export(kind, metrics.OutcomeOK, len(art.Body))
	s.log.Info("export_delivered", "kind", kind, "file", art.Filename, "bytes", len(art.Body), "request_id", reqID)

	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(art.Body)))
	w.WriteHeader(http.StatusOK)
	w.Write(art.Body)
}
