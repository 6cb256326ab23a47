package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/vanshika/quickpay/internal/exporter"
	"github.com/vanshika/quickpay/internal/pipeline"
	"github.com/vanshika/quickpay/internal/quality"
	"github.com/vanshika/quickpay/internal/repository"
)

// ExportLocator resolves an export view to its CSV file.
type ExportLocator interface {
	ViewPath(view string) (string, error)
}

// FlowLauncher runs flows by name.
type FlowLauncher interface {
	Names() []string
	Launch(ctx context.Context, name string) (*pipeline.Result, error)
}

// GraphInsights reads aggregates from the relationship graph.
type GraphInsights interface {
	SharedDevices(ctx context.Context, minUsers, limit int) ([]repository.SharedDevice, error)
	TopMerchants(ctx context.Context, limit int) ([]repository.MerchantVolume, error)
}

// APIHandlers exposes HTTP handlers for the REST API. Graph may be nil when
// no graph is configured.
type APIHandlers struct {
	logger    *slog.Logger
	reportDir string
	exports   ExportLocator
	flows     FlowLauncher
	graph     GraphInsights
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, reportDir string, exports ExportLocator, flows FlowLauncher, graph GraphInsights) *APIHandlers {
	return &APIHandlers{
		logger:    logger,
		reportDir: reportDir,
		exports:   exports,
		flows:     flows,
		graph:     graph,
	}
}

func (h *APIHandlers) latestQualityReport(w http.ResponseWriter, r *http.Request) {
	report, path, err := quality.LatestReport(h.reportDir)
	if errors.Is(err, quality.ErrNoReport) {
		writeError(w, r, http.StatusNotFound, "no quality report available")
		return
	}
	if err != nil {
		h.logger.Error("failed to read quality report", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to read quality report")
		return
	}
	render.JSON(w, r, qualityReportResponse{
		File:   filepath.Base(path),
		Level:  quality.Escalate(report.QualityScore),
		Report: report,
	})
}

func (h *APIHandlers) downloadExport(w http.ResponseWriter, r *http.Request) {
	view := chi.URLParam(r, "view")
	path, err := h.exports.ViewPath(view)
	if errors.Is(err, exporter.ErrUnknownView) {
		writeError(w, r, http.StatusNotFound, "unknown view "+strconv.Quote(view))
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve export", "view", view, "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to resolve export")
		return
	}
	if _, err := os.Stat(path); err != nil {
		writeError(w, r, http.StatusNotFound, "export "+view+" has not been generated")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(path)+`"`)
	http.ServeFile(w, r, path)
}

func (h *APIHandlers) listFlows(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{"flows": h.flows.Names()})
}

func (h *APIHandlers) runFlow(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "flow")
	res, err := h.flows.Launch(r.Context(), name)
	switch {
	case errors.Is(err, pipeline.ErrUnknownFlow):
		writeError(w, r, http.StatusNotFound, err.Error())
		return
	case err != nil && res == nil:
		h.logger.Error("flow launch failed", "flow", name, "error", err)
		writeError(w, r, http.StatusInternalServerError, "flow launch failed")
		return
	case err != nil:
		h.logger.Warn("flow run failed", "flow", name, "run_id", res.RunID, "error", err)
		render.Status(r, http.StatusInternalServerError)
	}
	render.JSON(w, r, res)
}

func (h *APIHandlers) sharedDevices(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		writeError(w, r, http.StatusServiceUnavailable, "graph is not configured")
		return
	}
	devices, err := h.graph.SharedDevices(r.Context(), queryInt(r, "min_users", 2), queryInt(r, "limit", 20))
	if err != nil {
		h.logger.Error("failed to query shared devices", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to query shared devices")
		return
	}
	render.JSON(w, r, map[string]any{"devices": devices})
}

func (h *APIHandlers) topMerchants(w http.ResponseWriter, r *http.Request) {
	if h.graph == nil {
		writeError(w, r, http.StatusServiceUnavailable, "graph is not configured")
		return
	}
	merchants, err := h.graph.TopMerchants(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.logger.Error("failed to query top merchants", "error", err)
		writeError(w, r, http.StatusInternalServerError, "failed to query top merchants")
		return
	}
	render.JSON(w, r, map[string]any{"merchants": merchants})
}

type qualityReportResponse struct {
	File   string         `json:"file"`
	Level  quality.Level  `json:"level"`
	Report quality.Report `json:"report"`
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}
