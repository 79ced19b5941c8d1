package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/autonomy-edge/compilerd/internal/errors"
	"github.com/autonomy-edge/compilerd/internal/pipeline"
	"github.com/autonomy-edge/compilerd/internal/server/responses"
	"github.com/autonomy-edge/compilerd/internal/toolchain"
)

// MonitoringHandlers serves liveness, readiness, and status endpoints.
type MonitoringHandlers struct {
	invoker      *toolchain.Invoker
	tools        func() pipeline.Tools
	stats        *Stats
	version      string
	startTime    time.Time
	errorAdapter *errors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates a new MonitoringHandlers instance.
func NewMonitoringHandlers(inv *toolchain.Invoker, tools func() pipeline.Tools, stats *Stats, version string) *MonitoringHandlers {
	if stats == nil {
		stats = &Stats{}
	}
	return &MonitoringHandlers{
		invoker:      inv,
		tools:        tools,
		stats:        stats,
		version:      version,
		startTime:    time.Now(),
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthz reports process liveness.
func (h *MonitoringHandlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, &responses.HealthResponse{Status: "ok"})
}

// HandleReadyz reports whether both external tools are present and
// executable. Deployment probes use this to gate traffic after toolchain
// upgrades.
func (h *MonitoringHandlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	tools := h.tools()
	resp := &responses.ReadyResponse{
		Ready: true,
		Tools: map[string]responses.ToolStatus{},
	}
	checks := []struct{ name, path string }{
		{"xml2st", tools.Xml2st},
		{"iec2c", tools.Iec2c},
	}
	for _, c := range checks {
		status := responses.ToolStatus{Path: c.path, Ready: true}
		if err := h.invoker.Check(c.path); err != nil {
			status.Ready = false
			status.Error = err.Error()
			resp.Ready = false
		}
		resp.Tools[c.name] = status
	}

	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	_ = writeJSONPretty(w, r, code, resp)
}

// HandleStatus reports service identity, uptime, and request volume.
func (h *MonitoringHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		err := errors.ValidationFailed("method", "only GET is supported").
			WithContext("method", r.Method)
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	tools := h.tools()
	status := &responses.StatusResponse{
		Service:   "compilerd",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Seconds(),
		StartTime: h.startTime,
		Xml2st:    tools.Xml2st,
		Iec2c:     tools.Iec2c,
		Requests:  h.stats.Requests.Load(),
		Timestamp: time.Now().UTC(),
	}

	if err := writeJSONPretty(w, r, http.StatusOK, status); err != nil {
		h.errorAdapter.WriteErrorResponse(w, errors.InternalError("failed to write status response", err))
	}
}
