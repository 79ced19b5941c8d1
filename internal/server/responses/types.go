// Package responses defines the JSON response bodies of the HTTP surface.
package responses

import "time"

// GenerateSTResponse is the body returned by POST /generate-st.
// ExitCode carries the external tool's status verbatim; ProgramST is null
// when the tool produced no output.
type GenerateSTResponse struct {
	Output    string  `json:"output"`
	ExitCode  int     `json:"exit_code"`
	ProgramST *string `json:"program_st"`
}

// CompileSTResponse is the body returned by POST /compile-st. Files maps the
// harvested filenames to their content; its cardinality depends on the
// compiled program's resource count.
type CompileSTResponse struct {
	Output   string            `json:"output"`
	ExitCode int               `json:"exit_code"`
	Files    map[string]string `json:"files"`
}

// GenerateDebugResponse is the body returned by POST /generate-debug.
type GenerateDebugResponse struct {
	Output    string  `json:"output"`
	ExitCode  int     `json:"exit_code"`
	ProgramST *string `json:"program_st"`
	DebugC    *string `json:"debug_c"`
}

// GenerateGlueVarsResponse is the body returned by POST /generate-gluevars.
type GenerateGlueVarsResponse struct {
	Output    string  `json:"output"`
	ExitCode  int     `json:"exit_code"`
	GlueVarsC *string `json:"glue_vars_c"`
}

// HealthResponse is the body returned by GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ToolStatus reports one external tool's availability for readiness checks.
type ToolStatus struct {
	Path  string `json:"path"`
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

// ReadyResponse is the body returned by GET /readyz.
type ReadyResponse struct {
	Ready bool                  `json:"ready"`
	Tools map[string]ToolStatus `json:"tools"`
}

// StatusResponse is the body returned by GET /status.
type StatusResponse struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime_seconds"`
	StartTime time.Time `json:"start_time"`
	Xml2st    string    `json:"xml2st"`
	Iec2c     string    `json:"iec2c"`
	Requests  uint64    `json:"requests_total"`
	Timestamp time.Time `json:"timestamp"`
}
