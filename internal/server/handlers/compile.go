package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/autonomy-edge/compilerd/internal/errors"
	"github.com/autonomy-edge/compilerd/internal/pipeline"
	"github.com/autonomy-edge/compilerd/internal/server/responses"
)

// CompilerPipeline is the slice of the stage orchestrator the compile
// handlers need; narrowed for testability.
type CompilerPipeline interface {
	GenerateST(ctx context.Context, plcXML string) (*pipeline.STResult, error)
	CompileST(ctx context.Context, programST string) (*pipeline.CompileResult, error)
	GenerateDebug(ctx context.Context, programST, variablesCSV string) (*pipeline.DebugResult, error)
	GenerateGlue(ctx context.Context, locatedVariablesH string) (*pipeline.GlueResult, error)
}

// Stats carries request counters shared between handler modules.
type Stats struct {
	Requests atomic.Uint64
}

// CompileHandlers contains the four stage endpoints.
type CompileHandlers struct {
	pipeline     CompilerPipeline
	errorAdapter *errors.HTTPErrorAdapter
	stats        *Stats
	maxBodyBytes int64 // 0 = unlimited
}

// NewCompileHandlers creates a new CompileHandlers instance.
func NewCompileHandlers(p CompilerPipeline, stats *Stats, maxBodyBytes int64) *CompileHandlers {
	if stats == nil {
		stats = &Stats{}
	}
	return &CompileHandlers{
		pipeline:     p,
		errorAdapter: errors.NewHTTPErrorAdapter(slog.Default()),
		stats:        stats,
		maxBodyBytes: maxBodyBytes,
	}
}

type generateSTRequest struct {
	PlcXML string `json:"plc_xml"`
}

type compileSTRequest struct {
	ProgramST string `json:"program_st"`
}

type generateDebugRequest struct {
	ProgramST    string `json:"program_st"`
	VariablesCSV string `json:"variables_csv"`
}

// located_variables_h may legitimately be empty (a program with no located
// variables), so presence is detected via the pointer.
type generateGlueVarsRequest struct {
	LocatedVariablesH *string `json:"located_variables_h"`
}

// decode parses the request body into dst, enforcing the POST method and the
// configured body size cap. All rejection happens here, before any workspace
// exists.
func (h *CompileHandlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	h.stats.Requests.Add(1)

	if r.Method != http.MethodPost {
		err := errors.ValidationFailed("method", "only POST is supported").
			WithContext("method", r.Method)
		h.errorAdapter.WriteErrorResponse(w, err)
		return false
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		h.errorAdapter.WriteErrorResponse(w, errors.MalformedRequest(err))
		return false
	}
	return true
}

// requireText rejects missing or blank-after-trim required fields. The text
// itself is never inspected further: invalid program text belongs to the
// external tool, not this layer.
func (h *CompileHandlers) requireText(w http.ResponseWriter, field, value string) bool {
	if strings.TrimSpace(value) == "" {
		h.errorAdapter.WriteErrorResponse(w, errors.ValidationFailed(field, "missing or empty"))
		return false
	}
	return true
}

// HandleGenerateST handles POST /generate-st: PLC XML in, Structured Text out.
func (h *CompileHandlers) HandleGenerateST(w http.ResponseWriter, r *http.Request) {
	var req generateSTRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireText(w, "plc_xml", req.PlcXML) {
		return
	}

	res, err := h.pipeline.GenerateST(r.Context(), req.PlcXML)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	h.respond(w, r, &responses.GenerateSTResponse{
		Output:    res.Output,
		ExitCode:  res.ExitCode,
		ProgramST: res.ProgramST,
	})
}

// HandleCompileST handles POST /compile-st: Structured Text in, C file set out.
func (h *CompileHandlers) HandleCompileST(w http.ResponseWriter, r *http.Request) {
	var req compileSTRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireText(w, "program_st", req.ProgramST) {
		return
	}

	res, err := h.pipeline.CompileST(r.Context(), req.ProgramST)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	h.respond(w, r, &responses.CompileSTResponse{
		Output:   res.Output,
		ExitCode: res.ExitCode,
		Files:    res.Files,
	})
}

// HandleGenerateDebug handles POST /generate-debug: ST and variable table in,
// instrumented ST and debug.c out.
func (h *CompileHandlers) HandleGenerateDebug(w http.ResponseWriter, r *http.Request) {
	var req generateDebugRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.requireText(w, "program_st", req.ProgramST) {
		return
	}
	if !h.requireText(w, "variables_csv", req.VariablesCSV) {
		return
	}

	res, err := h.pipeline.GenerateDebug(r.Context(), req.ProgramST, req.VariablesCSV)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	h.respond(w, r, &responses.GenerateDebugResponse{
		Output:    res.Output,
		ExitCode:  res.ExitCode,
		ProgramST: res.ProgramST,
		DebugC:    res.DebugC,
	})
}

// HandleGenerateGlueVars handles POST /generate-gluevars: located variables
// header in, glueVars.c out.
func (h *CompileHandlers) HandleGenerateGlueVars(w http.ResponseWriter, r *http.Request) {
	var req generateGlueVarsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.LocatedVariablesH == nil {
		h.errorAdapter.WriteErrorResponse(w, errors.ValidationFailed("located_variables_h", "missing"))
		return
	}

	res, err := h.pipeline.GenerateGlue(r.Context(), *req.LocatedVariablesH)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, err)
		return
	}

	h.respond(w, r, &responses.GenerateGlueVarsResponse{
		Output:    res.Output,
		ExitCode:  res.ExitCode,
		GlueVarsC: res.GlueVarsC,
	})
}

// respond writes the assembled stage result. Orchestration succeeded, so the
// status is 200 regardless of the tool's exit code inside the body.
func (h *CompileHandlers) respond(w http.ResponseWriter, r *http.Request, v any) {
	if err := writeJSONPretty(w, r, http.StatusOK, v); err != nil {
		h.errorAdapter.WriteErrorResponse(w, errors.InternalError("failed to write stage response", err))
	}
}
