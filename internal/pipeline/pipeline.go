// Package pipeline implements the four stage orchestrators of the compiler
// service. Each stage stages the caller's text into a fresh workspace, runs
// one external tool with the workspace as its working directory, harvests
// whatever output files the tool produced, and removes the workspace before
// returning.
//
// A nonzero tool exit is a domain result, not an orchestration failure: the
// caller receives the exit code and diagnostics verbatim, with any output
// fields that depend on missing files left nil. Only workspace, file, and
// process-launch failures propagate as errors.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	serrors "github.com/autonomy-edge/compilerd/internal/errors"
	"github.com/autonomy-edge/compilerd/internal/logfields"
	"github.com/autonomy-edge/compilerd/internal/metrics"
	"github.com/autonomy-edge/compilerd/internal/toolchain"
	"github.com/autonomy-edge/compilerd/internal/workspace"
)

// Stage-mandated file names. These are the contract with the external tools;
// callers never influence them.
const (
	fileInputXML    = "plc.xml"
	fileProgramST   = "program.st"
	fileVariableCSV = "variables.csv"
	fileLocatedVars = "LOCATED_VARIABLES.h"
	fileDebugC      = "debug.c"
	fileGlueVarsC   = "glueVars.c"
)

// harvestExtensions is the output pattern for the ST→C stage: iec2c emits a
// program-content-dependent set of C sources, headers, and variable tables.
var harvestExtensions = []string{".c", ".h", ".csv"}

// Tools holds the resolved external tool paths for one invocation.
// Resolved per call through a provider so configuration reloads apply
// without restarting in-flight state.
type Tools struct {
	Xml2st string
	Iec2c  string
}

// Pipeline owns the shared collaborators of all four stage orchestrators.
// It holds no per-request state; every request runs a private workspace.
type Pipeline struct {
	workspaces *workspace.Manager
	invoker    *toolchain.Invoker
	tools      func() Tools
	recorder   metrics.Recorder
}

// New constructs the pipeline. A nil recorder disables metrics.
func New(ws *workspace.Manager, inv *toolchain.Invoker, tools func() Tools, rec metrics.Recorder) *Pipeline {
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Pipeline{
		workspaces: ws,
		invoker:    inv,
		tools:      tools,
		recorder:   rec,
	}
}

// STResult is the outcome of the XML→ST stage.
type STResult struct {
	Output    string
	ExitCode  int
	ProgramST *string
}

// CompileResult is the outcome of the ST→C stage. Files maps harvested
// filenames to their content; cardinality depends on the compiled program.
type CompileResult struct {
	Output   string
	ExitCode int
	Files    map[string]string
}

// DebugResult is the outcome of the debug-generation stage.
type DebugResult struct {
	Output    string
	ExitCode  int
	ProgramST *string
	DebugC    *string
}

// GlueResult is the outcome of the glue-generation stage.
type GlueResult struct {
	Output    string
	ExitCode  int
	GlueVarsC *string
}

// GenerateST runs xml2st in ST-generation mode on the caller's PLC XML.
func (p *Pipeline) GenerateST(ctx context.Context, plcXML string) (*STResult, error) {
	const stage = "generate-st"
	done := p.begin(stage)

	ws, err := p.workspaces.Acquire()
	if err != nil {
		return fail[STResult](done, serrors.WorkspaceError("create", err))
	}
	defer ws.Release()

	if err := ws.WriteFile(fileInputXML, plcXML); err != nil {
		return fail[STResult](done, serrors.ArtifactWriteError(fileInputXML, err))
	}

	tools := p.tools()
	output, exitCode, err := p.invoker.Run(ctx, tools.Xml2st, []string{"--generate-st", fileInputXML}, ws.Path())
	if err != nil {
		return fail[STResult](done, p.launchError(tools.Xml2st, err))
	}

	programST, err := p.harvestFixed(ws, fileProgramST)
	if err != nil {
		return fail[STResult](done, err)
	}

	done(exitCode, nil)
	return &STResult{Output: output, ExitCode: exitCode, ProgramST: programST}, nil
}

// CompileST runs iec2c on the caller's Structured Text. The output file set
// is determined by the program's resource count, so harvesting matches by
// extension rather than fixed names, excluding the stage's own input file.
func (p *Pipeline) CompileST(ctx context.Context, programST string) (*CompileResult, error) {
	const stage = "compile-st"
	done := p.begin(stage)

	ws, err := p.workspaces.Acquire()
	if err != nil {
		return fail[CompileResult](done, serrors.WorkspaceError("create", err))
	}
	defer ws.Release()

	if err := ws.WriteFile(fileProgramST, programST); err != nil {
		return fail[CompileResult](done, serrors.ArtifactWriteError(fileProgramST, err))
	}

	tools := p.tools()
	output, exitCode, err := p.invoker.Run(ctx, tools.Iec2c, []string{fileProgramST}, ws.Path())
	if err != nil {
		return fail[CompileResult](done, p.launchError(tools.Iec2c, err))
	}

	files, err := ws.ReadMatching(map[string]bool{fileProgramST: true}, harvestExtensions)
	if err != nil {
		return fail[CompileResult](done, serrors.ArtifactReadError("*", err))
	}

	done(exitCode, nil)
	return &CompileResult{Output: output, ExitCode: exitCode, Files: files}, nil
}

// GenerateDebug runs xml2st in debug-generation mode against the caller's
// ST program and variable table. The tool rewrites program.st in place and
// emits debug.c; each is harvested independently and may be absent.
func (p *Pipeline) GenerateDebug(ctx context.Context, programST, variablesCSV string) (*DebugResult, error) {
	const stage = "generate-debug"
	done := p.begin(stage)

	ws, err := p.workspaces.Acquire()
	if err != nil {
		return fail[DebugResult](done, serrors.WorkspaceError("create", err))
	}
	defer ws.Release()

	if err := ws.WriteFile(fileProgramST, programST); err != nil {
		return fail[DebugResult](done, serrors.ArtifactWriteError(fileProgramST, err))
	}
	if err := ws.WriteFile(fileVariableCSV, variablesCSV); err != nil {
		return fail[DebugResult](done, serrors.ArtifactWriteError(fileVariableCSV, err))
	}

	tools := p.tools()
	output, exitCode, err := p.invoker.Run(ctx, tools.Xml2st, []string{"--generate-debug", fileProgramST}, ws.Path())
	if err != nil {
		return fail[DebugResult](done, p.launchError(tools.Xml2st, err))
	}

	updatedST, err := p.harvestFixed(ws, fileProgramST)
	if err != nil {
		return fail[DebugResult](done, err)
	}
	debugC, err := p.harvestFixed(ws, fileDebugC)
	if err != nil {
		return fail[DebugResult](done, err)
	}

	done(exitCode, nil)
	return &DebugResult{Output: output, ExitCode: exitCode, ProgramST: updatedST, DebugC: debugC}, nil
}

// GenerateGlue runs xml2st in glue-generation mode on the caller's located
// variables header.
func (p *Pipeline) GenerateGlue(ctx context.Context, locatedVariablesH string) (*GlueResult, error) {
	const stage = "generate-gluevars"
	done := p.begin(stage)

	ws, err := p.workspaces.Acquire()
	if err != nil {
		return fail[GlueResult](done, serrors.WorkspaceError("create", err))
	}
	defer ws.Release()

	if err := ws.WriteFile(fileLocatedVars, locatedVariablesH); err != nil {
		return fail[GlueResult](done, serrors.ArtifactWriteError(fileLocatedVars, err))
	}

	tools := p.tools()
	output, exitCode, err := p.invoker.Run(ctx, tools.Xml2st, []string{"--generate-gluevars", fileLocatedVars}, ws.Path())
	if err != nil {
		return fail[GlueResult](done, p.launchError(tools.Xml2st, err))
	}

	glueVarsC, err := p.harvestFixed(ws, fileGlueVarsC)
	if err != nil {
		return fail[GlueResult](done, err)
	}

	done(exitCode, nil)
	return &GlueResult{Output: output, ExitCode: exitCode, GlueVarsC: glueVarsC}, nil
}

// harvestFixed reads one well-known output file, mapping absence to nil.
func (p *Pipeline) harvestFixed(ws *workspace.Workspace, name string) (*string, error) {
	content, ok, err := ws.ReadFixed(name)
	if err != nil {
		return nil, serrors.ArtifactReadError(name, err)
	}
	if !ok {
		return nil, nil
	}
	return &content, nil
}

func (p *Pipeline) launchError(tool string, err error) *serrors.ServiceError {
	if errors.Is(err, toolchain.ErrTimeout) {
		return serrors.ToolTimeout(tool, err)
	}
	return serrors.ToolLaunchError(tool, err)
}

// begin records in-flight state and returns the completion hook shared by
// all stages: it observes duration and classifies the result.
func (p *Pipeline) begin(stage string) func(exitCode int, err error) {
	start := time.Now()
	p.recorder.AddInFlight(1)
	var finished bool
	return func(exitCode int, err error) {
		if finished {
			return
		}
		finished = true
		elapsed := time.Since(start)
		p.recorder.AddInFlight(-1)
		p.recorder.ObserveStageDuration(stage, elapsed)
		switch {
		case err != nil:
			p.recorder.IncStageResult(stage, metrics.ResultOrchestrationError)
			slog.Error("Stage orchestration failed",
				logfields.Stage(stage),
				logfields.DurationMS(float64(elapsed.Milliseconds())),
				logfields.Error(err))
		case exitCode != 0:
			p.recorder.IncStageResult(stage, metrics.ResultToolError)
			p.recorder.IncToolExitNonzero(stage)
			slog.Info("Stage completed with tool diagnostics",
				logfields.Stage(stage),
				logfields.ExitCode(exitCode),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
		default:
			p.recorder.IncStageResult(stage, metrics.ResultSuccess)
			slog.Info("Stage completed",
				logfields.Stage(stage),
				logfields.DurationMS(float64(elapsed.Milliseconds())))
		}
	}
}

// fail finishes the stage observation with an orchestration error and
// returns it alongside a typed nil result.
func fail[T any](done func(int, error), err error) (*T, error) {
	done(-1, err)
	return nil, err
}
