package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	serrors "github.com/autonomy-edge/compilerd/internal/errors"
	"github.com/autonomy-edge/compilerd/internal/toolchain"
	"github.com/autonomy-edge/compilerd/internal/workspace"
)

// fakeTool writes an executable shell script standing in for xml2st/iec2c.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixtures require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-tool")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o750))
	return path
}

func newTestPipeline(t *testing.T, xml2st, iec2c string) (*Pipeline, string) {
	t.Helper()
	base := t.TempDir()
	p := New(
		workspace.NewManager(base),
		&toolchain.Invoker{},
		func() Tools { return Tools{Xml2st: xml2st, Iec2c: iec2c} },
		nil,
	)
	return p, base
}

// requireNoLeakedWorkspace asserts the isolation invariant: no directory
// matching the workspace prefix survives a completed stage call.
func requireNoLeakedWorkspace(t *testing.T, base string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasPrefix(e.Name(), workspace.Prefix),
			"workspace %s leaked", e.Name())
	}
}

func TestGenerateSTSuccess(t *testing.T) {
	// Mirrors xml2st --generate-st: reads plc.xml, writes program.st.
	tool := fakeTool(t, `
[ "$1" = "--generate-st" ] || { echo "bad mode $1" 1>&2; exit 2; }
[ -f "$2" ] || { echo "missing input $2" 1>&2; exit 2; }
echo "PROGRAM prog0" > program.st
echo "END_PROGRAM" >> program.st
echo "Generating ST program..."
`)
	p, base := newTestPipeline(t, tool, tool)

	res, err := p.GenerateST(context.Background(), "<project><pou name=\"main\"/></project>")
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Output, "Generating ST program...")
	require.NotNil(t, res.ProgramST)
	require.Contains(t, *res.ProgramST, "PROGRAM prog0")
	requireNoLeakedWorkspace(t, base)
}

func TestGenerateSTToolFailureYieldsNilProgram(t *testing.T) {
	tool := fakeTool(t, `
echo "error: unexpected element at line 1" 1>&2
exit 1
`)
	p, base := newTestPipeline(t, tool, tool)

	res, err := p.GenerateST(context.Background(), "not really xml")
	require.NoError(t, err, "tool failure is a domain result, not an orchestration error")
	require.Equal(t, 1, res.ExitCode)
	require.Contains(t, res.Output, "unexpected element")
	require.Nil(t, res.ProgramST)
	requireNoLeakedWorkspace(t, base)
}

func TestGenerateSTMissingToolIsOrchestrationError(t *testing.T) {
	p, base := newTestPipeline(t, "/nonexistent/xml2st", "/nonexistent/iec2c")

	res, err := p.GenerateST(context.Background(), "<project/>")
	require.Error(t, err)
	require.Nil(t, res)
	require.True(t, serrors.IsCategory(err, serrors.CategoryToolchain))
	requireNoLeakedWorkspace(t, base)
}

func TestCompileSTHarvestsVariableFileSet(t *testing.T) {
	// Mirrors iec2c: one C/h pair per resource plus shared outputs, count
	// depending on program content (here: one RES file per RESOURCE line).
	tool := fakeTool(t, `
echo "shared" > POUS.c
echo "shared header" > POUS.h
echo "LOCATION,TYPE" > LOCATED_VARIABLES.csv
i=0
grep RESOURCE program.st | while read -r line; do
  echo "$line" > "RES$i.c"
  i=$((i+1))
done
echo "compiled OK"
`)
	p, base := newTestPipeline(t, tool, tool)

	st := "PROGRAM prog0\nEND_PROGRAM\nRESOURCE res0\nRESOURCE res1\nRESOURCE res2\n"
	res, err := p.CompileST(context.Background(), st)
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)

	// Fixed files plus exactly three resource-named sources; never the input.
	require.Len(t, res.Files, 6)
	require.NotContains(t, res.Files, "program.st")
	for _, name := range []string{"POUS.c", "POUS.h", "LOCATED_VARIABLES.csv", "RES0.c", "RES1.c", "RES2.c"} {
		require.Contains(t, res.Files, name)
	}
	require.Equal(t, "RESOURCE res1\n", res.Files["RES1.c"])
	requireNoLeakedWorkspace(t, base)
}

func TestCompileSTFailureHarvestsPartialOutput(t *testing.T) {
	// A tool that emits one file before failing: partial output is still
	// harvested alongside the nonzero exit.
	tool := fakeTool(t, `
echo "partial" > POUS.c
echo "fatal: unresolved symbol" 1>&2
exit 3
`)
	p, base := newTestPipeline(t, tool, tool)

	res, err := p.CompileST(context.Background(), "PROGRAM broken\n")
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
	require.Contains(t, res.Output, "unresolved symbol")
	require.Equal(t, map[string]string{"POUS.c": "partial\n"}, res.Files)
	requireNoLeakedWorkspace(t, base)
}

func TestGenerateDebugIndependentHarvest(t *testing.T) {
	// Updates program.st but fails before emitting debug.c: the two fixed
	// outputs are absent-tolerant independently.
	tool := fakeTool(t, `
[ "$1" = "--generate-debug" ] || { echo "bad mode" 1>&2; exit 2; }
[ -f variables.csv ] || { echo "missing variables.csv" 1>&2; exit 2; }
echo "(* instrumented *)" >> program.st
echo "warning: no debug symbols" 1>&2
exit 1
`)
	p, base := newTestPipeline(t, tool, tool)

	res, err := p.GenerateDebug(context.Background(), "PROGRAM prog0\n", "VAR,ADDR\n")
	require.NoError(t, err)
	require.Equal(t, 1, res.ExitCode)
	require.NotNil(t, res.ProgramST)
	require.Contains(t, *res.ProgramST, "instrumented")
	require.Nil(t, res.DebugC)
	requireNoLeakedWorkspace(t, base)
}

func TestGenerateDebugSuccess(t *testing.T) {
	tool := fakeTool(t, `
echo "(* instrumented *)" >> program.st
echo "int debug_vars[1];" > debug.c
`)
	p, _ := newTestPipeline(t, tool, tool)

	res, err := p.GenerateDebug(context.Background(), "PROGRAM prog0\n", "VAR,ADDR\n")
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.NotNil(t, res.ProgramST)
	require.NotNil(t, res.DebugC)
	require.Equal(t, "int debug_vars[1];\n", *res.DebugC)
}

func TestGenerateGlue(t *testing.T) {
	tool := fakeTool(t, `
[ "$1" = "--generate-gluevars" ] || { echo "bad mode" 1>&2; exit 2; }
echo "void glueVars(void) {}" > glueVars.c
`)
	p, base := newTestPipeline(t, tool, tool)

	res, err := p.GenerateGlue(context.Background(), "__LOCATED_VAR(BOOL,__QX0_0,Q,X,0,0)\n")
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.NotNil(t, res.GlueVarsC)
	require.Contains(t, *res.GlueVarsC, "glueVars")
	requireNoLeakedWorkspace(t, base)
}

func TestGenerateGlueAcceptsEmptyHeader(t *testing.T) {
	tool := fakeTool(t, `
[ -f LOCATED_VARIABLES.h ] || { echo "missing header" 1>&2; exit 2; }
echo "void glueVars(void) {}" > glueVars.c
`)
	p, _ := newTestPipeline(t, tool, tool)

	res, err := p.GenerateGlue(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.NotNil(t, res.GlueVarsC)
}

func TestConcurrentStagesDoNotCrossContaminate(t *testing.T) {
	// The fake tool copies its input into the output, so any workspace
	// sharing would surface as another request's text in the result.
	tool := fakeTool(t, `
cp plc.xml program.st
`)
	p, base := newTestPipeline(t, tool, tool)

	const n = 8
	var wg sync.WaitGroup
	results := make([]*STResult, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.GenerateST(context.Background(), fmt.Sprintf("payload-%d", i))
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i].ProgramST)
		require.Equal(t, fmt.Sprintf("payload-%d", i), *results[i].ProgramST)
	}
	requireNoLeakedWorkspace(t, base)
}

func TestIdempotentInvocation(t *testing.T) {
	// Workspace naming must not leak into output content.
	tool := fakeTool(t, `
echo "deterministic diagnostics"
echo "PROGRAM prog0" > program.st
`)
	p, _ := newTestPipeline(t, tool, tool)

	first, err := p.GenerateST(context.Background(), "<project/>")
	require.NoError(t, err)
	second, err := p.GenerateST(context.Background(), "<project/>")
	require.NoError(t, err)

	require.Equal(t, first.Output, second.Output)
	require.Equal(t, first.ExitCode, second.ExitCode)
	require.Equal(t, *first.ProgramST, *second.ProgramST)
}
