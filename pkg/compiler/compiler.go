// Package compiler provides the compilation pipeline for GTA3script
// sources (.sc files). It transforms source code into IR2 listings or
// binary .scm images through five phases:
//  1. Lexer/Parser: syntax tree construction
//  2. Declaration pass: globals, constants, script names
//  3. Semantic analysis: command resolution, typing, entity tracking
//  4. Control-flow lowering: structured statements to labeled jumps
//  5. Code generation: IR2 text or the version-specific binary layout
//
// Phases 3 and 4 run as one job per script; jobs are independent and
// run in parallel. A fatal diagnostic halts its own job only.
package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gtamodding/gta3sc/pkg/compiler/codegen"
	"github.com/gtamodding/gta3sc/pkg/compiler/ir"
	"github.com/gtamodding/gta3sc/pkg/compiler/lexer"
	"github.com/gtamodding/gta3sc/pkg/compiler/lower"
	"github.com/gtamodding/gta3sc/pkg/compiler/parser"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/sema"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// ErrFailed is returned when diagnostics suppressed output: the error
// or fatal counters are non-zero and no image was produced.
var ErrFailed = errors.New("compilation failed")

// Unit is one translation unit going into a compilation.
type Unit struct {
	Path string
	Kind symtable.ScriptKind
	// Source overrides reading Path, used by tests and tooling.
	Source string
}

// Result is a successful compilation's output.
type Result struct {
	// IR2 is the textual listing, set when emit_ir2 is on.
	IR2 []byte
	// SCM is the binary image with its header.
	SCM []byte
	// Streamed holds the standalone streamed script images by name.
	Streamed map[string][]byte
}

// job carries the per-script state through the pipeline.
type job struct {
	unit   Unit
	script *symtable.Script
	source string
	file   *parser.ScriptFile
	models []string
	body   *ir.Body
}

// CompileProgram compiles a set of units into one program. Diagnostics
// go to the context's sink; when any error or fatal was raised the
// returned error is ErrFailed and no output is produced.
func CompileProgram(ctx *program.Context, units []Unit) (*Result, error) {
	jobs := make([]*job, len(units))
	for i, unit := range units {
		stem := strings.ToUpper(strings.TrimSuffix(filepath.Base(unit.Path), filepath.Ext(unit.Path)))
		jobs[i] = &job{
			unit: unit,
			script: &symtable.Script{
				Path: unit.Path,
				Name: stem,
				Kind: unit.Kind,
			},
		}
	}

	// Phase 1: read and parse, one job per unit.
	if err := forEachJob(jobs, 0, func(j *job) error {
		source := j.unit.Source
		if source == "" {
			data, err := os.ReadFile(j.unit.Path)
			if err != nil {
				return ctx.Fatal(program.InFile(j.unit.Path), "failed to read source: %v", err)
			}
			source = string(data)
		}
		j.source = source

		p := parser.New(lexer.New(source))
		file, errs := p.ParseFile(j.script.Name, j.unit.Path)
		for _, err := range errs {
			var pe *parser.ParserError
			if errors.As(err, &pe) {
				ctx.Error(program.Location{
					File:       j.unit.Path,
					Line:       pe.Line,
					Column:     pe.Column,
					SourceLine: sourceLine(source, pe.Line),
				}, "%s", pe.Message)
			} else {
				ctx.Error(program.InFile(j.unit.Path), "%s", err)
			}
		}
		j.file = file
		return nil
	}); err != nil && !errors.Is(err, program.ErrHalt) {
		return nil, err
	}

	// Phase 2: sequential declaration pass, in input order, so the
	// global variable layout is deterministic.
	table := symtable.NewTable()
	seedDefines(ctx, table)
	for _, j := range jobs {
		if j.file == nil {
			continue
		}
		table.AddScript(j.script)
		sema.Declare(ctx, table, j.script, j.file, j.source)
	}

	// Phases 3+4: analysis and lowering, one parallel job per script.
	// The guesser declares globals at first use, so its layout depends
	// on analysis order; compile sequentially then to keep outputs
	// deterministic.
	workers := runtime.NumCPU()
	if ctx.Opt.Guesser {
		workers = 1
	}
	if err := forEachJob(jobs, workers, func(j *job) error {
		if j.file == nil {
			return nil
		}
		analyzer := sema.New(ctx, table, j.script, j.file, j.source)
		stmts, err := analyzer.Analyze()
		if err != nil {
			return err
		}
		j.models = analyzer.UsedModels()
		if ctx.Opt.FSyntaxOnly {
			return nil
		}
		body, err := lower.Lower(ctx, j.script, stmts)
		if err != nil {
			return err
		}
		j.body = body
		return nil
	}); err != nil && !errors.Is(err, program.ErrHalt) {
		return nil, err
	}

	if ctx.HasError() {
		return nil, ErrFailed
	}
	if ctx.Opt.FSyntaxOnly {
		return &Result{}, nil
	}

	// Phase 5: emission, sequential and deterministic.
	bodies := make([]*ir.Body, 0, len(jobs))
	modelSet := make(map[string]bool)
	for _, j := range jobs {
		if j.body != nil {
			bodies = append(bodies, j.body)
		}
		for _, m := range j.models {
			modelSet[m] = true
		}
	}
	models := make([]string, 0, len(modelSet))
	for m := range modelSet {
		models = append(models, m)
	}
	sort.Strings(models)

	result := &Result{}
	if ctx.Opt.EmitIR2 {
		var buf strings.Builder
		if err := codegen.EmitIR2(&buf, bodies); err != nil {
			return nil, err
		}
		result.IR2 = []byte(buf.String())
		return result, nil
	}

	out, err := codegen.EmitSCM(ctx, &codegen.Program{
		GlobalWords: table.GlobalWords(),
		Models:      models,
		Bodies:      bodies,
	})
	if err != nil {
		if errors.Is(err, program.ErrHalt) {
			return nil, ErrFailed
		}
		return nil, err
	}
	result.SCM = out.Main
	result.Streamed = out.Streamed
	return result, nil
}

// CompileString compiles a single main script from a source string.
func CompileString(ctx *program.Context, name, source string) (*Result, error) {
	return CompileProgram(ctx, []Unit{{Path: name + ".sc", Kind: symtable.KindMain, Source: source}})
}

// forEachJob runs fn over the jobs, workers at a time (0 = sequential).
// A job halted by a fatal diagnostic stops only itself; any other error
// is returned once every job has finished (the other jobs are not
// cancelled).
func forEachJob(jobs []*job, workers int, fn func(*job) error) error {
	if workers <= 1 {
		for _, j := range jobs {
			if err := fn(j); err != nil && !errors.Is(err, program.ErrHalt) {
				return err
			}
		}
		return nil
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, j := range jobs {
		g.Go(func() error {
			if err := fn(j); err != nil && !errors.Is(err, program.ErrHalt) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// seedDefines copies -D symbols into the constant table. Values must be
// integers; anything else is reported once.
func seedDefines(ctx *program.Context, table *symtable.Table) {
	for symbol, value := range ctx.Opt.Defines() {
		v, err := strconv.ParseInt(value, 10, 32)
		if err != nil {
			ctx.Warning(program.NoContext(), "-D %s=%s: value is not an integer, using 1", symbol, value)
			v = 1
		}
		table.DefineConstant(symbol, int32(v))
	}
}

func sourceLine(source string, line int) string {
	if line <= 0 {
		return ""
	}
	lines := strings.Split(source, "\n")
	if line > len(lines) {
		return ""
	}
	return strings.TrimSuffix(lines[line-1], "\r")
}

// ExitCode maps the diagnostic counters onto the process exit status.
func ExitCode(ctx *program.Context) int {
	if ctx.HasError() {
		return 1
	}
	return 0
}
