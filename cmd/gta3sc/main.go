package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/cli"
	"github.com/gtamodding/gta3sc/pkg/compiler"
	"github.com/gtamodding/gta3sc/pkg/compiler/commands"
	"github.com/gtamodding/gta3sc/pkg/compiler/models"
	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
	"github.com/gtamodding/gta3sc/pkg/logger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	config, err := cli.ParseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
		return 1
	}
	if config.ShowHelp {
		cli.PrintHelp()
		return 0
	}

	if err := logger.Init(config.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
		return 1
	}
	log := logger.Get()

	table := commands.DefaultTable(config.Options.Header.Game())
	if config.CmdDB != "" {
		table, err = commands.LoadXML(config.CmdDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
			return 1
		}
	}

	registry := models.NewRegistry()
	for _, path := range config.IDEs {
		if err := registry.LoadIDE(path, true); err != nil {
			fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
			return 1
		}
	}
	for _, path := range config.DATs {
		if err := registry.LoadDAT(path, false); err != nil {
			fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
			return 1
		}
	}

	ctx := program.NewContext(config.Options, table, registry)

	units := make([]compiler.Unit, len(config.Inputs))
	for i, in := range config.Inputs {
		units[i] = compiler.Unit{Path: in.Path, Kind: in.Kind}
	}

	log.Debug("compiling", "units", len(units), "config", config.Options.Header.String())
	result, err := compiler.CompileProgram(ctx, units)
	if err != nil {
		if err != compiler.ErrFailed {
			fmt.Fprintf(os.Stderr, "gta3sc: error: %v\n", err)
		}
		return 1
	}
	if code := compiler.ExitCode(ctx); code != 0 {
		return code
	}
	if config.Options.FSyntaxOnly {
		return 0
	}

	output := config.Output
	if output == "" {
		input := mainInput(config.Inputs)
		ext := ".scm"
		if config.Options.EmitIR2 {
			ext = ".ir2"
		}
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ext
	}

	payload := result.SCM
	if config.Options.EmitIR2 {
		payload = result.IR2
	}
	if err := os.WriteFile(output, payload, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "gta3sc: error: failed to write %s: %v\n", output, err)
		return 1
	}
	log.Info("wrote output", "path", output, "bytes", len(payload))

	for name, image := range result.Streamed {
		path := filepath.Join(filepath.Dir(output), strings.ToLower(name)+".scm")
		if err := os.WriteFile(path, image, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "gta3sc: error: failed to write %s: %v\n", path, err)
			return 1
		}
		log.Info("wrote streamed script", "path", path, "bytes", len(image))
	}
	return 0
}

func mainInput(inputs []cli.Input) string {
	for _, in := range inputs {
		if in.Kind == symtable.KindMain {
			return in.Path
		}
	}
	return inputs[0].Path
}
