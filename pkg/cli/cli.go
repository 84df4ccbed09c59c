// Package cli parses the compiler's command line. The surface is
// GCC-like (-fswitch, -emit-ir2, --cleo[=N], repeated -D SYM[=VAL]),
// which the stdlib flag package cannot express, so the arguments are
// scanned directly.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gtamodding/gta3sc/pkg/compiler/program"
	"github.com/gtamodding/gta3sc/pkg/compiler/symtable"
)

// Input is one translation unit named on the command line.
type Input struct {
	Path string
	Kind symtable.ScriptKind
}

// Config holds the parsed command line.
type Config struct {
	Options  program.Options
	Inputs   []Input
	Output   string
	IDEs     []string
	DATs     []string
	CmdDB    string // XML command database path; empty uses the built-in
	LogLevel string
	ShowHelp bool
}

// ParseArgs parses the command line into a Config.
func ParseArgs(args []string) (*Config, error) {
	config := &Config{
		Options:  program.NewOptions(),
		LogLevel: "info",
	}
	configured := false

	takeValue := func(arg, name string, i *int) (string, error) {
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v, nil
		}
		if arg == name && *i+1 < len(args) {
			*i++
			return args[*i], nil
		}
		return "", fmt.Errorf("%s requires a value", name)
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "-h" || arg == "--help":
			config.ShowHelp = true

		case arg == "--config" || strings.HasPrefix(arg, "--config="):
			name, err := takeValue(arg, "--config", &i)
			if err != nil {
				return nil, err
			}
			opt, err := program.Preset(name)
			if err != nil {
				return nil, err
			}
			// flags seen before --config survive the preset
			defines := config.Options.Defines()
			merged := opt
			applyEarlyFlags(&merged, &config.Options)
			for sym, val := range defines {
				merged.Define(sym, val)
			}
			config.Options = merged
			configured = true

		case arg == "--guesser":
			config.Options.Guesser = true
		case arg == "--pedantic":
			config.Options.Pedantic = true
		case arg == "-emit-ir2":
			config.Options.EmitIR2 = true
		case arg == "-fsyntax-only":
			config.Options.FSyntaxOnly = true
		case arg == "-fswitch":
			config.Options.FSwitch = true
		case arg == "-farrays":
			config.Options.FArrays = true
		case arg == "-fscope-then-label":
			config.Options.ScopeThenLabel = true
		case arg == "-fbreak-continue":
			config.Options.AllowBreakContinue = true
		case arg == "-fskip-single-ifs":
			config.Options.SkipSingleIfs = true
		case arg == "-frelax-not":
			config.Options.RelaxNot = true
		case arg == "-foptimize-zero-floats":
			config.Options.OptimizeZeroFloats = true
		case arg == "--headerless":
			config.Options.Headerless = true
		case arg == "--streamed-scripts":
			config.Options.StreamedScripts = true
		case arg == "--local-offsets":
			config.Options.UseLocalOffsets = true

		case arg == "--cleo" || strings.HasPrefix(arg, "--cleo="):
			version := uint8(0)
			if v, ok := strings.CutPrefix(arg, "--cleo="); ok {
				n, err := strconv.ParseUint(v, 10, 8)
				if err != nil {
					return nil, fmt.Errorf("bad --cleo version %q", v)
				}
				version = uint8(n)
			}
			config.Options.Cleo = &version

		case arg == "-D" || strings.HasPrefix(arg, "-D"):
			spec := strings.TrimPrefix(arg, "-D")
			if spec == "" {
				if i+1 >= len(args) {
					return nil, fmt.Errorf("-D requires a symbol")
				}
				i++
				spec = args[i]
			}
			symbol, value, hasValue := strings.Cut(spec, "=")
			if symbol == "" {
				return nil, fmt.Errorf("-D requires a symbol")
			}
			if hasValue {
				config.Options.Define(symbol, value)
			} else {
				config.Options.Define(symbol)
			}

		case arg == "-o" || strings.HasPrefix(arg, "-o="):
			v, err := takeValue(arg, "-o", &i)
			if err != nil {
				return nil, err
			}
			config.Output = v

		case arg == "--ide" || strings.HasPrefix(arg, "--ide="):
			v, err := takeValue(arg, "--ide", &i)
			if err != nil {
				return nil, err
			}
			config.IDEs = append(config.IDEs, v)

		case arg == "--dat" || strings.HasPrefix(arg, "--dat="):
			v, err := takeValue(arg, "--dat", &i)
			if err != nil {
				return nil, err
			}
			config.DATs = append(config.DATs, v)

		case arg == "--cmddb" || strings.HasPrefix(arg, "--cmddb="):
			v, err := takeValue(arg, "--cmddb", &i)
			if err != nil {
				return nil, err
			}
			config.CmdDB = v

		case arg == "--subscript" || strings.HasPrefix(arg, "--subscript="):
			v, err := takeValue(arg, "--subscript", &i)
			if err != nil {
				return nil, err
			}
			config.Inputs = append(config.Inputs, Input{Path: v, Kind: symtable.KindSubscript})

		case arg == "--mission" || strings.HasPrefix(arg, "--mission="):
			v, err := takeValue(arg, "--mission", &i)
			if err != nil {
				return nil, err
			}
			config.Inputs = append(config.Inputs, Input{Path: v, Kind: symtable.KindMission})

		case arg == "--streamed" || strings.HasPrefix(arg, "--streamed="):
			v, err := takeValue(arg, "--streamed", &i)
			if err != nil {
				return nil, err
			}
			config.Inputs = append(config.Inputs, Input{Path: v, Kind: symtable.KindStreamed})

		case arg == "--log-level" || strings.HasPrefix(arg, "--log-level="):
			v, err := takeValue(arg, "--log-level", &i)
			if err != nil {
				return nil, err
			}
			config.LogLevel = strings.ToLower(v)

		case strings.HasPrefix(arg, "-"):
			return nil, fmt.Errorf("unknown option '%s'", arg)

		default:
			config.Inputs = append(config.Inputs, Input{Path: arg, Kind: symtable.KindMain})
		}
	}

	if !config.ShowHelp {
		if !configured {
			return nil, fmt.Errorf("missing --config={gta3,gtavc,gtasa}")
		}
		if !hasMain(config.Inputs) {
			return nil, fmt.Errorf("missing input file")
		}
	}
	return config, nil
}

func hasMain(inputs []Input) bool {
	for _, in := range inputs {
		if in.Kind == symtable.KindMain {
			return true
		}
	}
	return false
}

// applyEarlyFlags re-applies option flags that were set before the
// preset replaced the option record.
func applyEarlyFlags(dst, early *program.Options) {
	base := program.NewOptions()
	if early.Guesser != base.Guesser {
		dst.Guesser = early.Guesser
	}
	if early.Pedantic != base.Pedantic {
		dst.Pedantic = early.Pedantic
	}
	if early.EmitIR2 != base.EmitIR2 {
		dst.EmitIR2 = early.EmitIR2
	}
	if early.FSyntaxOnly != base.FSyntaxOnly {
		dst.FSyntaxOnly = early.FSyntaxOnly
	}
	if early.FSwitch != base.FSwitch {
		dst.FSwitch = early.FSwitch
	}
	if early.FArrays != base.FArrays {
		dst.FArrays = early.FArrays
	}
	if early.ScopeThenLabel != base.ScopeThenLabel {
		dst.ScopeThenLabel = early.ScopeThenLabel
	}
	if early.AllowBreakContinue != base.AllowBreakContinue {
		dst.AllowBreakContinue = early.AllowBreakContinue
	}
	if early.SkipSingleIfs != base.SkipSingleIfs {
		dst.SkipSingleIfs = early.SkipSingleIfs
	}
	if early.RelaxNot != base.RelaxNot {
		dst.RelaxNot = early.RelaxNot
	}
	if early.OptimizeZeroFloats != base.OptimizeZeroFloats {
		dst.OptimizeZeroFloats = early.OptimizeZeroFloats
	}
	if early.Headerless != base.Headerless {
		dst.Headerless = early.Headerless
	}
	if early.StreamedScripts != base.StreamedScripts {
		dst.StreamedScripts = early.StreamedScripts
	}
	if early.UseLocalOffsets != base.UseLocalOffsets {
		dst.UseLocalOffsets = early.UseLocalOffsets
	}
	if early.Cleo != nil {
		dst.Cleo = early.Cleo
	}
}

// PrintHelp writes the usage text.
func PrintHelp() {
	fmt.Fprintf(os.Stdout, `gta3sc - GTA3script compiler

Usage:
  gta3sc --config=<game> [options] main.sc [--subscript=FILE]... [--mission=FILE]...

Options:
  --config={gta3,gtavc,gtasa}  Target game (header layout and command set)
  -o <file>                    Output file (default: input with .scm/.ir2)
  -emit-ir2                    Emit the textual IR2 listing instead of binary
  -fsyntax-only                Parse and analyze only, no output
  --guesser                    Infer variable types from first use
  --pedantic                   Escalate nonstandard usage to errors
  -fswitch                     Enable the SWITCH statement
  -farrays                     Enable array syntax
  -fscope-then-label           Alter label/scope precedence
  -fbreak-continue             Allow BREAK/CONTINUE inside loops
  -fskip-single-ifs            Omit ANDOR on single-condition IFs
  -frelax-not                  Allow NOT on any command
  -foptimize-zero-floats       Encode 0.0 literals as a one-byte integer
  --cleo[=N]                   Emit CLEO output, format version N
  --headerless                 Omit the SCM header
  --streamed-scripts           Emit the streamed-script table (gtasa)
  --local-offsets              Use negated local offsets in missions
  -D SYM[=VAL]                 Predefine a preprocessor symbol
  --ide <file>                 Load model names from an IDE file
  --dat <file>                 Load model names from a level DAT file
  --cmddb <file>               Load the command database from XML
  --subscript <file>           Compile file as a subscript
  --mission <file>             Compile file as a mission script
  --streamed <file>            Compile file as a streamed script
  --log-level <level>          debug, info, warn or error (default: info)
  -h, --help                   Show this help
`)
}
