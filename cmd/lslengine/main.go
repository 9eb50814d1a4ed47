// Command lslengine is a thin CLI around internal/engine: compile a unit
// to the persisted bytecode format, load and run one, disassemble or diff
// two compiled units, and (for a quick sanity check with no script at
// all) plot a synthetic timer schedule. Modeled directly on the
// teacher's main.go: flaggy for flags/subcommands, build info recovered
// from debug.ReadBuildInfo when no version was baked in by -ldflags, and
// a go-errors-wrapped stack trace on any fatal error.
package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/christophe-duc/lslengine/pkg/config"
	lsllog "github.com/christophe-duc/lslengine/pkg/log"
	"github.com/go-errors/errors"
	yaml "github.com/goccy/go-yaml"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"
)

const defaultVersion = "unversioned"

var (
	commit      string
	version     = defaultVersion
	date        string
	buildSource = "unknown"

	configFlag    = false
	debuggingFlag = false

	compileCmd  = flaggy.NewSubcommand("compile")
	executeCmd  = flaggy.NewSubcommand("execute")
	disasmCmd   = flaggy.NewSubcommand("disasm")
	diffCmd     = flaggy.NewSubcommand("diff")
	scheduleCmd = flaggy.NewSubcommand("debug-schedule")

	compileIn, compileOut string
	executeIn             string
	disasmIn              string
	diffA, diffB           string
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, buildSource, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("lslengine")
	flaggy.SetDescription("A bytecode compiler, fork-server persistence engine, and event/timer runtime for LSL scripts")
	flaggy.DefaultParser.AdditionalHelpPrepend = "https://github.com/christophe-duc/lslengine"

	flaggy.Bool(&configFlag, "c", "config", "Print the current default config")
	flaggy.Bool(&debuggingFlag, "d", "debug", "a boolean")
	flaggy.SetVersion(info)

	compileCmd.Description = "Compile an LSL source file (requires a front end registered at build time) to a bytecode blob"
	compileCmd.AddPositionalValue(&compileIn, "source", 1, true, "LSL source file")
	compileCmd.String(&compileOut, "o", "out", "output bytecode file (default: <source>.lslc)")
	flaggy.AttachSubcommand(compileCmd, 1)

	executeCmd.Description = "Load a compiled unit and run its default::state_entry handler, printing any yields"
	executeCmd.AddPositionalValue(&executeIn, "unit", 1, true, "compiled bytecode file")
	flaggy.AttachSubcommand(executeCmd, 1)

	disasmCmd.Description = "Disassemble every entry point in a compiled unit"
	disasmCmd.AddPositionalValue(&disasmIn, "unit", 1, true, "compiled bytecode file")
	flaggy.AttachSubcommand(disasmCmd, 1)

	diffCmd.Description = "Unified-diff the disassembly of two compiled units"
	diffCmd.AddPositionalValue(&diffA, "a", 1, true, "first compiled bytecode file")
	diffCmd.AddPositionalValue(&diffB, "b", 2, true, "second compiled bytecode file")
	flaggy.AttachSubcommand(diffCmd, 1)

	scheduleCmd.Description = "Plot a synthetic repeating-timer schedule to sanity-check the timer clamp math with no script involved"
	flaggy.AttachSubcommand(scheduleCmd, 1)

	flaggy.Parse()

	if configFlag {
		var buf bytes.Buffer
		encoder := yaml.NewEncoder(&buf)
		defaultCfg := config.DefaultConfig()
		if err := encoder.Encode(&defaultCfg); err != nil {
			log.Fatal(err.Error())
		}
		fmt.Printf("%v\n", buf.String())
		os.Exit(0)
	}

	appConfig, err := config.NewAppConfig("lslengine", version, commit, date, buildSource, debuggingFlag)
	if err != nil {
		log.Fatal(err.Error())
	}
	logger := lsllog.NewLogger(appConfig)

	switch {
	case compileCmd.Used:
		err = runCompile(appConfig, logger, compileIn, compileOut)
	case executeCmd.Used:
		err = runExecute(appConfig, logger, executeIn)
	case disasmCmd.Used:
		err = runDisasm(appConfig, logger, disasmIn)
	case diffCmd.Used:
		err = runDiff(appConfig, logger, diffA, diffB)
	case scheduleCmd.Used:
		err = runSchedule()
	default:
		flaggy.ShowHelpAndExit("")
		return
	}

	if err != nil {
		newErr := errors.Wrap(err, 0)
		stackTrace := newErr.ErrorStack()
		logger.Error(stackTrace)
		log.Fatalf("lslengine: %s\n\n%s", err.Error(), stackTrace)
	}
}

func updateBuildInfo() {
	if version != defaultVersion {
		return
	}
	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
		return setting.Key == "vcs.revision"
	})
	if ok {
		commit = revision.Value
		version = safeTruncate(revision.Value, 7)
	}

	t, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
		return setting.Key == "vcs.time"
	})
	if ok {
		date = t.Value
	}
}

func safeTruncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
