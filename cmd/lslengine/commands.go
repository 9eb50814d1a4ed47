package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/christophe-duc/lslengine/internal/engine"
	"github.com/christophe-duc/lslengine/internal/value"
	"github.com/christophe-duc/lslengine/pkg/config"
	"github.com/jesseduffield/asciigraph"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"
)

func newCLIEngine(appConfig *config.AppConfig, logger *logrus.Entry) (*engine.Engine, error) {
	return engine.NewEngine(appConfig.Config, logger, noFrontend, engine.HostCallbacks{})
}

func runCompile(appConfig *config.AppConfig, logger *logrus.Entry, in, out string) error {
	// No LSL front end ships with this binary (§19 non-goals); compile
	// only reports that fact instead of pretending to parse source. A
	// host that links its own front end calls internal/engine.Compile
	// directly rather than going through this CLI.
	return fmt.Errorf("lslengine compile %q: %w", in, ErrNoFrontend)
}

func runExecute(appConfig *config.AppConfig, logger *logrus.Entry, in string) error {
	e, err := newCLIEngine(appConfig, logger)
	if err != nil {
		return err
	}

	bc, err := os.ReadFile(in)
	if err != nil {
		return err
	}

	if _, err := e.Load(bc, in); err != nil {
		return err
	}

	const entryPoint = "default::state_entry"
	if _, ok := e.Entry(entryPoint); ok {
		if _, err := e.Call(entryPoint); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(os.Stderr, "lslengine: %s has no %s handler\n", in, entryPoint)
	}

	for _, v := range e.Yields() {
		fmt.Println(formatYield(v))
	}
	return nil
}

func runDisasm(appConfig *config.AppConfig, logger *logrus.Entry, in string) error {
	e, err := newCLIEngine(appConfig, logger)
	if err != nil {
		return err
	}

	bc, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if _, err := e.Load(bc, in); err != nil {
		return err
	}

	fmt.Print(disassembleEntries(e.Entries()))
	return nil
}

func runDiff(appConfig *config.AppConfig, logger *logrus.Entry, aPath, bPath string) error {
	aText, err := disassembleFile(appConfig, logger, aPath)
	if err != nil {
		return err
	}
	bText, err := disassembleFile(appConfig, logger, bPath)
	if err != nil {
		return err
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(aText),
		B:        difflib.SplitLines(bText),
		FromFile: filepath.Base(aPath),
		ToFile:   filepath.Base(bPath),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Println("no differences")
		return nil
	}
	fmt.Print(text)
	return nil
}

func disassembleFile(appConfig *config.AppConfig, logger *logrus.Entry, path string) (string, error) {
	e, err := newCLIEngine(appConfig, logger)
	if err != nil {
		return "", err
	}
	bc, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if _, err := e.Load(bc, path); err != nil {
		return "", err
	}
	return disassembleEntries(e.Entries()), nil
}

// runSchedule plots the clamped tick times a repeating timer fires at
// when the host's clock lags behind the requested interval (§4.10), so
// the clamp behavior can be eyeballed without compiling any script.
func runSchedule() error {
	const interval = 1.0
	const clamp = 2.0
	lag := []float64{0, 1.2, 3.5, 0.4, 0.9, 5.0, 1.0}

	elapsed := 0.0
	series := make([]float64, 0, len(lag))
	for _, l := range lag {
		wait := interval + l
		if wait > clamp {
			wait = clamp
		}
		elapsed += wait
		series = append(series, elapsed)
	}

	graph := asciigraph.Plot(series, asciigraph.Height(10), asciigraph.Caption("clamped timer fire times (s)"))
	fmt.Println(graph)
	return nil
}

func formatYield(v value.Value) string {
	if i, ok := v.AsInteger(); ok {
		return fmt.Sprintf("%d", i)
	}
	switch v.Tag {
	case value.TNumber:
		return fmt.Sprintf("%g", v.Number)
	case value.TString:
		return v.Str
	case value.TNil:
		return "nil"
	default:
		return strings.TrimSpace(v.GoString())
	}
}
