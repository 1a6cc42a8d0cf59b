// Package protocol describes the wire contract with an external UCI-like
// engine executable: how to spawn it, how to recognize readiness, how to
// ask it to search, and how to parse its output.
package protocol

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Descriptor is an immutable configuration value consumed at engine session
// creation. It is loaded from a YAML file (see Load) but can also be built
// directly for tests.
type Descriptor struct {
	Path           string            `yaml:"path"`
	Init           []string          `yaml:"init"`
	ReadyMarker    string            `yaml:"readyMarker"`
	OptionSet      map[string]string `yaml:"optionSet"`
	GoCommand      string            `yaml:"goCommand"`
	StopCommand    string            `yaml:"stopCommand"`
	QuitCommand    string            `yaml:"quitCommand"`
	InfoPrefix     string            `yaml:"infoPrefix"`
	BestmovePrefix string            `yaml:"bestmovePrefix"`
	InfoGrammar    Grammar           `yaml:"infoGrammar"`
}

// defaults for optional fields, defaulted to UCI convention.
const (
	defaultInfoPrefix     = "info"
	defaultBestmovePrefix = "bestmove"
)

// Load reads a protocol descriptor from a YAML file and applies defaults for
// optional fields.
func Load(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read protocol descriptor %v: %w", path, err)
	}

	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parse protocol descriptor %v: %w", path, err)
	}
	d.applyDefaults()
	return d, nil
}

func (d *Descriptor) applyDefaults() {
	if d.InfoPrefix == "" {
		d.InfoPrefix = defaultInfoPrefix
	}
	if d.BestmovePrefix == "" {
		d.BestmovePrefix = defaultBestmovePrefix
	}
	if len(d.InfoGrammar.Tokens) == 0 {
		d.InfoGrammar = DefaultGrammar()
	}
}

// Validate reports every missing mandatory field and, if checkPath, that
// Path resolves to an executable file. Validation never aborts the process
// by itself; callers decide what to do with the returned error.
func (d Descriptor) Validate(checkPath bool) error {
	var missing []string
	if d.Path == "" {
		missing = append(missing, "path")
	}
	if len(d.Init) == 0 {
		missing = append(missing, "init")
	}
	if d.ReadyMarker == "" {
		missing = append(missing, "readyMarker")
	}
	if d.GoCommand == "" {
		missing = append(missing, "goCommand")
	}
	if d.StopCommand == "" {
		missing = append(missing, "stopCommand")
	}
	if d.QuitCommand == "" {
		missing = append(missing, "quitCommand")
	}
	if len(missing) > 0 {
		return fmt.Errorf("protocol descriptor missing mandatory field(s): %v", strings.Join(missing, ", "))
	}

	if checkPath {
		info, err := os.Stat(d.Path)
		if err != nil {
			return fmt.Errorf("protocol descriptor path %v: %w", d.Path, err)
		}
		if info.IsDir() {
			return fmt.Errorf("protocol descriptor path %v is a directory, not an executable", d.Path)
		}
		if info.Mode()&0111 == 0 {
			return fmt.Errorf("protocol descriptor path %v is not executable", d.Path)
		}
	}
	return nil
}

// FormatGoCommand instantiates the goCommand template with both caps, e.g.
// "go nodes {nodes} movetime {movetime_ms}" -> "go nodes 100000 movetime 5000".
func (d Descriptor) FormatGoCommand(nodeCap int, timeMs int) string {
	line := d.GoCommand
	line = strings.ReplaceAll(line, "{nodes}", fmt.Sprint(nodeCap))
	line = strings.ReplaceAll(line, "{movetime_ms}", fmt.Sprint(timeMs))
	return line
}

// OptionCommands translates OptionSet into setoption-style lines. Every line
// uses the fixed UCI format "setoption name %v value %v"; the descriptor
// chooses only the names and values, not the line layout.
func (d Descriptor) OptionCommands() []string {
	names := make([]string, 0, len(d.OptionSet))
	for name := range d.OptionSet {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic init sequence across runs

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("setoption name %v value %v", name, d.OptionSet[name]))
	}
	return lines
}
