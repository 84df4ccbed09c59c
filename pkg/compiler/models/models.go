// Package models maps model names to the integer ids the engine knows
// them by. Names come from IDE object definition files, optionally
// listed by a level DAT file, and are case-insensitive.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

// Registry is the merged model name table. Level models shadow the
// default set. The registry is immutable once handed to the compiler.
type Registry struct {
	defaults map[string]int32
	level    map[string]int32
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defaults: make(map[string]int32),
		level:    make(map[string]int32),
	}
}

// ID resolves a model name to its id. Level models take precedence over
// default models.
func (r *Registry) ID(name string) (int32, bool) {
	key := strings.ToUpper(name)
	if id, ok := r.level[key]; ok {
		return id, true
	}
	id, ok := r.defaults[key]
	return id, ok
}

// IsFromIDE reports whether the name was loaded from any IDE file.
func (r *Registry) IsFromIDE(name string) bool {
	_, ok := r.ID(name)
	return ok
}

// Len returns the total number of distinct model names.
func (r *Registry) Len() int {
	n := len(r.defaults)
	for k := range r.level {
		if _, dup := r.defaults[k]; !dup {
			n++
		}
	}
	return n
}

// LoadIDE reads an IDE object definition file into the registry.
// IDE files are Windows-1252 encoded, section based:
//
//	objs
//	1100, infernus, vehicle.txd, ...
//	end
//
// Only the sections defining models (objs, tobj, anim, cars, peds, weap) are
// consumed; the model id is the first field and the name the second.
func (r *Registry) LoadIDE(path string, isDefault bool) error {
	lines, err := readLegacyLines(path)
	if err != nil {
		return err
	}

	dest := r.level
	if isDefault {
		dest = r.defaults
	}

	section := ""
	for i, line := range lines {
		line = stripComment(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch lower {
		case "objs", "tobj", "anim", "cars", "peds", "weap":
			section = lower
			continue
		case "end":
			section = ""
			continue
		}
		if section == "" {
			continue
		}
		fields := splitFields(line)
		if len(fields) < 2 {
			return fmt.Errorf("%s:%d: malformed %s entry", path, i+1, section)
		}
		id, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return fmt.Errorf("%s:%d: bad model id %q", path, i+1, fields[0])
		}
		dest[strings.ToUpper(fields[1])] = int32(id)
	}
	return nil
}

// LoadDAT reads a level DAT file, loading every IDE it references.
// Paths inside the DAT are relative to the game root, taken to be the
// directory containing the DAT file.
func (r *Registry) LoadDAT(path string, isDefault bool) error {
	lines, err := readLegacyLines(path)
	if err != nil {
		return err
	}

	root := filepath.Dir(path)
	for i, line := range lines {
		line = stripComment(line)
		if line == "" {
			continue
		}
		fields := splitFields(line)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "IDE") {
			continue
		}
		idePath := filepath.Join(root, filepath.FromSlash(strings.ReplaceAll(fields[1], "\\", "/")))
		if err := r.LoadIDE(idePath, isDefault); err != nil {
			return fmt.Errorf("%s:%d: %w", path, i+1, err)
		}
	}
	return nil
}

// readLegacyLines reads a whole file, decoding it from Windows-1252.
func readLegacyLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return strings.Split(string(decoded), "\n"), nil
}

func stripComment(line string) string {
	for _, marker := range []string{"#", ";", "//"} {
		if i := strings.Index(line, marker); i >= 0 {
			line = line[:i]
		}
	}
	return strings.TrimSpace(strings.TrimSuffix(line, "\r"))
}

// splitFields splits on commas and whitespace, both of which the formats
// use interchangeably.
func splitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
