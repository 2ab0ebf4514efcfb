package prompt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

// File is the on-disk shape of a template, in YAML or JSON.
//
// Example:
//
//	category: movement
//	description: Extracts direction and distance from movement commands.
//	version: "2"
//	language_support: [en, ru]
//	required_placeholders: [user_command]
//	prompt_template: |
//	  Command: "{user_command}"
//	  <answer>{"action": "go", "direction": "north", "confidence": 0.9}</answer>
type File struct {
	Category             string         `yaml:"category" json:"category"`
	Description          string         `yaml:"description" json:"description"`
	Version              string         `yaml:"version" json:"version"`
	LanguageSupport      []string       `yaml:"language_support" json:"language_support"`
	ConfidenceGuidelines map[string]any `yaml:"confidence_guidelines" json:"confidence_guidelines"`
	RequiredPlaceholders []string       `yaml:"required_placeholders" json:"required_placeholders"`
	PromptTemplate       string         `yaml:"prompt_template" json:"prompt_template"`
}

// WarningKind classifies a [LoadWarning].
type WarningKind string

const (
	WarnUnreadable         WarningKind = "unreadable"
	WarnDecode             WarningKind = "decode"
	WarnMissingPlaceholder WarningKind = "missing_placeholder"
	WarnInvalid            WarningKind = "invalid"
	WarnRepaired           WarningKind = "repaired"
	WarnDuplicate          WarningKind = "duplicate"
	WarnBuiltinBase        WarningKind = "builtin_base"
)

// LoadWarning is a non-fatal problem found while loading a template
// directory. Only [WarnRepaired] templates make it into the set.
type LoadWarning struct {
	File string
	Kind WarningKind
	Err  error
}

func (w LoadWarning) String() string {
	if w.Err == nil {
		return fmt.Sprintf("%s: %s", w.File, w.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", w.File, w.Kind, w.Err)
}

// Load reads every .yaml, .yml and .json file in dir into a [Set]. A file
// that fails to load is skipped with a warning; Load only returns an error
// when dir itself cannot be listed. Files are processed in name order and the
// first file for a category wins. When no file provides a usable base
// template the built-in router template is used.
func Load(dir string) (*Set, []LoadWarning, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("prompt: read template dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isTemplateFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var warnings []LoadWarning
	templates := make(map[command.Category]*Template, len(names)+1)
	for _, name := range names {
		path := filepath.Join(dir, name)
		t, warn := loadFile(path)
		if warn != nil {
			warnings = append(warnings, *warn)
			if warn.Kind != WarnRepaired {
				continue
			}
		}
		if prev, dup := templates[t.Category]; dup {
			warnings = append(warnings, LoadWarning{
				File: path,
				Kind: WarnDuplicate,
				Err:  fmt.Errorf("category %q already provided by %s", t.Category, prev.Source),
			})
			continue
		}
		templates[t.Category] = t
	}

	if _, ok := templates[command.Base]; !ok {
		templates[command.Base] = builtinBase()
		warnings = append(warnings, LoadWarning{File: dir, Kind: WarnBuiltinBase})
	}
	return newSet(templates), warnings, nil
}

// loadFile loads a single template file. The returned warning is nil on a
// clean load, of kind [WarnRepaired] when the template was repaired (the
// template is still returned), and of any other kind when it was rejected.
func loadFile(path string) (*Template, *LoadWarning) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadWarning{File: path, Kind: WarnUnreadable, Err: err}
	}
	f, err := DecodeFile(bytes.NewReader(data), filepath.Ext(path))
	if err != nil {
		return nil, &LoadWarning{File: path, Kind: WarnDecode, Err: err}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	category := categoryOf(f.Category, stem)

	t, err := ParseRepair(category, f.PromptTemplate, f.RequiredPlaceholders)
	if err != nil {
		var missing *MissingPlaceholderError
		if errors.As(err, &missing) {
			return nil, &LoadWarning{File: path, Kind: WarnMissingPlaceholder, Err: err}
		}
		return nil, &LoadWarning{File: path, Kind: WarnInvalid, Err: err}
	}
	t.Source = path
	t.Description = f.Description
	t.Version = f.Version
	t.Languages = f.LanguageSupport
	t.ConfidenceGuidelines = f.ConfidenceGuidelines

	if len(t.Repaired) > 0 {
		return t, &LoadWarning{
			File: path,
			Kind: WarnRepaired,
			Err:  fmt.Errorf("stripped placeholders %s", strings.Join(t.Repaired, ", ")),
		}
	}
	return t, nil
}

// DecodeFile decodes a template file. ext selects the format (".json" for
// JSON, anything else for YAML). Unknown keys are rejected.
func DecodeFile(r io.Reader, ext string) (*File, error) {
	var f File
	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("prompt: decode json: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("prompt: decode yaml: %w", err)
		}
	}
	if strings.TrimSpace(f.PromptTemplate) == "" {
		return nil, errors.New("prompt: prompt_template is empty")
	}
	return &f, nil
}

func isTemplateFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// categoryOf resolves the category from the explicit field or, failing
// that, the file stem. Unrecognised names become new categories.
func categoryOf(explicit, stem string) command.Category {
	name := explicit
	if strings.TrimSpace(name) == "" {
		name = stem
	}
	if c, ok := command.ParseCategory(name); ok {
		return c
	}
	return command.Category(strings.ToLower(strings.TrimSpace(name)))
}
