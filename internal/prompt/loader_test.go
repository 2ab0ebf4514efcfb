package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/glyphcmd/pkg/command"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const baseYAML = `
category: base
description: Router
version: "1"
language_support: [en, ru]
confidence_guidelines:
  high: "0.8-1.0 clear command"
prompt_template: |
  Classify "{user_command}". Commands: {commands}
  <answer>{"category": "movement", "confidence": 0.9}</answer>
`

const movementJSON = `{
  "description": "Movement handler",
  "required_placeholders": ["user_command"],
  "prompt_template": "Move: {user_command}\n<answer>{\"action\": \"go\"}</answer>"
}`

func hasWarning(ws []LoadWarning, kind WarningKind, fileSuffix string) bool {
	for _, w := range ws {
		if w.Kind == kind && strings.HasSuffix(w.File, fileSuffix) {
			return true
		}
	}
	return false
}

func TestLoad_MixedDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "base.yaml", baseYAML)
	writeFile(t, dir, "movement_commands.json", movementJSON)
	writeFile(t, dir, "combat.yaml", "prompt_template: \"Fight without the utterance\"\n")
	writeFile(t, dir, "dialog.yml", "prompt_template: \"Talk {user_command} {{ok}} {mood}\"\n")
	writeFile(t, dir, "broken.json", "{not json")
	writeFile(t, dir, "typo.yaml", "prompt_templat: \"{user_command}\"\n")
	writeFile(t, dir, "notes.txt", "ignored")

	set, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if _, ok := set.Lookup(command.Base); !ok {
		t.Error("base template missing")
	}
	if tpl, ok := set.Lookup(command.Movement); !ok {
		t.Error("movement template missing (legacy stem)")
	} else if tpl.Description != "Movement handler" {
		t.Errorf("movement description = %q", tpl.Description)
	}
	if _, ok := set.Lookup(command.Combat); ok {
		t.Error("combat template without {user_command} should be excluded")
	}
	dialog, ok := set.Lookup(command.Dialog)
	if !ok {
		t.Fatal("repaired dialog template missing")
	}
	if strings.Contains(dialog.Body, "{mood}") {
		t.Errorf("dialog body not repaired: %q", dialog.Body)
	}

	if !hasWarning(warnings, WarnMissingPlaceholder, "combat.yaml") {
		t.Errorf("no missing-placeholder warning for combat.yaml: %v", warnings)
	}
	if !hasWarning(warnings, WarnRepaired, "dialog.yml") {
		t.Errorf("no repaired warning for dialog.yml: %v", warnings)
	}
	if !hasWarning(warnings, WarnDecode, "broken.json") {
		t.Errorf("no decode warning for broken.json: %v", warnings)
	}
	if !hasWarning(warnings, WarnDecode, "typo.yaml") {
		t.Errorf("no decode warning for typo.yaml: %v", warnings)
	}
	if set.Len() != 3 {
		t.Errorf("Len = %d, want 3 (base, movement, dialog)", set.Len())
	}
}

func TestLoad_BaseFallback(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "movement.yaml", "prompt_template: \"Go {user_command}\"\n")

	set, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !hasWarning(warnings, WarnBuiltinBase, dir) {
		t.Errorf("expected builtin base warning, got %v", warnings)
	}
	if got := set.Get(command.Combat); got.Category != command.Base {
		t.Errorf("Get(combat) = %q, want base fallback", got.Category)
	}
	if got := set.Get(command.Movement); got.Category != command.Movement {
		t.Errorf("Get(movement) = %q, want movement", got.Category)
	}
}

func TestLoad_DuplicateCategory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "movement.yaml", "prompt_template: \"first {user_command}\"\n")
	writeFile(t, dir, "movement_commands.yaml", "prompt_template: \"second {user_command}\"\n")

	set, warnings, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tpl, _ := set.Lookup(command.Movement)
	if !strings.HasPrefix(tpl.Body, "first") {
		t.Errorf("movement body = %q, want the first file to win", tpl.Body)
	}
	if !hasWarning(warnings, WarnDuplicate, "movement_commands.yaml") {
		t.Errorf("no duplicate warning: %v", warnings)
	}
}

func TestLoad_NewCategoryFromStem(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFile(t, dir, "Trade.yaml", "prompt_template: \"Trade {user_command}\"\n")

	set, _, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := set.Lookup("trade"); !ok {
		t.Errorf("categories = %v, want trade", set.Categories())
	}
}

func TestLoad_MissingDirectory(t *testing.T) {
	t.Parallel()
	if _, _, err := Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("Load: expected error for missing directory")
	}
}

func TestDecodeFile_EmptyTemplate(t *testing.T) {
	t.Parallel()
	if _, err := DecodeFile(strings.NewReader(`description: nothing`), ".yaml"); err == nil {
		t.Fatal("DecodeFile: expected error for empty prompt_template")
	}
}

func TestLoad_ShippedPrompts(t *testing.T) {
	t.Parallel()

	set, warnings, err := Load(filepath.Join("..", "..", "prompts"))
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}
	for _, c := range append([]command.Category{command.Base}, command.Handlers...) {
		tmpl, ok := set.Lookup(c)
		if !ok {
			t.Errorf("no template for %s", c)
			continue
		}
		out := Compile(tmpl, "go north", command.Vocabulary{})
		if !strings.Contains(out, `"go north"`) {
			t.Errorf("%s: compiled prompt does not quote the utterance", c)
		}
		if strings.Contains(out, "{user_command}") {
			t.Errorf("%s: placeholder left in compiled prompt", c)
		}
	}
}
