package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/voiceforge/api/internal/fault"
)

func writeTemplate(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".json"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}
}

const validTemplateJSON = `{
	"graph": {
		"2": {"class_type": "Synth", "_meta": {"title": "Voice"}, "inputs": {"text": ""}},
		"3": {"class_type": "LoadAudio", "inputs": {"audio": ""}},
		"5": {"class_type": "SaveAudio", "inputs": {"filename_prefix": "out"}}
	},
	"slots": [
		{"role": "text-prompt", "class": "Synth", "title": "Voice", "input": "text"},
		{"role": "input-audio", "class": "LoadAudio", "input": "audio"},
		{"role": "output-basename", "class": "SaveAudio", "input": "filename_prefix"}
	]
}`

func TestStoreLoad_Valid(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "basic", validTemplateJSON)

	tpl, err := NewStore(dir).Load("basic")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tpl.Name != "basic" {
		t.Errorf("name = %q, want basic", tpl.Name)
	}
	if len(tpl.Graph) != 3 {
		t.Errorf("graph has %d nodes, want 3", len(tpl.Graph))
	}
	if _, ok := tpl.Slot(RoleTextPrompt); !ok {
		t.Error("expected text-prompt slot")
	}
}

func TestStoreLoad_NotFound(t *testing.T) {
	dir := t.TempDir()

	_, err := NewStore(dir).Load("missing")
	if !fault.IsKind(err, fault.TemplateNotFound) {
		t.Fatalf("err = %v, want TEMPLATE_NOT_FOUND", err)
	}
}

func TestStoreLoad_RejectsPathEscapes(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"", "../secret", "a/b", `a\b`} {
		_, err := NewStore(dir).Load(name)
		if !fault.IsKind(err, fault.TemplateNotFound) {
			t.Errorf("Load(%q) err = %v, want TEMPLATE_NOT_FOUND", name, err)
		}
	}
}

func TestStoreLoad_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "broken", `{"graph": {`)

	_, err := NewStore(dir).Load("broken")
	if !fault.IsKind(err, fault.TemplateMalformed) {
		t.Fatalf("err = %v, want TEMPLATE_MALFORMED", err)
	}
}

func TestStoreLoad_EmptyGraph(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "empty", `{"graph": {}, "slots": []}`)

	_, err := NewStore(dir).Load("empty")
	if !fault.IsKind(err, fault.TemplateMalformed) {
		t.Fatalf("err = %v, want TEMPLATE_MALFORMED", err)
	}
}

func TestStoreLoad_MissingCoreRole(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "partial", `{
		"graph": {"2": {"class_type": "Synth", "inputs": {"text": ""}}},
		"slots": [
			{"role": "text-prompt", "class": "Synth", "input": "text"},
			{"role": "input-audio", "class": "LoadAudio", "input": "audio"}
		]
	}`)

	_, err := NewStore(dir).Load("partial")
	if !fault.IsKind(err, fault.TemplateMalformed) {
		t.Fatalf("err = %v, want TEMPLATE_MALFORMED", err)
	}
}

func TestStoreLoad_DuplicateRole(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "dup", `{
		"graph": {"2": {"class_type": "Synth", "inputs": {"text": ""}}},
		"slots": [
			{"role": "text-prompt", "class": "Synth", "input": "text"},
			{"role": "text-prompt", "class": "Synth", "input": "text2"},
			{"role": "input-audio", "class": "LoadAudio", "input": "audio"},
			{"role": "output-basename", "class": "SaveAudio", "input": "filename_prefix"}
		]
	}`)

	_, err := NewStore(dir).Load("dup")
	if !fault.IsKind(err, fault.TemplateMalformed) {
		t.Fatalf("err = %v, want TEMPLATE_MALFORMED", err)
	}
}
