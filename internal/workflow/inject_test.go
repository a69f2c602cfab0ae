package workflow

import (
	"strings"
	"testing"

	"github.com/voiceforge/api/internal/fault"
)

// testTemplate builds a three-node template mirroring a typical TTS graph.
// Node ids are deliberately unordered to show that nothing depends on them.
func testTemplate() *Template {
	return &Template{
		Name: "test",
		Graph: Graph{
			"7": {ClassType: "Synth", Meta: NodeMeta{Title: "Voice"}, Inputs: map[string]interface{}{
				"text":        "",
				"temperature": 0.5,
				"audio":       []interface{}{"12", 0},
			}},
			"12": {ClassType: "LoadAudio", Inputs: map[string]interface{}{"audio": "placeholder.wav"}},
			"3":  {ClassType: "SaveAudio", Inputs: map[string]interface{}{"filename_prefix": "out"}},
		},
		Slots: []Slot{
			{Role: RoleTextPrompt, Class: "Synth", Title: "Voice", Input: "text"},
			{Role: RoleInputAudio, Class: "LoadAudio", Input: "audio"},
			{Role: RoleOutputBasename, Class: "SaveAudio", Input: "filename_prefix"},
			{Role: "temperature", Class: "Synth", Input: "temperature"},
		},
	}
}

func testValues() Values {
	return Values{
		Text:           "hello world",
		ReferenceInput: "ref-abc.wav",
		OutputPrefix:   "speech-abc",
		Parameters:     map[string]float64{"temperature": 1.2},
		ClientID:       "client-abc",
	}
}

func TestInject_FillsAllSlots(t *testing.T) {
	job, err := Inject(testTemplate(), testValues())
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	if got := job.Graph["7"].Inputs["text"]; got != "hello world" {
		t.Errorf("text = %v, want hello world", got)
	}
	if got := job.Graph["12"].Inputs["audio"]; got != "ref-abc.wav" {
		t.Errorf("audio = %v, want ref-abc.wav", got)
	}
	if got := job.Graph["3"].Inputs["filename_prefix"]; got != "speech-abc" {
		t.Errorf("filename_prefix = %v, want speech-abc", got)
	}
	if got := job.Graph["7"].Inputs["temperature"]; got != 1.2 {
		t.Errorf("temperature = %v, want 1.2", got)
	}
	if job.ClientID != "client-abc" {
		t.Errorf("clientID = %q, want client-abc", job.ClientID)
	}
}

func TestInject_DoesNotMutateTemplate(t *testing.T) {
	tpl := testTemplate()
	if _, err := Inject(tpl, testValues()); err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	if got := tpl.Graph["7"].Inputs["text"]; got != "" {
		t.Errorf("template text mutated to %v", got)
	}
	if got := tpl.Graph["12"].Inputs["audio"]; got != "placeholder.wav" {
		t.Errorf("template audio mutated to %v", got)
	}
}

// Re-keying every node id must not change where values land: slots address
// nodes by class and title, not by id.
func TestInject_SurvivesNodeRenumbering(t *testing.T) {
	tpl := testTemplate()
	renumbered := &Template{
		Name: tpl.Name,
		Graph: Graph{
			"100": tpl.Graph["7"],
			"200": tpl.Graph["12"],
			"300": tpl.Graph["3"],
		},
		Slots: tpl.Slots,
	}

	job, err := Inject(renumbered, testValues())
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got := job.Graph["100"].Inputs["text"]; got != "hello world" {
		t.Errorf("text = %v, want hello world", got)
	}
	if got := job.Graph["200"].Inputs["audio"]; got != "ref-abc.wav" {
		t.Errorf("audio = %v, want ref-abc.wav", got)
	}
}

func TestInject_AmbiguousSlot(t *testing.T) {
	tpl := testTemplate()
	// A second LoadAudio node makes the input-audio slot ambiguous.
	tpl.Graph["13"] = &Node{ClassType: "LoadAudio", Inputs: map[string]interface{}{"audio": "other.wav"}}

	_, err := Inject(tpl, testValues())
	if !fault.IsKind(err, fault.AmbiguousSlot) {
		t.Fatalf("err = %v, want AMBIGUOUS_SLOT", err)
	}
}

func TestInject_TitleDisambiguates(t *testing.T) {
	tpl := testTemplate()
	// Two Synth nodes, but the slot's title pins the right one.
	tpl.Graph["8"] = &Node{ClassType: "Synth", Meta: NodeMeta{Title: "Backup"}, Inputs: map[string]interface{}{"text": ""}}

	job, err := Inject(tpl, testValues())
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got := job.Graph["7"].Inputs["text"]; got != "hello world" {
		t.Errorf("titled node text = %v, want hello world", got)
	}
	if got := job.Graph["8"].Inputs["text"]; got != "" {
		t.Errorf("untargeted node text = %v, want empty", got)
	}
}

func TestInject_MissingRequiredSlot(t *testing.T) {
	tpl := testTemplate()
	delete(tpl.Graph, "12") // remove the LoadAudio node

	_, err := Inject(tpl, testValues())
	if !fault.IsKind(err, fault.MissingRequiredSlot) {
		t.Fatalf("err = %v, want MISSING_REQUIRED_SLOT", err)
	}
}

func TestInject_OptionalSlotSkipped(t *testing.T) {
	tpl := testTemplate()
	// Point the optional temperature slot at a class with no graph node.
	tpl.Slots[3] = Slot{Role: "temperature", Class: "MissingNode", Input: "temperature"}

	job, err := Inject(tpl, testValues())
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got := job.Graph["7"].Inputs["temperature"]; got != 0.5 {
		t.Errorf("temperature = %v, want untouched 0.5", got)
	}
}

func TestInject_UnsuppliedParameterSkipped(t *testing.T) {
	values := testValues()
	values.Parameters = nil

	job, err := Inject(testTemplate(), values)
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}
	if got := job.Graph["7"].Inputs["temperature"]; got != 0.5 {
		t.Errorf("temperature = %v, want template default 0.5", got)
	}
}

func TestMarshalPayload(t *testing.T) {
	job, err := Inject(testTemplate(), testValues())
	if err != nil {
		t.Fatalf("Inject failed: %v", err)
	}

	payload, err := job.MarshalPayload()
	if err != nil {
		t.Fatalf("MarshalPayload failed: %v", err)
	}
	s := string(payload)
	if !strings.Contains(s, `"client_id":"client-abc"`) {
		t.Errorf("payload missing client_id: %s", s)
	}
	if !strings.Contains(s, `"prompt"`) {
		t.Errorf("payload missing prompt: %s", s)
	}
}
