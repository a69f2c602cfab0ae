package workflow

import (
	"github.com/voiceforge/api/internal/fault"
)

// Values holds the concrete per-request values to write into a template.
// ReferenceInput is the engine-side name of the uploaded reference audio;
// OutputPrefix is the request-scoped output basename.
type Values struct {
	Text           string
	ReferenceInput string
	OutputPrefix   string
	Parameters     map[string]float64
	ClientID       string
}

// Inject fills the template's slots with the supplied values and returns a
// materialized job. Each slot's node is resolved by class and title:
// exactly one node must match — ambiguity is rejected rather than resolved
// arbitrarily, so injection never lands in the wrong place after a template
// edit. Optional slots without a matching node, or parameter slots with no
// supplied value, are skipped. The template itself is never mutated.
func Inject(tpl *Template, values Values) (*MaterializedJob, error) {
	graph := tpl.Graph.Clone()

	for _, slot := range tpl.Slots {
		value, ok := valueForRole(slot.Role, values)
		if !ok {
			continue
		}

		nodes := matchNodes(graph, slot.Class, slot.Title)
		switch {
		case len(nodes) > 1:
			return nil, fault.New(fault.AmbiguousSlot,
				"template %q: %d nodes match slot %q (class=%q title=%q)",
				tpl.Name, len(nodes), slot.Role, slot.Class, slot.Title)
		case len(nodes) == 0:
			if isRequired(slot) {
				return nil, fault.New(fault.MissingRequiredSlot,
					"template %q: no node matches required slot %q (class=%q title=%q)",
					tpl.Name, slot.Role, slot.Class, slot.Title)
			}
			continue
		}

		nodes[0].Inputs[slot.Input] = value
	}

	return &MaterializedJob{
		TemplateName: tpl.Name,
		Graph:        graph,
		ClientID:     values.ClientID,
	}, nil
}

// valueForRole maps a slot role to its concrete value. Core roles always
// carry a value; any other role is looked up in the parameter set.
func valueForRole(role string, values Values) (interface{}, bool) {
	switch role {
	case RoleTextPrompt:
		return values.Text, true
	case RoleInputAudio:
		return values.ReferenceInput, true
	case RoleOutputBasename:
		return values.OutputPrefix, true
	}
	v, ok := values.Parameters[role]
	if !ok {
		return nil, false
	}
	return v, true
}

func isRequired(slot Slot) bool {
	if slot.Required {
		return true
	}
	switch slot.Role {
	case RoleTextPrompt, RoleInputAudio, RoleOutputBasename:
		return true
	}
	return false
}

// matchNodes returns every graph node whose class type (and title, when the
// slot declares one) matches the slot locator. Iteration order does not
// matter to callers: zero or one match is usable, anything more is an error.
func matchNodes(graph Graph, class, title string) []*Node {
	var matches []*Node
	for _, node := range graph {
		if node.ClassType != class {
			continue
		}
		if title != "" && node.Meta.Title != title {
			continue
		}
		matches = append(matches, node)
	}
	return matches
}
