// Package workflow implements named, parameterizable job templates for the
// synthesis engine. A template is a node graph plus a set of slots; slots
// address graph nodes structurally (by node class and title), never by node
// id, so templates can be re-laid-out without breaking injection.
package workflow

import "encoding/json"

// Core slot roles every speak template must declare.
const (
	RoleTextPrompt     = "text-prompt"
	RoleInputAudio     = "input-audio"
	RoleOutputBasename = "output-basename"
)

// NodeMeta carries the human-facing metadata of a graph node
type NodeMeta struct {
	Title string `json:"title,omitempty"`
}

// Node is a single step in an engine graph
type Node struct {
	ClassType string                 `json:"class_type"`
	Meta      NodeMeta               `json:"_meta,omitempty"`
	Inputs    map[string]interface{} `json:"inputs"`
}

// Graph is an engine node graph keyed by node id. Node ids are transient
// editor artifacts; nothing in this package addresses nodes by id.
type Graph map[string]*Node

// Clone returns a deep copy of the graph so injection never mutates the
// loaded template.
func (g Graph) Clone() Graph {
	out := make(Graph, len(g))
	for id, node := range g {
		inputs := make(map[string]interface{}, len(node.Inputs))
		for k, v := range node.Inputs {
			inputs[k] = cloneValue(v)
		}
		out[id] = &Node{
			ClassType: node.ClassType,
			Meta:      node.Meta,
			Inputs:    inputs,
		}
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case []interface{}:
		c := make([]interface{}, len(t))
		for i, e := range t {
			c[i] = cloneValue(e)
		}
		return c
	case map[string]interface{}:
		c := make(map[string]interface{}, len(t))
		for k, e := range t {
			c[k] = cloneValue(e)
		}
		return c
	default:
		return v
	}
}

// Slot designates an injectable input within a template. A slot is located
// by the class type (and, when set, the title) of its node plus the input
// field name on that node.
type Slot struct {
	Role     string `json:"role"`
	Class    string `json:"class"`
	Title    string `json:"title,omitempty"`
	Input    string `json:"input"`
	Required bool   `json:"required,omitempty"`
}

// Template is a named job description loaded from the template directory
type Template struct {
	Name  string `json:"name"`
	Graph Graph  `json:"graph"`
	Slots []Slot `json:"slots"`
}

// Slot returns the slot declared for role, if any
func (t *Template) Slot(role string) (Slot, bool) {
	for _, s := range t.Slots {
		if s.Role == role {
			return s, true
		}
	}
	return Slot{}, false
}

// MaterializedJob is a template with every slot filled, ready for
// submission. It is not modified after creation.
type MaterializedJob struct {
	TemplateName string
	Graph        Graph
	ClientID     string
}

// MarshalPayload encodes the job in the engine's submit format
func (j *MaterializedJob) MarshalPayload() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"prompt":    j.Graph,
		"client_id": j.ClientID,
	})
}
