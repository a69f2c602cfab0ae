package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/voiceforge/api/internal/fault"
)

var coreRoles = []string{RoleTextPrompt, RoleInputAudio, RoleOutputBasename}

// Store loads templates by name from a directory of JSON documents.
// Adding a job type is adding a <name>.json file, not a code change.
type Store struct {
	dir string
}

// NewStore creates a template store backed by dir
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads and validates the template registered under name
func (s *Store) Load(name string) (*Template, error) {
	if !validTemplateName(name) {
		return nil, fault.New(fault.TemplateNotFound, "invalid template name %q", name)
	}

	path := filepath.Join(s.dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fault.New(fault.TemplateNotFound, "no template registered under %q", name)
		}
		return nil, fmt.Errorf("failed to read template %q: %w", name, err)
	}

	var tpl Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return nil, fault.Wrap(fault.TemplateMalformed, err, "template %q is not valid JSON", name)
	}
	tpl.Name = name

	if err := validate(&tpl); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// validTemplateName rejects names that could escape the template directory
func validTemplateName(name string) bool {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// validate checks the structural shape: a non-empty graph, unique slot
// roles, well-formed slot locators, and every core role declared.
func validate(tpl *Template) error {
	if len(tpl.Graph) == 0 {
		return fault.New(fault.TemplateMalformed, "template %q has an empty graph", tpl.Name)
	}

	seen := make(map[string]bool, len(tpl.Slots))
	for _, slot := range tpl.Slots {
		if slot.Role == "" || slot.Class == "" || slot.Input == "" {
			return fault.New(fault.TemplateMalformed,
				"template %q declares an incomplete slot (role=%q class=%q input=%q)",
				tpl.Name, slot.Role, slot.Class, slot.Input)
		}
		if seen[slot.Role] {
			return fault.New(fault.TemplateMalformed,
				"template %q declares role %q more than once", tpl.Name, slot.Role)
		}
		seen[slot.Role] = true
	}

	for _, role := range coreRoles {
		if !seen[role] {
			return fault.New(fault.TemplateMalformed,
				"template %q is missing required role %q", tpl.Name, role)
		}
	}

	return nil
}
