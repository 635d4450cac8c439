// Package requirements parses the hierarchical requirements document and
// supports lookup by identifier. The parsed tree is read-only after
// construction and safe for concurrent reads.
package requirements

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Requirement is a single leaf requirement. Identifiers are unique across
// the full document.
type Requirement struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description" json:"description"`
	Acceptance  string `yaml:"acceptance" json:"acceptance"`
}

// Scope is a node in the requirements tree: a title plus either child
// scopes or a list of requirements, never both.
type Scope struct {
	Title        string
	Children     []*Scope
	Requirements []Requirement
}

// Document is the parsed, read-only requirements tree.
type Document struct {
	Root *Scope

	byID map[string]Requirement
	all  []Requirement
}

// Parse reads and parses a requirements document from path.
func Parse(path string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("requirements: read %s: %w", path, err)
	}
	return ParseBytes(raw)
}

// ParseBytes parses a requirements document already read into memory.
func ParseBytes(raw []byte) (*Document, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("requirements: parse: %w", err)
	}
	if len(node.Content) == 0 {
		return &Document{Root: &Scope{Title: "root"}, byID: map[string]Requirement{}}, nil
	}

	root, err := scopeFromNode("root", node.Content[0])
	if err != nil {
		return nil, err
	}

	doc := &Document{Root: root, byID: map[string]Requirement{}}
	doc.all = flatten(root)
	for _, r := range doc.all {
		if _, dup := doc.byID[r.ID]; dup {
			return nil, fmt.Errorf("requirements: duplicate id %q", r.ID)
		}
		doc.byID[r.ID] = r
	}
	return doc, nil
}

// scopeFromNode interprets a mapping-valued YAML node as a Scope: if its
// value is itself a mapping, each key becomes a child Scope; if its value
// is a sequence, each element must decode as a Requirement.
func scopeFromNode(title string, value *yaml.Node) (*Scope, error) {
	switch value.Kind {
	case yaml.MappingNode:
		scope := &Scope{Title: title}
		for i := 0; i+1 < len(value.Content); i += 2 {
			key := value.Content[i].Value
			child, err := scopeFromNode(key, value.Content[i+1])
			if err != nil {
				return nil, err
			}
			scope.Children = append(scope.Children, child)
		}
		return scope, nil

	case yaml.SequenceNode:
		scope := &Scope{Title: title}
		for _, item := range value.Content {
			var req Requirement
			if err := item.Decode(&req); err != nil {
				return nil, fmt.Errorf("requirements: scope %q: %w", title, err)
			}
			scope.Requirements = append(scope.Requirements, req)
		}
		return scope, nil

	default:
		return nil, fmt.Errorf("requirements: scope %q: unsupported node kind", title)
	}
}

// flatten collects every requirement under scope, in document order.
func flatten(scope *Scope) []Requirement {
	var out []Requirement
	out = append(out, scope.Requirements...)
	for _, child := range scope.Children {
		out = append(out, flatten(child)...)
	}
	return out
}

// All returns the flat list of every requirement in the document, in
// document order.
func (d *Document) All() []Requirement {
	return d.all
}

// IDs returns the flat list of every requirement id, in document order.
func (d *Document) IDs() []string {
	ids := make([]string, 0, len(d.all))
	for _, r := range d.all {
		ids = append(ids, r.ID)
	}
	return ids
}

// Find looks up a requirement by id. ok is false if no such id exists.
func (d *Document) Find(id string) (Requirement, bool) {
	r, ok := d.byID[id]
	return r, ok
}

// treeNode is the JSON-serializable shape of a Scope, used by the
// get_all_requirements tool to return the full nested ordered structure.
type treeNode struct {
	Title        string        `json:"title"`
	Children     []treeNode    `json:"children,omitempty"`
	Requirements []Requirement `json:"requirements,omitempty"`
}

// Tree serializes the document to a nested ordered structure suitable
// for direct JSON encoding.
func (d *Document) Tree() interface{} {
	return scopeToTreeNode(d.Root)
}

func scopeToTreeNode(s *Scope) treeNode {
	node := treeNode{Title: s.Title, Requirements: s.Requirements}
	for _, c := range s.Children {
		node.Children = append(node.Children, scopeToTreeNode(c))
	}
	return node
}
