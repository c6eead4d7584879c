package builder

import (
	"github.com/goliatone/go-formbuilder/pkg/model"
)

// node is a field stored flat in the arena. Parent and children are kept as
// ids so subtrees can be relocated without touching nested structs.
type node struct {
	field    model.FieldDefinition // Children is always nil here
	parent   string
	children []string
}

// arena is a working copy of a schema used for one builder operation. It is
// discarded when the operation fails, so the store never sees partial edits.
type arena struct {
	title   string
	version int
	extra   map[string]any
	roots   []string
	nodes   map[string]*node
}

func newArena(schema model.FormSchema) *arena {
	a := &arena{
		title:   schema.Title,
		version: schema.Version,
		extra:   schema.Extra,
		nodes:   make(map[string]*node),
	}
	a.roots = a.load(schema.Fields, "")
	return a
}

func (a *arena) load(fields []model.FieldDefinition, parent string) []string {
	ids := make([]string, 0, len(fields))
	for _, field := range fields {
		children := field.Children
		field.Children = nil
		n := &node{field: field.Clone(), parent: parent}
		a.nodes[field.ID] = n
		n.children = a.load(children, field.ID)
		ids = append(ids, field.ID)
	}
	return ids
}

func (a *arena) has(id string) bool {
	_, ok := a.nodes[id]
	return ok
}

// siblings returns a pointer to the child id slice of parent ("" is root).
func (a *arena) siblings(parent string) *[]string {
	if parent == "" {
		return &a.roots
	}
	return &a.nodes[parent].children
}

// insert places id under parent at position. Out-of-range positions append.
func (a *arena) insert(parent string, position int, id string) int {
	group := a.siblings(parent)
	if position < 0 || position > len(*group) {
		position = len(*group)
	}
	*group = append(*group, "")
	copy((*group)[position+1:], (*group)[position:])
	(*group)[position] = id
	a.nodes[id].parent = parent
	return position
}

// detach unlinks id from its sibling group and reports where it was.
func (a *arena) detach(id string) (string, int) {
	n := a.nodes[id]
	group := a.siblings(n.parent)
	for idx, sibling := range *group {
		if sibling == id {
			*group = append((*group)[:idx], (*group)[idx+1:]...)
			return n.parent, idx
		}
	}
	return n.parent, -1
}

// remove deletes id and its whole subtree from the arena.
func (a *arena) remove(id string) {
	a.detach(id)
	a.drop(id)
}

func (a *arena) drop(id string) {
	n := a.nodes[id]
	for _, child := range n.children {
		a.drop(child)
	}
	delete(a.nodes, id)
}

// isSelfOrDescendant reports whether candidate is id or lies below it.
func (a *arena) isSelfOrDescendant(id, candidate string) bool {
	for current := candidate; current != ""; {
		if current == id {
			return true
		}
		n, ok := a.nodes[current]
		if !ok {
			return false
		}
		current = n.parent
	}
	return false
}

// schema materialises the arena as a tree with contiguous orders.
func (a *arena) schema() model.FormSchema {
	return model.FormSchema{
		Title:   a.title,
		Version: a.version,
		Fields:  a.build(a.roots),
		Extra:   a.extra,
	}
}

func (a *arena) build(ids []string) []model.FieldDefinition {
	if len(ids) == 0 {
		return nil
	}
	out := make([]model.FieldDefinition, len(ids))
	for idx, id := range ids {
		n := a.nodes[id]
		field := n.field
		field.Order = idx
		field.Children = a.build(n.children)
		out[idx] = field
	}
	return out
}
