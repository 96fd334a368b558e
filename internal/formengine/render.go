package formengine

// Node is one visible field of the rendered tree.
type Node struct {
	Path     Path
	Field    *Field
	Value    any
	Options  []string
	ReadOnly bool
	// Children is set for plain groups, Instances for repeatable ones.
	Children  []*Node
	Instances [][]*Node
}

// Tree returns the fields a user currently sees, with their values and the
// options each choice field offers right now.
func (s *Store) Tree() []*Node {
	return s.render(s.schema.form.Fields, nil)
}

func (s *Store) render(fields []*Field, base Path) []*Node {
	var nodes []*Node
	for _, f := range fields {
		p := base.Child(f.ID)
		if !s.conditionsHold(f, p) {
			continue
		}
		n := &Node{Path: p, Field: f}
		switch {
		case f.Repeatable:
			n.Instances = make([][]*Node, s.Instances(p))
			for i := range n.Instances {
				n.Instances[i] = s.render(f.Children, p.At(i))
			}
		case f.IsGroup():
			n.Children = s.render(f.Children, p)
		default:
			n.Value, _ = s.Get(p)
			n.ReadOnly = f.Type == TypeDateNow
			switch f.Type {
			case TypeSelect, TypeMultiselect, TypeRadio:
				n.Options = s.OptionsFor(p)
			}
		}
		nodes = append(nodes, n)
	}
	return nodes
}
