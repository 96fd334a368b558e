package formengine

// OptionsFor returns the options the field at p currently offers. Without a
// parent that is the field's static option list. With one, it is the
// nestedOptions entry for the parent's current value, resolved inside the
// same repeat instance, or an empty list when the parent has no value or no
// entry matches.
func (s *Store) OptionsFor(p Path) []string {
	f, ok := s.schema.FindField(p)
	if !ok {
		return []string{}
	}
	if f.ParentFieldID == "" {
		return append([]string{}, f.Options...)
	}
	ref, ok := s.schema.resolveRef(f.ParentFieldID, p)
	if !ok {
		return []string{}
	}
	parent := s.value(ref)
	if parent == nil {
		return []string{}
	}
	return append([]string{}, f.NestedOptions[formatScalar(parent)]...)
}
