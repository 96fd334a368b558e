package formengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of date and date_now values.
const DateLayout = "2006-01-02"

// File is an uploaded file held by a file field. Files are treated as
// immutable once stored.
type File struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// NewFile wraps content as a File.
func NewFile(name, contentType string, data []byte) *File {
	return &File{Name: name, ContentType: contentType, Size: int64(len(data)), Data: data}
}

// scope holds the values of one level of the tree: a leaf value, a scope for
// a plain group, or a []scope for the instances of a repeatable group.
type scope map[FieldID]any

// Store is an immutable snapshot of the answers to a form. Every mutation
// returns a new Store and leaves the receiver untouched.
type Store struct {
	schema *Schema
	root   scope
	now    func() time.Time
}

// StoreOption configures NewStore and Hydrate.
type StoreOption func(*Store)

// WithClock overrides the clock used for date_now defaults.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an empty store for schema with date_now fields filled in.
func NewStore(schema *Schema, opts ...StoreOption) *Store {
	s := &Store{schema: schema, root: scope{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.seed(schema.form.Fields, s.root)
	return s
}

// Schema returns the compiled schema the store evaluates.
func (s *Store) Schema() *Schema { return s.schema }

func (s *Store) seed(fields []*Field, sc scope) {
	today := s.now().Format(DateLayout)
	for _, f := range fields {
		switch {
		case f.Repeatable:
		case f.IsGroup():
			sub := scope{}
			s.seed(f.Children, sub)
			if len(sub) > 0 {
				sc[f.ID] = sub
			}
		case f.Type == TypeDateNow:
			sc[f.ID] = today
		}
	}
}

func (s *Store) clone() *Store {
	return &Store{schema: s.schema, root: cloneScope(s.root), now: s.now}
}

func cloneScope(sc scope) scope {
	out := make(scope, len(sc))
	for k, v := range sc {
		switch t := v.(type) {
		case scope:
			out[k] = cloneScope(t)
		case []scope:
			list := make([]scope, len(t))
			for i, inst := range t {
				list[i] = cloneScope(inst)
			}
			out[k] = list
		case []string:
			out[k] = append([]string(nil), t...)
		case []*File:
			out[k] = append([]*File(nil), t...)
		default:
			out[k] = v
		}
	}
	return out
}

// container returns the scope that holds the last step of p. With create set,
// missing plain group scopes are added on the way; instances never are.
func (s *Store) container(p Path, create bool) (scope, bool) {
	cur := s.root
	for _, step := range p[:len(p)-1] {
		if step.Index >= 0 {
			list, _ := cur[step.Field].([]scope)
			if step.Index >= len(list) {
				return nil, false
			}
			cur = list[step.Index]
			continue
		}
		next, ok := cur[step.Field].(scope)
		if !ok {
			if !create {
				return nil, false
			}
			next = scope{}
			cur[step.Field] = next
		}
		cur = next
	}
	return cur, true
}

// value returns the raw stored value of a leaf path.
func (s *Store) value(p Path) any {
	if len(p) == 0 {
		return nil
	}
	sc, ok := s.container(p, false)
	if !ok {
		return nil
	}
	return sc[p.Last()]
}

// Get returns the value stored at a leaf path. The second result is false
// when nothing is stored there.
func (s *Store) Get(p Path) (any, bool) {
	f, ok := s.schema.FindField(p)
	if !ok || f.IsGroup() {
		return nil, false
	}
	v := s.value(p)
	if v == nil {
		return nil, false
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...), true
	case []*File:
		return append([]*File(nil), t...), true
	}
	return v, true
}

// Set stores value at a leaf path. A nil value clears the field.
func (s *Store) Set(p Path, value any) (*Store, error) {
	f, ok := s.schema.FindField(p)
	if !ok || f.IsGroup() {
		return nil, pathError(ErrUnknownPath, p)
	}
	if f.Type == TypeDateNow {
		return nil, pathError(ErrReadOnly, p)
	}
	v, err := normalize(f, value)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, p)
	}
	next := s.clone()
	sc, ok := next.container(p, true)
	if !ok {
		return nil, pathError(ErrUnknownPath, p)
	}
	if v == nil {
		delete(sc, f.ID)
	} else {
		sc[f.ID] = v
	}
	next.reconcile()
	return next, nil
}

// normalize checks value against the field type and converts it to the form
// the store keeps: numbers as float64, option lists as []string.
func normalize(f *Field, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	bad := fmt.Errorf("%w: %s field cannot hold %T", ErrValueType, f.Type, value)
	switch f.Type {
	case TypeText, TypeTextarea, TypeDate, TypeSelect, TypeRadio:
		str, ok := value.(string)
		if !ok {
			return nil, bad
		}
		return str, nil
	case TypeNumber:
		if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
			return nil, nil
		}
		switch value.(type) {
		case string, json.Number, float64, float32, int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
		default:
			return nil, bad
		}
		n, ok := toFloat(value)
		if !ok {
			return nil, bad
		}
		return n, nil
	case TypeCheckbox:
		b, ok := value.(bool)
		if !ok {
			return nil, bad
		}
		return b, nil
	case TypeMultiselect:
		list, ok := value.([]string)
		if !ok {
			return nil, bad
		}
		if len(list) == 0 {
			return nil, nil
		}
		return append([]string(nil), list...), nil
	case TypeFile:
		switch t := value.(type) {
		case *File:
			if t == nil {
				return nil, nil
			}
			return t, nil
		case []*File:
			if len(t) == 0 {
				return nil, nil
			}
			return append([]*File(nil), t...), nil
		}
		return nil, bad
	}
	return nil, bad
}

// AddRepeatInstance appends an empty instance to the repeatable group at p.
func (s *Store) AddRepeatInstance(p Path) (*Store, error) {
	f, err := s.repeatable(p)
	if err != nil {
		return nil, err
	}
	next := s.clone()
	sc, ok := next.container(p, true)
	if !ok {
		return nil, pathError(ErrUnknownPath, p)
	}
	inst := scope{}
	next.seed(f.Children, inst)
	list, _ := sc[f.ID].([]scope)
	sc[f.ID] = append(list, inst)
	next.reconcile()
	return next, nil
}

// RemoveRepeatInstance deletes instance index of the repeatable group at p.
// Later instances shift down by one.
func (s *Store) RemoveRepeatInstance(p Path, index int) (*Store, error) {
	f, err := s.repeatable(p)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= s.Instances(p) {
		return nil, pathError(ErrUnknownPath, p.At(index))
	}
	next := s.clone()
	sc, _ := next.container(p, false)
	list := sc[f.ID].([]scope)
	list = append(list[:index:index], list[index+1:]...)
	if len(list) == 0 {
		delete(sc, f.ID)
	} else {
		sc[f.ID] = list
	}
	next.reconcile()
	return next, nil
}

// Instances returns the number of instances of the repeatable group at p.
func (s *Store) Instances(p Path) int {
	if len(p) == 0 {
		return 0
	}
	sc, ok := s.container(p, false)
	if !ok {
		return 0
	}
	list, _ := sc[p.Last()].([]scope)
	return len(list)
}

func (s *Store) repeatable(p Path) (*Field, error) {
	f, ok := s.schema.FindField(p)
	if !ok {
		return nil, pathError(ErrUnknownPath, p)
	}
	if !f.Repeatable {
		return nil, pathError(ErrNotRepeatable, p)
	}
	return f, nil
}

// concrete expands the ID chain of a field into every path that currently
// exists, one per combination of repeat instances.
func (s *Store) concrete(id FieldID) []Path {
	info := s.schema.fields[id]
	paths := []Path{nil}
	for i, cid := range info.chain {
		last := i == len(info.chain)-1
		var out []Path
		for _, p := range paths {
			cp := p.Child(cid)
			if last || !s.schema.fields[cid].field.Repeatable {
				out = append(out, cp)
				continue
			}
			for j, n := 0, s.Instances(cp); j < n; j++ {
				out = append(out, cp.At(j))
			}
		}
		paths = out
	}
	return paths
}

// reconcile clears dependent values that are no longer among the options
// their parent currently allows. Parents are handled before their children,
// so one pass settles the whole chain. Only called on a fresh clone.
func (s *Store) reconcile() {
	for _, id := range s.schema.cascade {
		f := s.schema.fields[id].field
		for _, p := range s.concrete(id) {
			sc, ok := s.container(p, false)
			if !ok {
				continue
			}
			v, held := sc[id]
			if !held {
				continue
			}
			opts := s.OptionsFor(p)
			switch t := v.(type) {
			case []string:
				kept := make([]string, 0, len(t))
				for _, o := range t {
					if contains(opts, o) {
						kept = append(kept, o)
					}
				}
				if len(kept) == 0 {
					delete(sc, id)
				} else {
					sc[id] = kept
				}
			case *File, []*File, bool:
			default:
				if f.Type == TypeDateNow {
					continue
				}
				if !contains(opts, formatScalar(v)) {
					delete(sc, id)
				}
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, o := range list {
		if o == v {
			return true
		}
	}
	return false
}
