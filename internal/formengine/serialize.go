package formengine

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix starts every payload key that carries a field value.
const KeyPrefix = "field_"

// MaxInstances bounds the instance index a payload key may name.
const MaxInstances = 200

// Entry is one textual payload entry.
type Entry struct {
	Key   string
	Value string
}

// FilePart is one binary payload part.
type FilePart struct {
	Key  string
	File *File
}

// Payload is the flattened submission: ordered text entries plus file parts.
type Payload struct {
	Entries []Entry
	Files   []FilePart
}

// Values returns the text entries as url.Values.
func (p *Payload) Values() url.Values {
	v := make(url.Values, len(p.Entries))
	for _, e := range p.Entries {
		v.Add(e.Key, e.Value)
	}
	return v
}

// FileMap groups the file parts by key.
func (p *Payload) FileMap() map[string][]*File {
	m := make(map[string][]*File, len(p.Files))
	for _, fp := range p.Files {
		m[fp.Key] = append(m[fp.Key], fp.File)
	}
	return m
}

// Key returns the payload key of a leaf path: field_<id> followed by one
// [i] per enclosing repeat instance.
func Key(p Path) string {
	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(string(p.Last()))
	for _, i := range p.indices() {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(']')
	}
	return b.String()
}

// Serialize flattens the visible answers. Stale values of hidden fields are
// never emitted.
func (s *Store) Serialize() *Payload {
	out := &Payload{}
	s.walkVisible(s.schema.form.Fields, nil, func(f *Field, p Path, v any) {
		key := Key(p)
		switch t := v.(type) {
		case *File:
			out.Files = append(out.Files, FilePart{Key: key, File: t})
		case []*File:
			for _, file := range t {
				out.Files = append(out.Files, FilePart{Key: key, File: file})
			}
		case []string:
			for _, o := range t {
				out.Entries = append(out.Entries, Entry{Key: key, Value: o})
			}
		default:
			out.Entries = append(out.Entries, Entry{Key: key, Value: formatScalar(v)})
		}
	})
	return out
}

// Submission validates the store and serializes it. When anything fails the
// result is the ValidationErrors and no payload.
func (s *Store) Submission() (*Payload, error) {
	if err := s.Validate().Err(); err != nil {
		return nil, err
	}
	return s.Serialize(), nil
}

// Data returns the visible answered leaves keyed by path string.
func (s *Store) Data() map[string]any {
	out := make(map[string]any)
	s.walkVisible(s.schema.form.Fields, nil, func(f *Field, p Path, v any) {
		out[p.String()] = v
	})
	return out
}

// walkVisible calls fn for every visible leaf holding a value, in schema
// order and instance order.
func (s *Store) walkVisible(fields []*Field, base Path, fn func(*Field, Path, any)) {
	for _, f := range fields {
		p := base.Child(f.ID)
		if !s.conditionsHold(f, p) {
			continue
		}
		switch {
		case f.Repeatable:
			for i, n := 0, s.Instances(p); i < n; i++ {
				s.walkVisible(f.Children, p.At(i), fn)
			}
		case f.IsGroup():
			s.walkVisible(f.Children, p, fn)
		default:
			if v := s.value(p); v != nil {
				fn(f, p, v)
			}
		}
	}
}

// Hydrate rebuilds a store from a flattened payload. Keys without the field_
// prefix are ignored. Number values that do not parse are kept as text so
// Validate can report them. date_now fields always take the store's clock,
// whatever the payload says.
func Hydrate(schema *Schema, values url.Values, files map[string][]*File, opts ...StoreOption) (*Store, error) {
	s := &Store{schema: schema, root: scope{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !strings.HasPrefix(key, KeyPrefix) {
			continue
		}
		f, sc, err := s.slot(key)
		if err != nil {
			return nil, err
		}
		if f.Type == TypeFile || f.Type == TypeDateNow {
			continue
		}
		v, err := fromWire(f, values[key])
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, key)
		}
		if v != nil {
			sc[f.ID] = v
		}
	}

	fileKeys := make([]string, 0, len(files))
	for k := range files {
		fileKeys = append(fileKeys, k)
	}
	sort.Strings(fileKeys)
	for _, key := range fileKeys {
		if !strings.HasPrefix(key, KeyPrefix) || len(files[key]) == 0 {
			continue
		}
		f, sc, err := s.slot(key)
		if err != nil {
			return nil, err
		}
		if f.Type != TypeFile {
			return nil, fmt.Errorf("%w: %s is not a file field", ErrValueType, key)
		}
		if list := files[key]; len(list) == 1 {
			sc[f.ID] = list[0]
		} else {
			sc[f.ID] = append([]*File(nil), list...)
		}
	}
	s.stamp(s.schema.form.Fields, s.root, s.now().Format(DateLayout))
	s.reconcile()
	return s, nil
}

// stamp sets every date_now field in the scopes that exist, including each
// repeat instance.
func (s *Store) stamp(fields []*Field, sc scope, today string) {
	for _, f := range fields {
		switch {
		case f.Repeatable:
			list, _ := sc[f.ID].([]scope)
			for _, inst := range list {
				s.stamp(f.Children, inst, today)
			}
		case f.IsGroup():
			sub, ok := sc[f.ID].(scope)
			if !ok {
				sub = scope{}
			}
			s.stamp(f.Children, sub, today)
			if len(sub) > 0 {
				sc[f.ID] = sub
			}
		case f.Type == TypeDateNow:
			sc[f.ID] = today
		}
	}
}

// slot resolves a payload key to its field and the scope that should hold
// it, growing repeat instances as needed.
func (s *Store) slot(key string) (*Field, scope, error) {
	id, indices, err := parseKey(key)
	if err != nil {
		return nil, nil, err
	}
	info, ok := s.schema.fields[id]
	if !ok || info.field.IsGroup() {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownField, key)
	}
	cur := s.root
	for _, cid := range info.chain[:len(info.chain)-1] {
		if !s.schema.fields[cid].field.Repeatable {
			next, ok := cur[cid].(scope)
			if !ok {
				next = scope{}
				cur[cid] = next
			}
			cur = next
			continue
		}
		if len(indices) == 0 {
			return nil, nil, fmt.Errorf("%w: %s lacks an instance index", ErrUnknownPath, key)
		}
		idx := indices[0]
		indices = indices[1:]
		if idx >= MaxInstances {
			return nil, nil, fmt.Errorf("%w: %s exceeds %d instances", ErrUnknownPath, key, MaxInstances)
		}
		list, _ := cur[cid].([]scope)
		for len(list) <= idx {
			list = append(list, scope{})
		}
		cur[cid] = list
		cur = list[idx]
	}
	if len(indices) != 0 {
		return nil, nil, fmt.Errorf("%w: %s has too many instance indices", ErrUnknownPath, key)
	}
	return info.field, cur, nil
}

func parseKey(key string) (FieldID, []int, error) {
	rest := strings.TrimPrefix(key, KeyPrefix)
	open := strings.IndexByte(rest, '[')
	if open < 0 {
		if rest == "" {
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownField, key)
		}
		return FieldID(rest), nil, nil
	}
	id := FieldID(rest[:open])
	var indices []int
	for tail := rest[open:]; tail != ""; {
		end := strings.IndexByte(tail, ']')
		if tail[0] != '[' || end < 0 {
			return "", nil, fmt.Errorf("%w: malformed key %q", ErrUnknownPath, key)
		}
		n, err := strconv.Atoi(tail[1:end])
		if err != nil || n < 0 {
			return "", nil, fmt.Errorf("%w: malformed index in %q", ErrUnknownPath, key)
		}
		indices = append(indices, n)
		tail = tail[end+1:]
	}
	return id, indices, nil
}

func fromWire(f *Field, raw []string) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	switch f.Type {
	case TypeMultiselect:
		return append([]string(nil), raw...), nil
	case TypeNumber:
		if strings.TrimSpace(raw[0]) == "" {
			return nil, nil
		}
		if n, ok := toFloat(raw[0]); ok {
			return n, nil
		}
		return raw[0], nil
	case TypeCheckbox:
		b, err := strconv.ParseBool(raw[0])
		if err != nil {
			return nil, fmt.Errorf("%w: checkbox value %q", ErrValueType, raw[0])
		}
		return b, nil
	}
	return raw[0], nil
}
