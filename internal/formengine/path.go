package formengine

import (
	"fmt"
	"strconv"
	"strings"
)

// NoIndex marks a step that does not address a repeat instance.
const NoIndex = -1

// Step is one segment of a Path.
type Step struct {
	Field FieldID
	Index int
}

// Path addresses a field through the schema tree. Steps through repeatable
// groups carry the instance index.
type Path []Step

// Root returns the path of a top-level field.
func Root(id FieldID) Path { return Path{{Field: id, Index: NoIndex}} }

// Child returns a new path extended by id.
func (p Path) Child(id FieldID) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, Step{Field: id, Index: NoIndex})
}

// At returns a copy of p whose last step selects instance i.
func (p Path) At(i int) Path {
	out := p.clone()
	if len(out) > 0 {
		out[len(out)-1].Index = i
	}
	return out
}

// Last returns the ID of the addressed field.
func (p Path) Last() FieldID {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1].Field
}

// Parent drops the last step.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].clone()
}

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

// indices returns the instance indices along p, in order.
func (p Path) indices() []int {
	var out []int
	for _, s := range p {
		if s.Index >= 0 {
			out = append(out, s.Index)
		}
	}
	return out
}

func (p Path) String() string {
	var b strings.Builder
	for i, s := range p {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(string(s.Field))
		if s.Index >= 0 {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(s.Index))
			b.WriteByte(']')
		}
	}
	return b.String()
}

// ParsePath parses the String form of a path.
func ParsePath(s string) (Path, error) {
	if s == "" {
		return nil, fmt.Errorf("formengine: empty path")
	}
	var p Path
	for _, seg := range strings.Split(s, ".") {
		step := Step{Field: FieldID(seg), Index: NoIndex}
		if open := strings.IndexByte(seg, '['); open >= 0 {
			if !strings.HasSuffix(seg, "]") {
				return nil, fmt.Errorf("formengine: malformed path segment %q", seg)
			}
			n, err := strconv.Atoi(seg[open+1 : len(seg)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("formengine: malformed index in %q", seg)
			}
			step = Step{Field: FieldID(seg[:open]), Index: n}
		}
		if step.Field == "" {
			return nil, fmt.Errorf("formengine: empty segment in path %q", s)
		}
		p = append(p, step)
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}
