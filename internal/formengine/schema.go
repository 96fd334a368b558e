// Package formengine evaluates declarative form schemas against an evolving
// answer set: it decides which fields are visible, resolves cascading option
// sets, validates answers and flattens them into a submission payload.
//
// All computation is synchronous and free of I/O. A Store is an immutable
// snapshot, so independent forms (or tabs) can be evaluated concurrently.
package formengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FieldType enumerates the supported field types.
type FieldType string

const (
	TypeText        FieldType = "text"
	TypeTextarea    FieldType = "textarea"
	TypeNumber      FieldType = "number"
	TypeDate        FieldType = "date"
	TypeDateNow     FieldType = "date_now"
	TypeSelect      FieldType = "select"
	TypeMultiselect FieldType = "multiselect"
	TypeCheckbox    FieldType = "checkbox"
	TypeRadio       FieldType = "radio"
	TypeFile        FieldType = "file"
)

var knownTypes = map[FieldType]bool{
	TypeText: true, TypeTextarea: true, TypeNumber: true, TypeDate: true,
	TypeDateNow: true, TypeSelect: true, TypeMultiselect: true,
	TypeCheckbox: true, TypeRadio: true, TypeFile: true,
}

// FieldID is the stable identifier of a field. Backends hand out numeric IDs,
// so both JSON numbers and strings are accepted.
type FieldID string

func (id *FieldID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = FieldID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(b), 64); err != nil {
		return fmt.Errorf("formengine: field id %s is neither a string nor a number", b)
	}
	*id = FieldID(b)
	return nil
}

// RuleKind names a validation rule.
type RuleKind string

const (
	RuleMin        RuleKind = "min"
	RuleMax        RuleKind = "max"
	RuleRegex      RuleKind = "regex"
	RuleTextLength RuleKind = "textLength" // minimum length, despite the name
	RuleFileSize   RuleKind = "fileSize"
	RuleFileType   RuleKind = "fileType"
)

// ValidationRule is one declared check on a field.
type ValidationRule struct {
	Kind    RuleKind `json:"type"`
	Operand any      `json:"value"`
	Message string   `json:"message,omitempty"`
}

// Operator is a condition comparison.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not equals"
	OpGreater   Operator = "greater than"
	OpLess      Operator = "less than"
)

var operatorAliases = map[Operator]Operator{
	OpEquals: OpEquals, "==": OpEquals,
	OpNotEquals: OpNotEquals, "!=": OpNotEquals,
	OpGreater: OpGreater, ">": OpGreater,
	OpLess: OpLess, "<": OpLess,
}

// Valid reports whether o is a known operator or alias.
func (o Operator) Valid() bool {
	_, ok := operatorAliases[o]
	return ok
}

// Action decides whether a holding condition shows or hides its field.
type Action string

const (
	ActionShow Action = "show"
	ActionHide Action = "hide"
)

// Condition makes a field's visibility depend on another field's value.
type Condition struct {
	Field    FieldID  `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
	Action   Action   `json:"action,omitempty"`
}

// Expr is a boolean expression over conditions. Exactly one member is set.
type Expr struct {
	All       []*Expr    `json:"all,omitempty"`
	Any       []*Expr    `json:"any,omitempty"`
	Not       *Expr      `json:"not,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

// Field is a node of the form schema.
type Field struct {
	ID            FieldID             `json:"id"`
	Label         string              `json:"label"`
	Type          FieldType           `json:"type"`
	Required      bool                `json:"required,omitempty"`
	Options       []string            `json:"options,omitempty"`
	Validations   []ValidationRule    `json:"validations,omitempty"`
	Conditions    []Condition         `json:"conditions,omitempty"`
	VisibleWhen   *Expr               `json:"visibleWhen,omitempty"`
	ParentFieldID FieldID             `json:"parentFieldId,omitempty"`
	NestedOptions map[string][]string `json:"nestedOptions,omitempty"`
	Children      []*Field            `json:"children,omitempty"`
	Repeatable    bool                `json:"repeatable,omitempty"`
}

// IsGroup reports whether the field only structures its children.
func (f *Field) IsGroup() bool { return len(f.Children) > 0 }

// Form is a form definition as delivered by the backend.
type Form struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Fields      []*Field `json:"fields"`
}

type fieldInfo struct {
	field *Field
	// chain lists the IDs from the top-level ancestor down to the field itself.
	chain    []FieldID
	patterns map[int]*regexp.Regexp
	operands map[int]float64
	depth    int
}

// Schema is a compiled, immutable Form. The Form must not be modified after
// Compile.
type Schema struct {
	form   *Form
	fields map[FieldID]*fieldInfo
	// cascade lists fields with a parentFieldId, parents before children.
	cascade []FieldID
}

// Compile validates a form definition and builds its lookup index.
func Compile(form *Form) (*Schema, error) {
	if form == nil {
		return nil, &SchemaError{Reason: "form is nil"}
	}
	s := &Schema{form: form, fields: make(map[FieldID]*fieldInfo)}
	if err := s.index(form.Fields, nil); err != nil {
		return nil, err
	}
	for _, info := range s.fields {
		if err := s.checkReferences(info); err != nil {
			return nil, err
		}
	}
	if err := s.orderCascade(); err != nil {
		return nil, err
	}
	return s, nil
}

// MustCompile is like Compile but panics on error. Intended for fixtures.
func MustCompile(form *Form) *Schema {
	s, err := Compile(form)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) index(fields []*Field, chain []FieldID) error {
	for _, f := range fields {
		if f == nil {
			return &SchemaError{Reason: "nil field"}
		}
		if f.ID == "" {
			return schemaErrorf("", "field %q has no id", f.Label)
		}
		if strings.ContainsAny(string(f.ID), ".[]") {
			return schemaErrorf(f.ID, "id must not contain '.', '[' or ']'")
		}
		if _, dup := s.fields[f.ID]; dup {
			return schemaErrorf(f.ID, "duplicate id")
		}
		if !knownTypes[f.Type] && !f.IsGroup() {
			return schemaErrorf(f.ID, "unknown type %q", f.Type)
		}
		if f.Repeatable && !f.IsGroup() {
			return schemaErrorf(f.ID, "repeatable field must have children")
		}
		own := make([]FieldID, len(chain)+1)
		copy(own, chain)
		own[len(chain)] = f.ID
		info := &fieldInfo{field: f, chain: own}
		if err := compileRules(info); err != nil {
			return err
		}
		s.fields[f.ID] = info
		if err := s.index(f.Children, own); err != nil {
			return err
		}
	}
	return nil
}

func compileRules(info *fieldInfo) error {
	f := info.field
	for i, r := range f.Validations {
		switch r.Kind {
		case RuleMin, RuleMax, RuleTextLength, RuleFileSize:
			n, ok := toFloat(r.Operand)
			if !ok {
				return schemaErrorf(f.ID, "rule %s: operand %v is not numeric", r.Kind, r.Operand)
			}
			if info.operands == nil {
				info.operands = make(map[int]float64)
			}
			info.operands[i] = n
		case RuleRegex:
			pattern, _ := r.Operand.(string)
			re, err := regexp.Compile(pattern)
			if err != nil {
				return schemaErrorf(f.ID, "rule regex: %v", err)
			}
			if info.patterns == nil {
				info.patterns = make(map[int]*regexp.Regexp)
			}
			info.patterns[i] = re
		case RuleFileType:
			if _, ok := r.Operand.(string); !ok {
				return schemaErrorf(f.ID, "rule fileType: operand must be a string")
			}
		default:
			return schemaErrorf(f.ID, "unknown validation rule %q", r.Kind)
		}
	}
	return nil
}

func (s *Schema) checkReferences(info *fieldInfo) error {
	f := info.field
	if f.ParentFieldID != "" {
		if err := s.checkRef(info, f.ParentFieldID, "parentFieldId"); err != nil {
			return err
		}
		if f.ParentFieldID == f.ID {
			return schemaErrorf(f.ID, "field cannot be its own parent")
		}
	}
	for _, c := range f.Conditions {
		if err := s.checkCondition(info, &c); err != nil {
			return err
		}
	}
	if f.VisibleWhen != nil {
		return s.checkExpr(info, f.VisibleWhen)
	}
	return nil
}

func (s *Schema) checkExpr(info *fieldInfo, e *Expr) error {
	set := 0
	if len(e.All) > 0 {
		set++
	}
	if len(e.Any) > 0 {
		set++
	}
	if e.Not != nil {
		set++
	}
	if e.Condition != nil {
		set++
	}
	if set != 1 {
		return schemaErrorf(info.field.ID, "visibleWhen node must set exactly one of all, any, not, condition")
	}
	switch {
	case e.Condition != nil:
		return s.checkCondition(info, e.Condition)
	case e.Not != nil:
		return s.checkExpr(info, e.Not)
	}
	subs := make([]*Expr, 0, len(e.All)+len(e.Any))
	subs = append(append(subs, e.All...), e.Any...)
	for _, sub := range subs {
		if sub == nil {
			return schemaErrorf(info.field.ID, "visibleWhen contains a nil node")
		}
		if err := s.checkExpr(info, sub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Schema) checkCondition(info *fieldInfo, c *Condition) error {
	if _, ok := operatorAliases[c.Operator]; !ok {
		return schemaErrorf(info.field.ID, "unknown condition operator %q", c.Operator)
	}
	switch c.Action {
	case "", ActionShow, ActionHide:
	default:
		return schemaErrorf(info.field.ID, "unknown condition action %q", c.Action)
	}
	return s.checkRef(info, c.Field, "condition")
}

// checkRef makes sure ref names a leaf whose repeatable ancestors all enclose
// the referencing field too, so the reference resolves from any instance.
func (s *Schema) checkRef(from *fieldInfo, ref FieldID, what string) error {
	target, ok := s.fields[ref]
	if !ok {
		return schemaErrorf(from.field.ID, "%s references unknown field %s", what, ref)
	}
	if target.field.IsGroup() {
		return schemaErrorf(from.field.ID, "%s references group %s", what, ref)
	}
	enclosing := make(map[FieldID]bool, len(from.chain))
	for _, id := range from.chain[:len(from.chain)-1] {
		enclosing[id] = true
	}
	for _, id := range target.chain[:len(target.chain)-1] {
		if s.fields[id].field.Repeatable && !enclosing[id] {
			return schemaErrorf(from.field.ID, "%s references %s inside repeatable group %s", what, ref, id)
		}
	}
	return nil
}

func (s *Schema) orderCascade() error {
	for id, info := range s.fields {
		if info.field.ParentFieldID == "" {
			continue
		}
		seen := map[FieldID]bool{id: true}
		depth := 0
		for cur := info.field.ParentFieldID; cur != ""; cur = s.fields[cur].field.ParentFieldID {
			if seen[cur] {
				return schemaErrorf(id, "parentFieldId chain is cyclic")
			}
			seen[cur] = true
			depth++
		}
		info.depth = depth
		s.cascade = append(s.cascade, id)
	}
	sort.Slice(s.cascade, func(i, j int) bool {
		di, dj := s.fields[s.cascade[i]].depth, s.fields[s.cascade[j]].depth
		if di != dj {
			return di < dj
		}
		return s.cascade[i] < s.cascade[j]
	})
	return nil
}

// Form returns the definition the schema was compiled from.
func (s *Schema) Form() *Form { return s.form }

// Field returns the field with the given ID.
func (s *Schema) Field(id FieldID) (*Field, bool) {
	info, ok := s.fields[id]
	if !ok {
		return nil, false
	}
	return info.field, true
}

// FindField returns the field a path addresses, checking the path's shape.
func (s *Schema) FindField(p Path) (*Field, bool) {
	if len(p) == 0 {
		return nil, false
	}
	info, ok := s.fields[p.Last()]
	if !ok || len(info.chain) != len(p) {
		return nil, false
	}
	for i, step := range p {
		if step.Field != info.chain[i] {
			return nil, false
		}
		repeat := s.fields[step.Field].field.Repeatable
		last := i == len(p)-1
		switch {
		case last && step.Index != NoIndex:
			return nil, false
		case !last && repeat && step.Index < 0:
			return nil, false
		case !last && !repeat && step.Index != NoIndex:
			return nil, false
		}
	}
	return info.field, true
}

// Children returns the child fields of id.
func (s *Schema) Children(id FieldID) []*Field {
	info, ok := s.fields[id]
	if !ok {
		return nil
	}
	return info.field.Children
}

// IsRepeatable reports whether id is a repeatable group.
func (s *Schema) IsRepeatable(id FieldID) bool {
	info, ok := s.fields[id]
	return ok && info.field.Repeatable
}

// resolveRef builds the concrete path of ref as seen from ctx, borrowing the
// instance indices of the repeatable groups ctx sits in.
func (s *Schema) resolveRef(ref FieldID, ctx Path) (Path, bool) {
	target, ok := s.fields[ref]
	if !ok {
		return nil, false
	}
	indices := make(map[FieldID]int, len(ctx))
	for _, step := range ctx {
		if step.Index >= 0 {
			indices[step.Field] = step.Index
		}
	}
	p := make(Path, 0, len(target.chain))
	for _, id := range target.chain[:len(target.chain)-1] {
		if s.fields[id].field.Repeatable {
			idx, ok := indices[id]
			if !ok {
				return nil, false
			}
			p = append(p, Step{Field: id, Index: idx})
			continue
		}
		p = append(p, Step{Field: id, Index: NoIndex})
	}
	return append(p, Step{Field: ref, Index: NoIndex}), true
}
