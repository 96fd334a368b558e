package formengine_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/uwamba/edms/internal/formengine"
)

func TestCompileNumericIDs(t *testing.T) {
	s := leaveSchema(t)
	f, ok := s.Field("2")
	if !ok {
		t.Fatal("field 2 not found")
	}
	if f.ParentFieldID != "1" {
		t.Fatalf("expected parent 1, got %q", f.ParentFieldID)
	}
	if !s.IsRepeatable("5") {
		t.Fatal("5 should be repeatable")
	}
	if got := len(s.Children("5")); got != 4 {
		t.Fatalf("expected 4 children of 5, got %d", got)
	}
}

func TestFindFieldShape(t *testing.T) {
	s := leaveSchema(t)
	cases := map[string]bool{
		"1":      true,
		"5":      true,
		"5[0].6": true,
		"5.6":    false,
		"6":      false,
		"1[0]":   false,
		"99":     false,
		"1.2":    false,
	}
	for path, want := range cases {
		_, got := s.FindField(p(path))
		if got != want {
			t.Errorf("FindField(%s) = %v, want %v", path, got, want)
		}
	}
}

func TestCompileRejectsBadSchemas(t *testing.T) {
	cases := map[string]string{
		"duplicate id": `[{"id":"a","type":"text"},{"id":"a","type":"text"}]`,
		"empty id":     `[{"label":"x","type":"text"}]`,
		"unknown type": `[{"id":"a","type":"color"}]`,
		"repeatable leaf": `[{"id":"a","type":"text","repeatable":true}]`,
		"missing parent": `[{"id":"a","type":"select","parentFieldId":"zz"}]`,
		"missing condition field": `[{"id":"a","type":"text",
			"conditions":[{"field":"zz","operator":"equals","value":"x"}]}]`,
		"bad operator": `[{"id":"a","type":"text"},{"id":"b","type":"text",
			"conditions":[{"field":"a","operator":"contains","value":"x"}]}]`,
		"bad action": `[{"id":"a","type":"text"},{"id":"b","type":"text",
			"conditions":[{"field":"a","operator":"equals","value":"x","action":"toggle"}]}]`,
		"parent cycle": `[{"id":"a","type":"select","parentFieldId":"b"},
			{"id":"b","type":"select","parentFieldId":"a"}]`,
		"bad regex":       `[{"id":"a","type":"text","validations":[{"type":"regex","value":"("}]}]`,
		"non-numeric min": `[{"id":"a","type":"number","validations":[{"type":"min","value":"lots"}]}]`,
		"unknown rule":    `[{"id":"a","type":"text","validations":[{"type":"email"}]}]`,
		"into repeatable": `[{"id":"g","type":"group","repeatable":true,"children":[{"id":"x","type":"text"}]},
			{"id":"b","type":"text","conditions":[{"field":"x","operator":"equals","value":"1"}]}]`,
		"reference to group": `[{"id":"g","type":"group","children":[{"id":"x","type":"text"}]},
			{"id":"b","type":"text","conditions":[{"field":"g","operator":"equals","value":"1"}]}]`,
		"empty expression": `[{"id":"a","type":"text"},{"id":"b","type":"text","visibleWhen":{}}]`,
		"dotted id":        `[{"id":"a.b","type":"text"}]`,
	}
	for name, fields := range cases {
		t.Run(name, func(t *testing.T) {
			var form formengine.Form
			if err := json.Unmarshal([]byte(`{"id":"f","fields":`+fields+`}`), &form); err != nil {
				t.Fatalf("decode: %v", err)
			}
			_, err := formengine.Compile(&form)
			var se *formengine.SchemaError
			if !errors.As(err, &se) {
				t.Fatalf("expected SchemaError, got %v", err)
			}
			if !strings.HasPrefix(se.Error(), "schema: ") {
				t.Fatalf("unexpected message %q", se.Error())
			}
		})
	}
}

func TestCompileAllowsReferenceWithinInstance(t *testing.T) {
	form := &formengine.Form{ID: "f", Fields: []*formengine.Field{{
		ID: "g", Type: "group", Repeatable: true,
		Children: []*formengine.Field{
			{ID: "kind", Type: formengine.TypeSelect, Options: []string{"a", "b"}},
			{ID: "sub", Type: formengine.TypeSelect, ParentFieldID: "kind",
				NestedOptions: map[string][]string{"a": {"a1"}}},
		},
	}}}
	if _, err := formengine.Compile(form); err != nil {
		t.Fatalf("compile: %v", err)
	}
}

func TestPathString(t *testing.T) {
	for _, s := range []string{"12", "10.11", "7[0].9", "1[2].3[4].5"} {
		if got := formengine.MustParsePath(s).String(); got != s {
			t.Errorf("round trip %q gave %q", s, got)
		}
	}
	for _, bad := range []string{"", "a..b", "a[x]", "a[1", "[0]"} {
		if _, err := formengine.ParsePath(bad); err == nil {
			t.Errorf("ParsePath(%q) should fail", bad)
		}
	}
}
