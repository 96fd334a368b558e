package formengine_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/uwamba/edms/internal/formengine"
)

func TestStoreSnapshotsAreImmutable(t *testing.T) {
	s0 := formengine.NewStore(leaveSchema(t), formengine.WithClock(clock))
	s1 := set(t, s0, "1", "USA")
	s2 := set(t, s1, "1", "Canada")

	if _, ok := s0.Get(p("1")); ok {
		t.Fatal("original snapshot changed")
	}
	if v, _ := s1.Get(p("1")); v != "USA" {
		t.Fatalf("s1 country = %v", v)
	}
	if v, _ := s2.Get(p("1")); v != "Canada" {
		t.Fatalf("s2 country = %v", v)
	}
}

func TestCascadeClearsStaleChildren(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t))
	st = set(t, st, "1", "USA")
	if got := st.OptionsFor(p("2")); !reflect.DeepEqual(got, []string{"CA", "NY"}) {
		t.Fatalf("states for USA = %v", got)
	}
	st = set(t, st, "2", "CA")
	st = set(t, st, "3", "LA")

	before := st
	st = set(t, st, "1", "Canada")
	if _, ok := st.Get(p("2")); ok {
		t.Fatal("state should be cleared after country change")
	}
	if _, ok := st.Get(p("3")); ok {
		t.Fatal("city should be cleared transitively")
	}
	if got := st.OptionsFor(p("2")); !reflect.DeepEqual(got, []string{"ON", "QC"}) {
		t.Fatalf("states for Canada = %v", got)
	}
	if got := st.OptionsFor(p("3")); len(got) != 0 || got == nil {
		t.Fatalf("city options without a state = %#v", got)
	}
	if v, _ := before.Get(p("3")); v != "LA" {
		t.Fatal("earlier snapshot lost its city")
	}
}

func TestCascadeKeepsStillValidValue(t *testing.T) {
	form := &formengine.Form{ID: "f", Fields: []*formengine.Field{
		{ID: "plan", Type: formengine.TypeSelect, Options: []string{"basic", "pro"}},
		{ID: "extras", Type: formengine.TypeMultiselect, ParentFieldID: "plan",
			NestedOptions: map[string][]string{
				"basic": {"email"},
				"pro":   {"email", "phone", "chat"},
			}},
	}}
	st := formengine.NewStore(formengine.MustCompile(form))
	st = set(t, st, "plan", "pro")
	st = set(t, st, "extras", []string{"email", "chat"})
	st = set(t, st, "plan", "basic")

	got, _ := st.Get(p("extras"))
	if !reflect.DeepEqual(got, []string{"email"}) {
		t.Fatalf("extras = %v, want only email", got)
	}
}

func TestSetTypeChecks(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t))
	cases := []struct {
		path string
		v    any
		want error
	}{
		{"11", "ten", formengine.ErrValueType},
		{"11", true, formengine.ErrValueType},
		{"1", 3, formengine.ErrValueType},
		{"14", "urgent", formengine.ErrValueType},
		{"13", "file.pdf", formengine.ErrValueType},
		{"10", "2020-01-01", formengine.ErrReadOnly},
		{"99", "x", formengine.ErrUnknownPath},
		{"5", "x", formengine.ErrUnknownPath},
		{"5[0].6", "x", formengine.ErrUnknownPath},
	}
	for _, c := range cases {
		if _, err := st.Set(p(c.path), c.v); !errors.Is(err, c.want) {
			t.Errorf("Set(%s, %v) = %v, want %v", c.path, c.v, err, c.want)
		}
	}

	st = set(t, st, "11", "12")
	if v, _ := st.Get(p("11")); v != float64(12) {
		t.Fatalf("numeric string stored as %#v", v)
	}
	st = set(t, st, "11", nil)
	if _, ok := st.Get(p("11")); ok {
		t.Fatal("nil should clear the value")
	}
}

func TestDateNowSeeded(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t), formengine.WithClock(clock))
	if v, _ := st.Get(p("10")); v != "2024-03-01" {
		t.Fatalf("date_now = %v", v)
	}
}

func TestRepeatInstances(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t))
	if _, err := st.AddRepeatInstance(p("1")); !errors.Is(err, formengine.ErrNotRepeatable) {
		t.Fatalf("expected ErrNotRepeatable, got %v", err)
	}

	st = addInstance(t, st, "5")
	st = addInstance(t, st, "5")
	st = addInstance(t, st, "5")
	st = set(t, st, "5[0].6", "Ann")
	st = set(t, st, "5[1].6", "Ben")
	st = set(t, st, "5[2].6", "Cid")
	if n := st.Instances(p("5")); n != 3 {
		t.Fatalf("instances = %d", n)
	}

	next, err := st.RemoveRepeatInstance(p("5"), 1)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if v, _ := next.Get(p("5[1].6")); v != "Cid" {
		t.Fatalf("instance 1 after removal = %v", v)
	}
	if n := st.Instances(p("5")); n != 3 {
		t.Fatal("removal changed the previous snapshot")
	}
	if _, err := next.RemoveRepeatInstance(p("5"), 5); !errors.Is(err, formengine.ErrUnknownPath) {
		t.Fatalf("expected ErrUnknownPath, got %v", err)
	}
}
