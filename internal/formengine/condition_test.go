package formengine_test

import (
	"testing"

	"github.com/uwamba/edms/internal/formengine"
)

func TestCompare(t *testing.T) {
	cases := []struct {
		op      formengine.Operator
		actual  any
		literal any
		want    bool
	}{
		{formengine.OpEquals, "Yes", "Yes", true},
		{formengine.OpEquals, "Yes", "No", false},
		{formengine.OpEquals, float64(5), "5", true},
		{formengine.OpEquals, "5.0", float64(5), true},
		{formengine.OpEquals, true, "true", true},
		{formengine.OpEquals, []string{"a", "b"}, "b", true},
		{formengine.OpEquals, nil, "x", false},
		{formengine.OpEquals, nil, nil, true},
		{formengine.OpNotEquals, nil, "x", true},
		{formengine.OpNotEquals, "a", "b", true},
		{"==", "a", "a", true},
		{"!=", "a", "a", false},
		{formengine.OpGreater, float64(11), float64(10), true},
		{formengine.OpGreater, "11", "9", true},
		{formengine.OpGreater, "abc", float64(1), false},
		{formengine.OpLess, float64(1), "abc", false},
		{formengine.OpLess, nil, float64(3), false},
		{">", float64(3), float64(3), false},
		{"<", float64(2), float64(3), true},
		{formengine.OpLess, []string{"1"}, float64(3), false},
		{"contains", "abc", "a", false},
	}
	for _, c := range cases {
		if got := formengine.Compare(c.op, c.actual, c.literal); got != c.want {
			t.Errorf("Compare(%q, %#v, %#v) = %v, want %v", c.op, c.actual, c.literal, got, c.want)
		}
	}
}

func TestVisibilityFollowsConditions(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t))
	if st.IsVisible(p("5")) {
		t.Fatal("dependents visible without answer")
	}
	st = set(t, st, "4", "Yes")
	if !st.IsVisible(p("5")) {
		t.Fatal("dependents hidden after Yes")
	}
	st = addInstance(t, st, "5")
	if !st.IsVisible(p("5[0].6")) {
		t.Fatal("name should be visible inside a visible group")
	}
	st = set(t, st, "4", "No")
	if st.IsVisible(p("5[0].6")) {
		t.Fatal("child of a hidden group must be hidden")
	}

	if st.IsVisible(p("15")) {
		t.Fatal("manager note visible with no days")
	}
	st = set(t, st, "11", 14)
	if !st.IsVisible(p("15")) {
		t.Fatal("manager note hidden for 14 days")
	}
}

func TestConditionsScopedToInstance(t *testing.T) {
	st := formengine.NewStore(leaveSchema(t))
	st = set(t, st, "4", "Yes")
	st = addInstance(t, st, "5")
	st = addInstance(t, st, "5")
	st = set(t, st, "5[0].8", "Child")
	st = set(t, st, "5[1].8", "Spouse")

	if !st.IsVisible(p("5[0].9")) {
		t.Fatal("school hidden for the child")
	}
	if st.IsVisible(p("5[1].9")) {
		t.Fatal("school visible for the spouse")
	}
}

func TestHideActionAndExpressions(t *testing.T) {
	form := &formengine.Form{ID: "f", Fields: []*formengine.Field{
		{ID: "role", Type: formengine.TypeSelect, Options: []string{"staff", "contractor", "intern"}},
		{ID: "years", Type: formengine.TypeNumber},
		{ID: "badge", Type: formengine.TypeText, Conditions: []formengine.Condition{
			{Field: "role", Operator: formengine.OpEquals, Value: "contractor", Action: formengine.ActionHide},
		}},
		{ID: "pension", Type: formengine.TypeText, VisibleWhen: &formengine.Expr{Any: []*formengine.Expr{
			{Condition: &formengine.Condition{Field: "role", Operator: formengine.OpEquals, Value: "staff"}},
			{All: []*formengine.Expr{
				{Condition: &formengine.Condition{Field: "years", Operator: formengine.OpGreater, Value: 2}},
				{Not: &formengine.Expr{Condition: &formengine.Condition{Field: "role", Operator: formengine.OpEquals, Value: "intern"}}},
			}},
		}}},
	}}
	st := formengine.NewStore(formengine.MustCompile(form))

	if !st.IsVisible(p("badge")) {
		t.Fatal("badge hidden with no role")
	}
	st = set(t, st, "role", "contractor")
	if st.IsVisible(p("badge")) {
		t.Fatal("badge shown to contractor")
	}
	if st.IsVisible(p("pension")) {
		t.Fatal("pension shown to new contractor")
	}
	st = set(t, st, "years", 3)
	if !st.IsVisible(p("pension")) {
		t.Fatal("pension hidden for senior contractor")
	}
	st = set(t, st, "role", "intern")
	if st.IsVisible(p("pension")) {
		t.Fatal("pension shown to intern")
	}
	st = set(t, st, "role", "staff")
	if !st.IsVisible(p("pension")) {
		t.Fatal("pension hidden for staff")
	}
}
