package formengine_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/uwamba/edms/internal/formengine"
)

const leaveForm = `{
  "id": "leave",
  "title": "Leave request",
  "fields": [
    {"id": 1, "label": "Country", "type": "select", "required": true, "options": ["USA", "Canada"]},
    {"id": 2, "label": "State", "type": "select", "required": true, "parentFieldId": 1,
     "nestedOptions": {"USA": ["CA", "NY"], "Canada": ["ON", "QC"]}},
    {"id": 3, "label": "City", "type": "select", "parentFieldId": 2,
     "nestedOptions": {"CA": ["LA", "SF"], "NY": ["NYC"], "ON": ["Toronto"]}},
    {"id": 4, "label": "Has dependents", "type": "radio", "options": ["Yes", "No"]},
    {"id": 5, "label": "Dependents", "type": "group", "repeatable": true, "required": true,
     "conditions": [{"field": 4, "operator": "equals", "value": "Yes", "action": "show"}],
     "children": [
       {"id": 6, "label": "Name", "type": "text", "required": true},
       {"id": 7, "label": "Age", "type": "number",
        "validations": [{"type": "min", "value": 0}, {"type": "max", "value": 120}]},
       {"id": 8, "label": "Relation", "type": "select", "options": ["Child", "Spouse"]},
       {"id": 9, "label": "School", "type": "text",
        "conditions": [{"field": 8, "operator": "equals", "value": "Child"}]}
     ]},
    {"id": 10, "label": "Requested on", "type": "date_now"},
    {"id": 11, "label": "Days", "type": "number", "required": true,
     "validations": [{"type": "min", "value": 1, "message": "At least one day."}]},
    {"id": 12, "label": "Reason", "type": "textarea",
     "validations": [{"type": "textLength", "value": 10}]},
    {"id": 13, "label": "Attachment", "type": "file",
     "validations": [{"type": "fileSize", "value": 1024}, {"type": "fileType", "value": "application/pdf, .docx"}]},
    {"id": 14, "label": "Tags", "type": "multiselect", "options": ["urgent", "paid", "unpaid"]},
    {"id": 15, "label": "Manager note", "type": "text",
     "conditions": [{"field": 11, "operator": "greater than", "value": 10}]}
  ]
}`

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func leaveSchema(t *testing.T) *formengine.Schema {
	t.Helper()
	var form formengine.Form
	if err := json.Unmarshal([]byte(leaveForm), &form); err != nil {
		t.Fatalf("decode form: %v", err)
	}
	s, err := formengine.Compile(&form)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return s
}

func p(s string) formengine.Path { return formengine.MustParsePath(s) }

func set(t *testing.T, st *formengine.Store, path string, v any) *formengine.Store {
	t.Helper()
	next, err := st.Set(p(path), v)
	if err != nil {
		t.Fatalf("set %s: %v", path, err)
	}
	return next
}

func addInstance(t *testing.T, st *formengine.Store, path string) *formengine.Store {
	t.Helper()
	next, err := st.AddRepeatInstance(p(path))
	if err != nil {
		t.Fatalf("add instance %s: %v", path, err)
	}
	return next
}
