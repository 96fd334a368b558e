package formengine_test

import (
	"testing"

	"github.com/uwamba/edms/internal/formengine"
)

// validLeave answers every required visible field of the leave form.
func validLeave(t *testing.T) *formengine.Store {
	t.Helper()
	st := formengine.NewStore(leaveSchema(t), formengine.WithClock(clock))
	st = set(t, st, "1", "USA")
	st = set(t, st, "2", "NY")
	st = set(t, st, "4", "No")
	st = set(t, st, "11", 3)
	return st
}

func TestValidateSingleRequiredField(t *testing.T) {
	form := &formengine.Form{ID: "f", Fields: []*formengine.Field{
		{ID: "name", Type: formengine.TypeText, Required: true},
		{ID: "note", Type: formengine.TypeText},
	}}
	errs := formengine.NewStore(formengine.MustCompile(form)).Validate()
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
	if errs["name"] != formengine.MsgRequired {
		t.Fatalf("name error = %q", errs["name"])
	}
}

func TestValidateValidStore(t *testing.T) {
	if errs := validLeave(t).Validate(); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
}

func TestValidateRequiredRepeatableGroup(t *testing.T) {
	st := set(t, validLeave(t), "4", "Yes")

	errs := st.Validate()
	if errs["5"] != formengine.MsgAtLeastOne {
		t.Fatalf("group error = %q (all: %v)", errs["5"], errs)
	}

	st = addInstance(t, st, "5")
	errs = st.Validate()
	if _, ok := errs["5"]; ok {
		t.Fatal("group error should disappear once an instance exists")
	}
	if errs["5[0].6"] != formengine.MsgRequired {
		t.Fatalf("instance name error = %q (all: %v)", errs["5[0].6"], errs)
	}

	st = set(t, st, "5[0].6", "Ann")
	st = set(t, st, "5[0].7", 150)
	errs = st.Validate()
	if errs["5[0].7"] != "Must be at most 120." {
		t.Fatalf("age error = %q", errs["5[0].7"])
	}
}

func TestValidateSkipsHiddenFields(t *testing.T) {
	st := set(t, validLeave(t), "4", "Yes")
	st = addInstance(t, st, "5")
	st = set(t, st, "4", "No")
	if errs := st.Validate(); len(errs) != 0 {
		t.Fatalf("hidden group was validated: %v", errs)
	}
}

func TestValidateRulesShortCircuit(t *testing.T) {
	st := set(t, validLeave(t), "11", 0)
	errs := st.Validate()
	if errs["11"] != "At least one day." {
		t.Fatalf("days error = %q", errs["11"])
	}

	st = set(t, st, "11", 2)
	st = set(t, st, "12", "short")
	if got := st.Validate()["12"]; got != "Minimum 10 characters." {
		t.Fatalf("reason error = %q", got)
	}
	st = set(t, st, "12", "")
	if errs := st.Validate(); len(errs) != 0 {
		t.Fatalf("empty optional field ran rules: %v", errs)
	}
}

func TestValidateFiles(t *testing.T) {
	st := validLeave(t)
	cases := []struct {
		file *formengine.File
		want string
	}{
		{formengine.NewFile("a.pdf", "application/pdf", []byte("%PDF")), ""},
		{formengine.NewFile("a.docx", "application/octet-stream", []byte("PK")), ""},
		{formengine.NewFile("a.png", "image/png", []byte("png")), "File type is not allowed."},
		{formengine.NewFile("big.pdf", "application/pdf", make([]byte, 2048)), "File is too large."},
	}
	for _, c := range cases {
		got := set(t, st, "13", c.file).Validate()["13"]
		if got != c.want {
			t.Errorf("%s: error %q, want %q", c.file.Name, got, c.want)
		}
	}
}

func TestValidateOptionMembership(t *testing.T) {
	st, err := formengine.Hydrate(leaveSchema(t), map[string][]string{
		"field_1":  {"USA"},
		"field_2":  {"NY"},
		"field_4":  {"Maybe"},
		"field_11": {"lots"},
		"field_14": {"urgent", "overtime"},
	}, nil, formengine.WithClock(clock))
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	errs := st.Validate()
	if errs["4"] != formengine.MsgInvalidOption {
		t.Errorf("radio error = %q", errs["4"])
	}
	if errs["11"] != formengine.MsgNotNumber {
		t.Errorf("number error = %q", errs["11"])
	}
	if errs["14"] != formengine.MsgInvalidOption {
		t.Errorf("multiselect error = %q", errs["14"])
	}
	if len(errs) != 3 {
		t.Errorf("unexpected errors: %v", errs)
	}
}
