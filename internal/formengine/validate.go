package formengine

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Validate checks every visible field and returns the first failing check
// per field, keyed by path. Hidden fields are never checked.
func (s *Store) Validate() ValidationErrors {
	errs := ValidationErrors{}
	s.validateFields(s.schema.form.Fields, nil, errs)
	return errs
}

func (s *Store) validateFields(fields []*Field, base Path, errs ValidationErrors) {
	for _, f := range fields {
		p := base.Child(f.ID)
		if !s.conditionsHold(f, p) {
			continue
		}
		switch {
		case f.Repeatable:
			n := s.Instances(p)
			if n == 0 && f.Required {
				errs[p.String()] = MsgAtLeastOne
				continue
			}
			for i := 0; i < n; i++ {
				s.validateFields(f.Children, p.At(i), errs)
			}
		case f.IsGroup():
			s.validateFields(f.Children, p, errs)
		default:
			if msg := s.checkField(f, p); msg != "" {
				errs[p.String()] = msg
			}
		}
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []string:
		return len(t) == 0
	case []*File:
		return len(t) == 0
	case *File:
		return t == nil
	}
	return false
}

func (s *Store) checkField(f *Field, p Path) string {
	v := s.value(p)
	if isEmpty(v) {
		if f.Required {
			return MsgRequired
		}
		return ""
	}
	if msg := s.checkType(f, p, v); msg != "" {
		return msg
	}
	info := s.schema.fields[f.ID]
	for i, r := range f.Validations {
		if !ruleHolds(info, i, r, v) {
			return ruleMessage(info, i, r)
		}
	}
	return ""
}

func (s *Store) checkType(f *Field, p Path, v any) string {
	switch f.Type {
	case TypeSelect, TypeRadio, TypeMultiselect:
		if len(f.Options) == 0 && f.ParentFieldID == "" {
			return ""
		}
		opts := s.OptionsFor(p)
		if list, ok := v.([]string); ok {
			for _, o := range list {
				if !contains(opts, o) {
					return MsgInvalidOption
				}
			}
			return ""
		}
		if !contains(opts, formatScalar(v)) {
			return MsgInvalidOption
		}
	case TypeNumber:
		if _, ok := toFloat(v); !ok {
			return MsgNotNumber
		}
	case TypeDate, TypeDateNow:
		str, ok := v.(string)
		if !ok {
			return MsgInvalidDate
		}
		if _, err := time.Parse(DateLayout, str); err != nil {
			return MsgInvalidDate
		}
	}
	return ""
}

func ruleHolds(info *fieldInfo, i int, r ValidationRule, v any) bool {
	switch r.Kind {
	case RuleMin, RuleMax:
		n, ok := toFloat(v)
		if !ok {
			return false
		}
		if r.Kind == RuleMin {
			return n >= info.operands[i]
		}
		return n <= info.operands[i]
	case RuleRegex:
		re := info.patterns[i]
		if list, ok := v.([]string); ok {
			for _, o := range list {
				if !re.MatchString(o) {
					return false
				}
			}
			return true
		}
		return re.MatchString(formatScalar(v))
	case RuleTextLength:
		return float64(utf8.RuneCountInString(formatScalar(v))) >= info.operands[i]
	case RuleFileSize:
		for _, f := range files(v) {
			if float64(f.Size) > info.operands[i] {
				return false
			}
		}
	case RuleFileType:
		allowed, _ := r.Operand.(string)
		for _, f := range files(v) {
			if !fileTypeAllowed(f, allowed) {
				return false
			}
		}
	}
	return true
}

func ruleMessage(info *fieldInfo, i int, r ValidationRule) string {
	if r.Message != "" {
		return r.Message
	}
	n := strconv.FormatFloat(info.operands[i], 'f', -1, 64)
	switch r.Kind {
	case RuleMin:
		return fmt.Sprintf("Must be at least %s.", n)
	case RuleMax:
		return fmt.Sprintf("Must be at most %s.", n)
	case RuleTextLength:
		return fmt.Sprintf("Minimum %s characters.", n)
	case RuleFileSize:
		return "File is too large."
	case RuleFileType:
		return "File type is not allowed."
	}
	return "Invalid format."
}

func files(v any) []*File {
	switch t := v.(type) {
	case *File:
		return []*File{t}
	case []*File:
		return t
	}
	return nil
}

// fileTypeAllowed matches f against a comma-separated list of MIME types
// ("application/pdf"), MIME families ("image/*") and extensions (".pdf").
func fileTypeAllowed(f *File, allowed string) bool {
	ct := strings.ToLower(strings.TrimSpace(f.ContentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	ext := strings.ToLower(filepath.Ext(f.Name))
	for _, a := range strings.Split(allowed, ",") {
		a = strings.ToLower(strings.TrimSpace(a))
		switch {
		case a == "":
		case strings.HasPrefix(a, "."):
			if a == ext {
				return true
			}
		case strings.HasSuffix(a, "/*"):
			if strings.HasPrefix(ct, strings.TrimSuffix(a, "*")) {
				return true
			}
		case a == ct:
			return true
		}
	}
	return false
}
