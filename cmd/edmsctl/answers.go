package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/uwamba/edms/internal/approval"
	"github.com/uwamba/edms/internal/formengine"
)

// answers is the on-disk form of a filled-in form. Keys are payload keys
// such as "field_7" or "field_9[1]". Values may be strings, numbers, booleans
// or string lists; files name paths relative to the answers file.
type answers struct {
	Values map[string]any      `json:"values"`
	Files  map[string][]string `json:"files"`
}

func (a *answers) UnmarshalJSON(b []byte) error {
	var raw struct {
		Values map[string]any             `json:"values"`
		Files  map[string]json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	a.Values = raw.Values
	a.Files = make(map[string][]string, len(raw.Files))
	for k, v := range raw.Files {
		var one string
		if err := json.Unmarshal(v, &one); err == nil {
			a.Files[k] = []string{one}
			continue
		}
		var many []string
		if err := json.Unmarshal(v, &many); err != nil {
			return fmt.Errorf("files.%s: expected a path or a list of paths", k)
		}
		a.Files[k] = many
	}
	return nil
}

// wire converts the answers to the flattened values and files Hydrate
// accepts. Relative file paths resolve against dir.
func (a *answers) wire(dir string) (url.Values, map[string][]*formengine.File, error) {
	values := url.Values{}
	for key, v := range a.Values {
		switch t := v.(type) {
		case nil:
		case string:
			values.Set(key, t)
		case bool:
			values.Set(key, strconv.FormatBool(t))
		case float64:
			values.Set(key, strconv.FormatFloat(t, 'f', -1, 64))
		case []any:
			for _, item := range t {
				s, ok := item.(string)
				if !ok {
					return nil, nil, fmt.Errorf("values.%s: list items must be strings", key)
				}
				values.Add(key, s)
			}
		default:
			return nil, nil, fmt.Errorf("values.%s: unsupported value %T", key, v)
		}
	}

	files := make(map[string][]*formengine.File, len(a.Files))
	for key, paths := range a.Files {
		for _, p := range paths {
			if !filepath.IsAbs(p) {
				p = filepath.Join(dir, p)
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return nil, nil, fmt.Errorf("files.%s: %w", key, err)
			}
			ct := mime.TypeByExtension(filepath.Ext(p))
			if ct == "" {
				ct = "application/octet-stream"
			}
			files[key] = append(files[key], formengine.NewFile(filepath.Base(p), ct, data))
		}
	}
	return values, files, nil
}

func hydrateFile(schema *formengine.Schema, path string) (*formengine.Store, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a answers
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	values, files, err := a.wire(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return formengine.Hydrate(schema, values, files)
}

func printProcess(w io.Writer, proc *approval.Process) {
	fmt.Fprintf(w, "%s: %s\n", proc.Name, proc.Outcome())
	for _, st := range proc.Steps {
		line := fmt.Sprintf("  %d. %-10s %-20s %s", st.StepNumber, st.Status, st.ApproverRole, st.ID)
		if st.DecidedBy != "" {
			line += " by " + st.DecidedBy
		}
		if st.Comment != "" {
			line += fmt.Sprintf(" %q", st.Comment)
		}
		fmt.Fprintln(w, line)
	}
}
