package formengine

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"strings"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// WriteMultipart writes the payload as multipart/form-data parts. The caller
// closes w.
func (p *Payload) WriteMultipart(w *multipart.Writer) error {
	for _, e := range p.Entries {
		if err := w.WriteField(e.Key, e.Value); err != nil {
			return fmt.Errorf("write field %s: %w", e.Key, err)
		}
	}
	for _, fp := range p.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(fp.Key), quoteEscaper.Replace(fp.File.Name)))
		ct := fp.File.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", fp.Key, err)
		}
		if _, err := part.Write(fp.File.Data); err != nil {
			return fmt.Errorf("write part %s: %w", fp.Key, err)
		}
	}
	return nil
}

// FromMultipart reads a parsed multipart form back into the shapes Hydrate
// accepts.
func FromMultipart(form *multipart.Form) (url.Values, map[string][]*File, error) {
	values := url.Values{}
	for k, v := range form.Value {
		values[k] = append([]string(nil), v...)
	}
	files := make(map[string][]*File, len(form.File))
	for k, headers := range form.File {
		for _, fh := range headers {
			f, err := readFileHeader(fh)
			if err != nil {
				return nil, nil, fmt.Errorf("read %s: %w", k, err)
			}
			files[k] = append(files[k], f)
		}
	}
	return values, files, nil
}

func readFileHeader(fh *multipart.FileHeader) (*File, error) {
	rc, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}
