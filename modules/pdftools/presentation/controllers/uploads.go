package controllers

import (
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"strconv"
	"strings"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
)

// readFiles returns the parts uploaded under field in upload order. A field
// with no parts yields an empty slice; the toolkit decides whether that is
// enough.
func readFiles(form *multipart.Form, field string) ([]types.Input, error) {
	if form == nil {
		return nil, nil
	}
	headers := form.File[field]
	out := make([]types.Input, 0, len(headers))
	for i, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			return nil, &types.InputError{Index: i, Name: fh.Filename, Err: err}
		}
		out = append(out, types.Input{Name: fh.Filename, Data: data})
	}
	return out, nil
}

func readFile(form *multipart.Form, field string) (types.Input, error) {
	files, err := readFiles(form, field)
	if err != nil {
		return types.Input{}, err
	}
	if len(files) == 0 {
		return types.Input{}, types.ErrMissingFile
	}
	return files[0], nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return data, nil
}

func formValue(form *multipart.Form, key string) string {
	if form == nil || len(form.Value[key]) == 0 {
		return ""
	}
	return form.Value[key][0]
}

func formBool(form *multipart.Form, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(formValue(form, key)))
	return err == nil && v
}

func removeAll(form *multipart.Form) {
	if form != nil {
		_ = form.RemoveAll()
	}
}

func zipName(upload string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(upload), `\`, "/"))
	base = strings.TrimSuffix(base, ".pdf")
	if base == "" || base == "." || base == "/" {
		base = "document"
	}
	return base + "_split.zip"
}
