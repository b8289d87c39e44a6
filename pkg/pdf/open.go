// Package pdf puts pdfcpu behind the checks an upload service needs: a
// bounded pre-parse pass, refusal of encrypted input, and the incremental
// page-append writer.
package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

var disableConfigDir sync.Once

// Configuration returns a fresh pdfcpu configuration that never touches the
// user config directory. Callers own the result.
func Configuration() *model.Configuration {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Open checks data against lim, then reads and validates it.
func Open(data []byte, lim Limits) (*model.Context, error) {
	if err := Check(data, lim); err != nil {
		return nil, err
	}
	var ctx *model.Context
	err := Safely(func() error {
		var err error
		ctx, err = api.ReadContext(bytes.NewReader(data), Configuration())
		if err != nil {
			return malformed(err)
		}
		if ctx.Encrypt != nil {
			return ErrEncrypted
		}
		if err := api.ValidateContext(ctx); err != nil {
			return malformed(err)
		}
		return nil
	})
	if errors.Is(err, ErrMalformed) && bytes.Contains(data, []byte("/Encrypt")) {
		return nil, ErrEncrypted
	}
	if err != nil {
		return nil, err
	}
	return ctx, nil
}

// Safely runs fn and turns a parser panic into ErrMalformed.
func Safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()
	return fn()
}

// Version is the header version, raised by a later catalog /Version.
func Version(ctx *model.Context, data []byte) string {
	v := HeaderVersion(data)
	cat, err := ctx.Catalog()
	if err != nil {
		return v
	}
	if cv := cat.NameEntry("Version"); cv != nil && *cv > v {
		return *cv
	}
	return v
}

// InfoText returns one decoded entry of the document information dictionary.
func InfoText(ctx *model.Context, key string) string {
	if ctx.Info == nil {
		return ""
	}
	d, err := ctx.DereferenceDict(*ctx.Info)
	if err != nil || d == nil {
		return ""
	}
	o, err := ctx.Dereference(d[key])
	if err != nil {
		return ""
	}
	var s string
	switch v := o.(type) {
	case types.StringLiteral:
		s, err = types.StringLiteralToString(v)
	case types.HexLiteral:
		s, err = types.HexLiteralToString(v)
	}
	if err != nil {
		return ""
	}
	return s
}
