package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"runtime"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/pdf"
)

const (
	mergedFilename  = "merged.pdf"
	defaultFilename = "document.pdf"
)

// Toolkit runs the document operations. Every call owns the documents it
// opens, so one Toolkit may serve concurrent requests.
type Toolkit struct {
	logger      *zap.Logger
	parallelism int
	limits      pdf.Limits
}

func NewToolkit(logger *zap.Logger, parallelism int) *Toolkit {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	return &Toolkit{logger: logger, parallelism: parallelism}
}

// WithLimits bounds the decoding work of every document the toolkit opens.
func (t *Toolkit) WithLimits(lim pdf.Limits) *Toolkit {
	t.limits = lim
	return t
}

// Merge concatenates the pages of every input in order.
func (t *Toolkit) Merge(ctx context.Context, inputs []types.Input) (types.Output, error) {
	if len(inputs) < 2 {
		return types.Output{}, types.ErrTooFewFiles
	}
	docs, err := t.openAll(ctx, inputs, 0)
	if err != nil {
		return types.Output{}, err
	}
	data, err := mergeRaw(ctx, inputs)
	if err != nil {
		return types.Output{}, err
	}
	pages := countPages(docs)
	t.logger.Debug("pdf merged", zap.Int("files", len(inputs)), zap.Int("pages", pages), zap.Int("bytes", len(data)))
	return types.Output{Filename: mergedFilename, Data: data, Pages: pages}, nil
}

// mergeRaw has pdfcpu write the pages of inputs, in order, into one new
// document. Inputs must already have passed open.
func mergeRaw(ctx context.Context, inputs []types.Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rs := make([]io.ReadSeeker, len(inputs))
	for i, in := range inputs {
		rs[i] = bytes.NewReader(in.Data)
	}
	var out bytes.Buffer
	err := pdf.Safely(func() error {
		return api.MergeRaw(rs, &out, false, pdf.Configuration())
	})
	if err != nil {
		return nil, fmt.Errorf("write merged document: %w", err)
	}
	return out.Bytes(), nil
}

// Split writes one document per range, in the order the ranges were given.
func (t *Toolkit) Split(ctx context.Context, in types.Input, ranges string) ([]types.Output, error) {
	src, err := t.open(0, in)
	if err != nil {
		return nil, err
	}
	parsed, err := ParsePageRanges(ranges, src.PageCount)
	if err != nil {
		return nil, err
	}

	out := make([]types.Output, len(parsed))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)
	for i, r := range parsed {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var b bytes.Buffer
			selected := []string{fmt.Sprintf("%d-%d", r.Start, r.End)}
			err := pdf.Safely(func() error {
				return api.Trim(bytes.NewReader(in.Data), &b, selected, pdf.Configuration())
			})
			if err != nil {
				return fmt.Errorf("write %s: %w", r.Filename(), err)
			}
			out[i] = types.Output{Filename: r.Filename(), Data: b.Bytes(), Pages: r.Pages()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	t.logger.Debug("pdf split", zap.String("file", in.Name), zap.Int("outputs", len(out)))
	return out, nil
}

// Append adds every page of the additional documents to the end of main.
// With incremental set the result is main's original bytes followed by an
// update section.
func (t *Toolkit) Append(ctx context.Context, main types.Input, additional []types.Input, incremental bool) (types.Output, error) {
	doc, err := t.open(0, main)
	if err != nil {
		return types.Output{}, err
	}
	extra, err := t.openAll(ctx, additional, 1)
	if err != nil {
		return types.Output{}, err
	}
	if err := ctx.Err(); err != nil {
		return types.Output{}, err
	}

	var data []byte
	pages := doc.PageCount + countPages(extra)
	if incremental {
		data, pages, err = pdf.AppendIncrement(main.Data, doc, extra)
	} else {
		data, err = mergeRaw(ctx, append([]types.Input{main}, additional...))
	}
	if err != nil {
		return types.Output{}, fmt.Errorf("write edited document: %w", err)
	}
	return types.Output{Filename: "edited_" + baseName(main.Name), Data: data, Pages: pages}, nil
}

// Info describes a document. Encrypted documents are reported rather than
// rejected.
func (t *Toolkit) Info(in types.Input) (types.DocumentInfo, error) {
	doc, err := t.open(0, in)
	if errors.Is(err, pdf.ErrEncrypted) {
		return types.DocumentInfo{Version: pdf.HeaderVersion(in.Data), Encrypted: true}, nil
	}
	if err != nil {
		return types.DocumentInfo{}, err
	}
	return types.DocumentInfo{
		Version:  pdf.Version(doc, in.Data),
		Pages:    doc.PageCount,
		Producer: pdf.InfoText(doc, "Producer"),
		Title:    pdf.InfoText(doc, "Title"),
	}, nil
}

// openAll parses inputs concurrently. Error indices start at offset.
func (t *Toolkit) openAll(ctx context.Context, inputs []types.Input, offset int) ([]*model.Context, error) {
	docs := make([]*model.Context, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.parallelism)
	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := t.open(offset+i, in)
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func (t *Toolkit) open(index int, in types.Input) (*model.Context, error) {
	if !pdf.IsPDF(in.Data) {
		return nil, &types.InputError{Index: index, Name: in.Name, Err: types.ErrNotPDF}
	}
	doc, err := pdf.Open(in.Data, t.limits)
	if err != nil {
		return nil, &types.InputError{Index: index, Name: in.Name, Err: err}
	}
	return doc, nil
}

func countPages(docs []*model.Context) int {
	n := 0
	for _, d := range docs {
		n += d.PageCount
	}
	return n
}

func baseName(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	if name == "" || name == "." || name == "/" {
		return defaultFilename
	}
	return name
}
