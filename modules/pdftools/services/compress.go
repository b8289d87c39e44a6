package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	pdftypes "github.com/jacksonlee411/harbor-erp/modules/pdftools/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/pdf"
)

// flateLevel maps a 1..100 quality to a zlib level. Lower quality means more
// effort spent on size.
func flateLevel(quality int) int {
	switch {
	case quality <= 33:
		return 9
	case quality <= 66:
		return 7
	default:
		return 6
	}
}

// Compress rewrites the streams it can shrink, lets pdfcpu drop duplicate
// fonts and images, and writes the result with object and xref streams. A
// rewritten stream is only kept when it is smaller.
func (t *Toolkit) Compress(ctx context.Context, in pdftypes.Input, quality int) (pdftypes.Output, pdftypes.CompressionResult, error) {
	if quality < 1 || quality > 100 {
		return pdftypes.Output{}, pdftypes.CompressionResult{}, pdftypes.ErrQuality
	}
	doc, err := t.open(0, in)
	if err != nil {
		return pdftypes.Output{}, pdftypes.CompressionResult{}, err
	}

	lim := t.limits
	budget := pdf.NewBudget(lim.MaxDecodedBytes)
	lvl := flateLevel(quality)
	var res pdftypes.CompressionResult
	for _, n := range slices.Sorted(maps.Keys(doc.Table)) {
		if err := ctx.Err(); err != nil {
			return pdftypes.Output{}, pdftypes.CompressionResult{}, err
		}
		entry := doc.Table[n]
		if entry == nil || entry.Free || entry.Object == nil {
			continue
		}
		sd, ok := entry.Object.(types.StreamDict)
		if !ok {
			continue
		}
		kind, err := t.shrink(&sd, quality, lvl, lim.MaxImagePixels, budget)
		if err != nil {
			return pdftypes.Output{}, pdftypes.CompressionResult{}, &pdftypes.InputError{Name: in.Name, Err: err}
		}
		switch kind {
		case shrunkImage:
			entry.Object = sd
			res.ImagesRecompressed++
		case shrunkStream:
			entry.Object = sd
			res.StreamsRecompressed++
		}
	}

	doc.WriteObjectStream = true
	doc.WriteXRefStream = true
	var out bytes.Buffer
	err = pdf.Safely(func() error {
		if err := api.OptimizeContext(doc); err != nil {
			return err
		}
		return api.WriteContext(doc, &out)
	})
	if err != nil {
		return pdftypes.Output{}, pdftypes.CompressionResult{}, fmt.Errorf("write compressed document: %w", err)
	}
	data := out.Bytes()
	res.OriginalSize = int64(len(in.Data))
	res.CompressedSize = int64(len(data))
	res.SavedBytes = res.OriginalSize - res.CompressedSize
	if res.OriginalSize > 0 {
		res.Ratio = math.Round(float64(res.CompressedSize)/float64(res.OriginalSize)*1e4) / 1e4
	}
	t.logger.Debug("pdf compressed",
		zap.String("file", in.Name),
		zap.Int("quality", quality),
		zap.Int64("original", res.OriginalSize),
		zap.Int64("compressed", res.CompressedSize),
		zap.Int("images", res.ImagesRecompressed),
		zap.Int("streams", res.StreamsRecompressed),
	)
	return pdftypes.Output{Filename: "compressed_" + baseName(in.Name), Data: data, Pages: doc.PageCount}, res, nil
}

type shrinkKind int

const (
	unchanged shrinkKind = iota
	shrunkImage
	shrunkStream
)

// shrink rewrites sd in place when that makes it smaller. Only an exhausted
// decode budget is an error; anything else leaves the stream as it was.
func (t *Toolkit) shrink(sd *types.StreamDict, quality, lvl int, maxPixels int64, budget *pdf.Budget) (shrinkKind, error) {
	if sd.Raw == nil {
		return unchanged, nil
	}
	if typ := sd.Type(); typ != nil && (*typ == "Metadata" || *typ == "ObjStm" || *typ == "XRef") {
		return unchanged, nil
	}
	filters := filterNames(sd.Dict)
	_, hasParms := sd.Dict["DecodeParms"]
	switch {
	case len(filters) == 1 && filters[0] == "DCTDecode" && isImage(sd.Dict):
		data, err := pdf.ReencodeJPEG(sd.Raw, quality, maxPixels)
		if errors.Is(err, pdf.ErrImageLarge) {
			t.logger.Debug("image left as is", zap.Error(err))
			return unchanged, nil
		}
		if err != nil || data == nil || len(data) >= len(sd.Raw) {
			return unchanged, nil
		}
		setRaw(sd, data, nil)
		return shrunkImage, nil

	case len(filters) == 0 && !hasParms:
		data, err := pdf.EncodeFlate(sd.Raw, lvl)
		if err != nil || len(data) >= len(sd.Raw) {
			return unchanged, nil
		}
		plain := sd.Raw
		sd.Dict["Filter"] = types.Name("FlateDecode")
		sd.FilterPipeline = []types.PDFFilter{{Name: "FlateDecode"}}
		setRaw(sd, data, plain)
		return shrunkStream, nil

	case len(filters) == 1 && filters[0] == "FlateDecode" && !hasParms:
		plain, err := budget.Inflate(sd.Raw)
		if errors.Is(err, pdf.ErrTooLarge) {
			return unchanged, err
		}
		if err != nil {
			t.logger.Debug("stream left as is", zap.Error(err))
			return unchanged, nil
		}
		data, err := pdf.EncodeFlate(plain, lvl)
		if err != nil || len(data) >= len(sd.Raw) {
			return unchanged, nil
		}
		setRaw(sd, data, plain)
		return shrunkStream, nil
	}
	return unchanged, nil
}

func setRaw(sd *types.StreamDict, raw, content []byte) {
	n := int64(len(raw))
	sd.Raw = raw
	sd.Content = content
	sd.StreamLength = &n
	sd.StreamLengthObjNr = nil
	sd.Dict["Length"] = types.Integer(n)
}

func filterNames(d types.Dict) []string {
	switch f := d["Filter"].(type) {
	case types.Name:
		return []string{string(f)}
	case types.Array:
		out := make([]string, 0, len(f))
		for _, v := range f {
			if n, ok := v.(types.Name); ok {
				out = append(out, string(n))
			}
		}
		return out
	}
	return nil
}

func isImage(d types.Dict) bool {
	st := d.NameEntry("Subtype")
	return st != nil && *st == "Image"
}
