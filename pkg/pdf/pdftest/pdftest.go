// Package pdftest builds small PDF fixtures for tests.
package pdftest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/jacksonlee411/harbor-erp/pkg/pdf"
)

type Options struct {
	Pages int
	Title string
	// Image is drawn on every page.
	Image *Image
	// RawContent leaves page content streams unfiltered.
	RawContent bool
	// ObjectStreams has pdfcpu write object and xref streams.
	ObjectStreams bool
}

// Image is an 8-bit DeviceGray image XObject. Filter is empty for raw
// samples.
type Image struct {
	Width, Height int
	Filter        string
	Data          []byte
}

// Build writes the fixture and has pdfcpu rewrite it. Page n shows the text
// "Page n".
func Build(tb testing.TB, opts Options) []byte {
	tb.Helper()

	raw := Raw(tb, opts)
	conf := pdf.Configuration()
	conf.WriteObjectStream = opts.ObjectStreams
	conf.WriteXRefStream = opts.ObjectStreams
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(raw), &out, conf); err != nil {
		tb.Fatal(err)
	}
	return out.Bytes()
}

// Raw returns the fixture as written here: PDF 1.7 with a classic xref
// table, objects in ascending order and the info dictionary last.
func Raw(tb testing.TB, opts Options) []byte {
	tb.Helper()

	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}
	addStream := func(dict string, data []byte) int {
		return add(fmt.Sprintf("<<%s /Length %d>>\nstream\n%s\nendstream", dict, len(data), data))
	}

	add("<</Type /Catalog /Pages 2 0 R>>")
	add("") // page tree root, filled in below
	font := add("<</Type /Font /Subtype /Type1 /BaseFont /Helvetica>>")
	res := fmt.Sprintf("<</Font <</F1 %d 0 R>>", font)
	if img := opts.Image; img != nil {
		dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8", img.Width, img.Height)
		if img.Filter != "" {
			dict += " /Filter /" + img.Filter
		}
		res += fmt.Sprintf(" /XObject <</Im1 %d 0 R>>", addStream(dict, img.Data))
	}
	resNum := add(res + ">>")

	kids := make([]string, 0, opts.Pages)
	for i := 1; i <= opts.Pages; i++ {
		text := fmt.Sprintf("BT /F1 24 Tf 72 700 Td (Page %d) Tj ET", i)
		if opts.Image != nil {
			text += "\nq 64 0 0 64 72 500 cm /Im1 Do Q"
		}
		var content int
		if opts.RawContent {
			content = addStream("", []byte(text))
		} else {
			enc, err := pdf.EncodeFlate([]byte(text), 6)
			if err != nil {
				tb.Fatal(err)
			}
			content = addStream("/Filter /FlateDecode", enc)
		}
		page := add(fmt.Sprintf("<</Type /Page /Parent 2 0 R /Resources %d 0 R /Contents %d 0 R>>", resNum, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[1] = fmt.Sprintf("<</Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792]>>", strings.Join(kids, " "), opts.Pages)

	trailer := "/Root 1 0 R"
	if opts.Title != "" {
		info := add(fmt.Sprintf("<</Title %s /Producer (pdftest)>>", literal(opts.Title)))
		trailer += fmt.Sprintf(" /Info %d 0 R", info)
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f\r\n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n\r\n", off)
	}
	fmt.Fprintf(&b, "trailer\n<</Size %d %s>>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, trailer, xref)
	return b.Bytes()
}

func literal(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return "(" + r.Replace(s) + ")"
}

// GrayImage returns an unfiltered w x h gradient.
func GrayImage(w, h int) *Image {
	data := make([]byte, w*h)
	for y := range h {
		for x := range w {
			data[y*w+x] = byte((x + y) * 255 / (w + h))
		}
	}
	return &Image{Width: w, Height: h, Data: data}
}

// Pages returns the page count pdfcpu reads from data.
func Pages(tb testing.TB, data []byte) int {
	tb.Helper()

	n, err := api.PageCount(bytes.NewReader(data), pdf.Configuration())
	if err != nil {
		tb.Fatal(err)
	}
	return n
}

// PageText returns the decoded content of page i (0-based).
func PageText(tb testing.TB, data []byte, i int) string {
	tb.Helper()

	ctx, err := api.ReadContext(bytes.NewReader(data), pdf.Configuration())
	if err != nil {
		tb.Fatal(err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		tb.Fatal(err)
	}
	page, _, _, err := ctx.PageDict(i+1, false)
	if err != nil {
		tb.Fatal(err)
	}
	if page == nil {
		tb.Fatalf("page %d not found", i)
	}
	o, err := ctx.Dereference(page["Contents"])
	if err != nil {
		tb.Fatal(err)
	}
	parts := []types.Object{o}
	if arr, ok := o.(types.Array); ok {
		parts = arr
	}
	var text strings.Builder
	for _, part := range parts {
		o, err := ctx.Dereference(part)
		if err != nil {
			tb.Fatal(err)
		}
		sd, ok := o.(types.StreamDict)
		if !ok {
			tb.Fatalf("page %d contents=%T", i, o)
		}
		if err := sd.Decode(); err != nil {
			tb.Fatal(err)
		}
		text.Write(sd.Content)
	}
	return text.String()
}

// JPEG returns a baseline grayscale JPEG of w x h with a busy pattern.
func JPEG(tb testing.TB, w, h, quality int) []byte {
	tb.Helper()

	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetGray(x, y, color.Gray{Y: uint8((x*y + x*7) % 256)})
		}
	}
	var b bytes.Buffer
	if err := jpeg.Encode(&b, img, &jpeg.Options{Quality: quality}); err != nil {
		tb.Fatal(err)
	}
	return b.Bytes()
}

// WithJPEGSize rewrites the frame header of data to declare w x h. The
// samples are left alone, so the result only decodes as far as its header.
func WithJPEGSize(tb testing.TB, data []byte, w, h int) []byte {
	tb.Helper()

	out := bytes.Clone(data)
	for i := 2; i+9 < len(out); {
		if out[i] != 0xff {
			tb.Fatalf("no marker at offset %d", i)
		}
		marker := out[i+1]
		size := int(binary.BigEndian.Uint16(out[i+2:]))
		if marker == 0xc0 || marker == 0xc2 {
			binary.BigEndian.PutUint16(out[i+5:], uint16(h))
			binary.BigEndian.PutUint16(out[i+7:], uint16(w))
			return out
		}
		i += 2 + size
	}
	tb.Fatal("no frame header")
	return nil
}
