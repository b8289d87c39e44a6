package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"
)

const (
	DefaultMaxDecodedBytes = 512 << 20
	DefaultMaxImagePixels  = 40_000_000

	// A classic xref entry is 20 bytes; sloppy writers drop one EOL byte.
	minXrefEntry = 19
)

// Limits bound the work a single uploaded document may cause.
type Limits struct {
	// MaxDecodedBytes caps the inflated size of all Flate streams of one
	// document taken together.
	MaxDecodedBytes int64
	// MaxImagePixels caps the JPEG images decoded for re-encoding.
	MaxImagePixels int64
}

func (l Limits) withDefaults() Limits {
	if l.MaxDecodedBytes <= 0 {
		l.MaxDecodedBytes = DefaultMaxDecodedBytes
	}
	if l.MaxImagePixels <= 0 {
		l.MaxImagePixels = DefaultMaxImagePixels
	}
	return l
}

// Budget charges inflated bytes against one document's allowance.
type Budget struct {
	left int64
}

func NewBudget(max int64) *Budget {
	if max <= 0 {
		max = DefaultMaxDecodedBytes
	}
	return &Budget{left: max}
}

// Inflate decodes one zlib stream. It fails with ErrTooLarge once the
// output would overdraw the budget, without reading past the limit.
func (b *Budget) Inflate(raw []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, malformed(err)
	}
	defer zr.Close()

	out, err := io.ReadAll(io.LimitReader(zr, b.left+1))
	if int64(len(out)) > b.left {
		b.left = 0
		return nil, ErrTooLarge
	}
	b.left -= int64(len(out))
	if err != nil {
		return nil, malformed(err)
	}
	return out, nil
}

// measure is Inflate without keeping the output. Data that is not a zlib
// stream costs nothing.
func (b *Budget) measure(raw []byte) error {
	zr, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil
	}
	defer zr.Close()

	n, _ := io.Copy(io.Discard, io.LimitReader(zr, b.left+1))
	if n > b.left {
		b.left = 0
		return ErrTooLarge
	}
	b.left -= n
	return nil
}

// IsPDF reports whether data carries a PDF header within its first
// kilobyte.
func IsPDF(data []byte) bool {
	return bytes.Contains(data[:min(len(data), 1024)], []byte("%PDF-"))
}

// HeaderVersion returns the version of the %PDF- header, or "".
func HeaderVersion(data []byte) string {
	head := data[:min(len(data), 1024)]
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return ""
	}
	v := head[i+5:]
	end := 0
	for end < len(v) && end < 8 && (v[end] == '.' || (v[end] >= '0' && v[end] <= '9')) {
		end++
	}
	return string(v[:end])
}

// Check runs before a document reaches the parser. It rejects data without
// a header, classic xref subsections that claim more entries than the file
// could hold, and documents whose Flate streams inflate past
// lim.MaxDecodedBytes.
func Check(data []byte, lim Limits) error {
	lim = lim.withDefaults()
	if !IsPDF(data) {
		return fmt.Errorf("%w: missing %%PDF- header", ErrMalformed)
	}
	if err := checkXrefTables(data); err != nil {
		return err
	}
	return checkDecodedSize(data, NewBudget(lim.MaxDecodedBytes))
}

var (
	xrefKeyword   = []byte("xref")
	streamKeyword = []byte("stream")
)

func checkXrefTables(data []byte) error {
	for i := 0; ; {
		j := bytes.Index(data[i:], xrefKeyword)
		if j < 0 {
			return nil
		}
		pos := i + j
		i = pos + len(xrefKeyword)
		if pos > 0 && !isEOL(data[pos-1]) {
			continue
		}
		if i < len(data) && !isEOL(data[i]) && data[i] != ' ' {
			continue
		}
		if err := checkXrefSubsections(data, i); err != nil {
			return err
		}
	}
}

func checkXrefSubsections(data []byte, pos int) error {
	for pos < len(data) {
		var line []byte
		line, pos = nextLine(data, pos)
		fields := bytes.Fields(line)
		if len(fields) != 2 {
			return nil
		}
		if _, err := strconv.ParseUint(string(fields[0]), 10, 31); err != nil {
			return nil
		}
		count, err := strconv.ParseInt(string(fields[1]), 10, 64)
		if err != nil || count < 0 {
			return fmt.Errorf("%w: bad xref subsection %q", ErrMalformed, line)
		}
		if count > int64(len(data)-pos)/minXrefEntry+1 {
			return fmt.Errorf("%w: xref subsection of %d entries is larger than the file", ErrMalformed, count)
		}
		for range count {
			_, pos = nextLine(data, pos)
		}
	}
	return nil
}

func checkDecodedSize(data []byte, b *Budget) error {
	for i := 0; ; {
		j := bytes.Index(data[i:], streamKeyword)
		if j < 0 {
			return nil
		}
		pos := i + j
		i = pos + len(streamKeyword)
		if pos > 0 && data[pos-1] == 'd' {
			continue
		}
		body := i
		if body < len(data) && data[body] == '\r' {
			body++
		}
		if body < len(data) && data[body] == '\n' {
			body++
		}
		if body == i {
			continue
		}
		if err := b.measure(data[body:]); err != nil {
			return err
		}
	}
}

// nextLine skips leading EOL bytes and returns the following line.
func nextLine(data []byte, pos int) ([]byte, int) {
	for pos < len(data) && isEOL(data[pos]) {
		pos++
	}
	start := pos
	for pos < len(data) && !isEOL(data[pos]) {
		pos++
	}
	return data[start:pos], pos
}

func isEOL(c byte) bool { return c == '\n' || c == '\r' }
