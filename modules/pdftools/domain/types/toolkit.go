package types

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTooFewFiles = errors.New("at least two PDF files are required")
	ErrMissingFile = errors.New("a PDF file is required")
	ErrNotPDF      = errors.New("file is not a PDF document")
	ErrQuality     = errors.New("quality must be between 1 and 100")
	// ErrBusy is returned when every toolkit job slot is taken.
	ErrBusy = errors.New("the PDF toolkit is busy, try again shortly")

	ErrArtifactNotFound = errors.New("artifact not found")
)

// RangeError reports one bad token of a page-range string.
type RangeError struct {
	Token  string
	Reason string
}

func (e *RangeError) Error() string {
	if e.Token == "" {
		return "page range: " + e.Reason
	}
	return fmt.Sprintf("page range %q: %s", e.Token, e.Reason)
}

// InputError ties a failure to one uploaded file.
type InputError struct {
	Index int
	Name  string
	Err   error
}

func (e *InputError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("file %d: %v", e.Index+1, e.Err)
	}
	return fmt.Sprintf("file %d (%s): %v", e.Index+1, e.Name, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by the request rather than by
// the server.
func IsValidation(err error) bool {
	if errors.Is(err, ErrTooFewFiles) || errors.Is(err, ErrMissingFile) || errors.Is(err, ErrNotPDF) || errors.Is(err, ErrQuality) {
		return true
	}
	if _, ok := errors.AsType[*RangeError](err); ok {
		return true
	}
	_, ok := errors.AsType[*InputError](err)
	return ok
}

// Input is one uploaded file.
type Input struct {
	Name string
	Data []byte
}

// Output is one produced document.
type Output struct {
	Filename string
	Data     []byte
	Pages    int
}

// PageRange is a 1-based inclusive page interval.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) Pages() int { return r.End - r.Start + 1 }

func (r PageRange) Filename() string { return fmt.Sprintf("split_%d-%d.pdf", r.Start, r.End) }

type CompressionResult struct {
	OriginalSize        int64   `json:"originalSize"`
	CompressedSize      int64   `json:"compressedSize"`
	Ratio               float64 `json:"ratio"`
	SavedBytes          int64   `json:"savedBytes"`
	ImagesRecompressed  int     `json:"imagesRecompressed"`
	StreamsRecompressed int     `json:"streamsRecompressed"`
}

// Artifact describes a stored output document.
type Artifact struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	Pages       int       `json:"pages"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

type DocumentInfo struct {
	Version   string `json:"version"`
	Pages     int    `json:"pages"`
	Encrypted bool   `json:"encrypted"`
	Producer  string `json:"producer,omitempty"`
	Title     string `json:"title,omitempty"`
}
