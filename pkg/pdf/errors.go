package pdf

import (
	"errors"
	"fmt"
)

var (
	ErrMalformed  = errors.New("pdf: malformed document")
	ErrEncrypted  = errors.New("pdf: encrypted documents are not supported")
	ErrNotLoaded  = errors.New("pdf: document has no original bytes")
	ErrTooLarge   = fmt.Errorf("%w: decoded streams exceed the size limit", ErrMalformed)
	ErrImageLarge = errors.New("pdf: image exceeds the pixel limit")
)

func malformed(err error) error {
	if errors.Is(err, ErrMalformed) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}
