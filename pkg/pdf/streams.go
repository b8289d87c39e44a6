package pdf

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"

	"github.com/klauspost/compress/zlib"
)

// EncodeFlate zlib-compresses data at level (1..9).
func EncodeFlate(data []byte, level int) ([]byte, error) {
	var b bytes.Buffer
	zw, err := zlib.NewWriterLevel(&b, level)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// ReencodeJPEG encodes a JPEG again at quality. It returns nil without an
// error for color models the standard encoder cannot write back unchanged
// (CMYK, Adobe-inverted), and ErrImageLarge when the header declares more
// than maxPixels. The header is read before any pixel is decoded.
func ReencodeJPEG(data []byte, quality int, maxPixels int64) ([]byte, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, ErrImageLarge
	}
	if cfg.ColorModel != color.GrayModel && cfg.ColorModel != color.YCbCrModel {
		return nil, nil
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, nil
	}
	switch img.(type) {
	case *image.Gray, *image.YCbCr:
	default:
		return nil, nil
	}
	var b bytes.Buffer
	if err := jpeg.Encode(&b, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
