package service

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"strings"

	"github.com/TIANLI0/MatteKit/model"
	"golang.org/x/image/tiff"
)

// Encoder 把结果序列化为可传输的字节流
type Encoder struct {
	png         *png.Encoder
	jpegQuality int
}

// NewEncoder compression: default | none | fast | best
func NewEncoder(compression string) (*Encoder, error) {
	level, err := parsePNGCompression(compression)
	if err != nil {
		return nil, err
	}
	return &Encoder{
		png:         &png.Encoder{CompressionLevel: level},
		jpegQuality: 95,
	}, nil
}

// Encode 只接受 *image.Gray 与 *image.NRGBA；灰度图不会被补出 alpha 通道
func (e *Encoder) Encode(img image.Image, format model.ImageFormat) ([]byte, error) {
	var hasAlpha bool
	switch img.(type) {
	case *image.Gray:
	case *image.NRGBA:
		hasAlpha = true
	default:
		return nil, fmt.Errorf("%w: unsupported pixel format %T", ErrEncoding, img)
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case model.FormatPNG:
		err = e.png.Encode(&buf, img)
	case model.FormatTIFF:
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	case model.FormatJPEG:
		if hasAlpha {
			return nil, fmt.Errorf("%w: jpeg has no alpha channel, use png or tiff", ErrEncoding)
		}
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.jpegQuality})
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrEncoding, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}

	return buf.Bytes(), nil
}

func parsePNGCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return png.DefaultCompression, nil
	case "none":
		return png.NoCompression, nil
	case "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	default:
		return 0, fmt.Errorf("unknown png compression %q", name)
	}
}
