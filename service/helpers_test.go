package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Matting: config.MattingConfig{
			MaxDimension:    1024,
			DownscaleFilter: "lanczos3",
			UpscaleKernel:   "catmullrom",
			PNGCompression:  "fast",
		},
		Segmenter: config.SegmenterConfig{
			Backend:       "grabcut",
			MaxConcurrent: 2,
			QueueTimeout:  time.Second,
		},
	}
}

// gradientImage 不透明的渐变图，每个像素颜色不同
func gradientImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 0xff})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// halfMask 左半边为主体(255)，右半边为背景(0)
func halfMask(d model.Dimensions) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, d.Width, d.Height))
	for y := 0; y < d.Height; y++ {
		for x := 0; x < d.Width/2; x++ {
			mask.SetGray(x, y, color.Gray{Y: 0xff})
		}
	}
	return mask
}

// recordingSegmenter 记录每次调用收到的尺寸并返回 halfMask
type recordingSegmenter struct {
	mu    sync.Mutex
	sizes []model.Dimensions
}

func (s *recordingSegmenter) Segment(_ context.Context, img image.Image) (image.Image, error) {
	d := model.DimensionsOf(img)
	s.mu.Lock()
	s.sizes = append(s.sizes, d)
	s.mu.Unlock()
	return halfMask(d), nil
}

func (s *recordingSegmenter) calls() []model.Dimensions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Dimensions(nil), s.sizes...)
}

func alphaAt(img image.Image, x, y int) uint8 {
	return color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA).A
}
