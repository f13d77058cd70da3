package service

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, seg Segmenter) *MattingService {
	t.Helper()
	svc, err := NewMattingService(testConfig(), seg)
	require.NoError(t, err)
	return svc
}

func decodeResult(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestMattingService_LargeImageRoundTrip(t *testing.T) {
	seg := &recordingSegmenter{}
	svc := newTestService(t, seg)

	result, err := svc.Process(context.Background(), encodePNG(t, gradientImage(2000, 1000)), model.MattingOptions{})
	require.NoError(t, err)

	// 分割模型只看到受限尺寸
	assert.Equal(t, []model.Dimensions{{Width: 1024, Height: 512}}, seg.calls())

	assert.Equal(t, model.Composited, result.Mode)
	assert.Equal(t, model.FormatPNG, result.Format)
	assert.Equal(t, 2000, result.Width)
	assert.Equal(t, 1000, result.Height)

	out := decodeResult(t, result.Data)
	assert.Equal(t, model.Dimensions{Width: 2000, Height: 1000}, model.DimensionsOf(out))
	assert.Equal(t, uint8(0xff), alphaAt(out, 10, 500))
	assert.Equal(t, uint8(0), alphaAt(out, 1990, 500))
}

func TestMattingService_SmallImageNotResized(t *testing.T) {
	seg := &recordingSegmenter{}
	svc := newTestService(t, seg)

	result, err := svc.Process(context.Background(), encodePNG(t, gradientImage(640, 480)), model.MattingOptions{})
	require.NoError(t, err)

	assert.Equal(t, []model.Dimensions{{Width: 640, Height: 480}}, seg.calls())

	out := decodeResult(t, result.Data)
	nrgba, ok := out.(*image.NRGBA)
	require.True(t, ok)
	// 颜色保持原样，alpha 即蒙版
	src := gradientImage(640, 480)
	for _, p := range []image.Point{image.Pt(0, 0), image.Pt(100, 77), image.Pt(319, 479)} {
		i := nrgba.PixOffset(p.X, p.Y)
		assert.Equal(t, src.Pix[i:i+3], nrgba.Pix[i:i+3])
		assert.Equal(t, uint8(0xff), nrgba.Pix[i+3])
	}
	assert.Equal(t, uint8(0), alphaAt(out, 639, 0))
}

func TestMattingService_MaskOnly(t *testing.T) {
	svc := newTestService(t, &recordingSegmenter{})

	result, err := svc.Process(context.Background(), encodePNG(t, gradientImage(300, 200)), model.MattingOptions{Mode: model.MaskOnly})
	require.NoError(t, err)
	assert.Equal(t, model.MaskOnly, result.Mode)

	out := decodeResult(t, result.Data)
	gray, ok := out.(*image.Gray)
	require.True(t, ok, "mask output must stay single channel, got %T", out)
	assert.Equal(t, model.Dimensions{Width: 300, Height: 200}, model.DimensionsOf(gray))
	assert.Equal(t, uint8(0xff), gray.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(0), gray.GrayAt(299, 199).Y)
}

func TestMattingService_AlphaMatchesRescaledMask(t *testing.T) {
	cfg := testConfig()
	cfg.Matting.MaxDimension = 100
	seg := &recordingSegmenter{}
	svc, err := NewMattingService(cfg, seg)
	require.NoError(t, err)

	result, err := svc.Process(context.Background(), encodePNG(t, gradientImage(300, 200)), model.MattingOptions{})
	require.NoError(t, err)

	small := model.Dimensions{Width: 100, Height: 67}
	require.Equal(t, []model.Dimensions{small}, seg.calls())

	rescaler, err := NewMaskRescaler(cfg.Matting.UpscaleKernel)
	require.NoError(t, err)
	want, err := rescaler.RescaleToOriginal(halfMask(small), model.Dimensions{Width: 300, Height: 200})
	require.NoError(t, err)

	out := decodeResult(t, result.Data)
	for y := 0; y < 200; y += 7 {
		for x := 0; x < 300; x += 5 {
			require.Equal(t, want.GrayAt(x, y).Y, alphaAt(out, x, y), "pixel (%d,%d)", x, y)
		}
	}
}

func TestMattingService_Formats(t *testing.T) {
	svc := newTestService(t, &recordingSegmenter{})
	data := encodePNG(t, gradientImage(40, 30))

	tiffResult, err := svc.Process(context.Background(), data, model.MattingOptions{Format: model.FormatTIFF})
	require.NoError(t, err)
	assert.Equal(t, model.FormatTIFF, tiffResult.Format)
	assert.NotEmpty(t, tiffResult.Data)

	jpegMask, err := svc.Process(context.Background(), data, model.MattingOptions{Mode: model.MaskOnly, Format: model.FormatJPEG})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xff, 0xd8}, jpegMask.Data[:2])

	_, err = svc.Process(context.Background(), data, model.MattingOptions{Format: model.FormatJPEG})
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestMattingService_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{name: "空上传", data: nil, wantErr: ErrEmptyImage},
		{name: "空字节", data: []byte{}, wantErr: ErrEmptyImage},
		{name: "非图片", data: []byte("definitely not an image"), wantErr: ErrInvalidImage},
		{name: "截断的 png", data: []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, wantErr: ErrInvalidImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := &recordingSegmenter{}
			svc := newTestService(t, seg)

			result, err := svc.Process(context.Background(), tt.data, model.MattingOptions{})
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, seg.calls(), "segmenter must not be invoked")
		})
	}
}

func TestMattingService_SegmentationFailure(t *testing.T) {
	seg := SegmenterFunc(func(context.Context, image.Image) (image.Image, error) {
		return nil, nil
	})
	svc := newTestService(t, seg)

	result, err := svc.Process(context.Background(), encodePNG(t, gradientImage(10, 10)), model.MattingOptions{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrSegmentation)
}

func TestNewMattingService_Errors(t *testing.T) {
	_, err := NewMattingService(testConfig(), nil)
	assert.Error(t, err)

	cfg := testConfig()
	cfg.Matting.MaxDimension = 0
	_, err = NewMattingService(cfg, &recordingSegmenter{})
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Matting.UpscaleKernel = "nearest"
	_, err = NewMattingService(cfg, &recordingSegmenter{})
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Matting.PNGCompression = "ultra"
	_, err = NewMattingService(cfg, &recordingSegmenter{})
	assert.Error(t, err)
}
