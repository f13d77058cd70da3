package model

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseImageFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    ImageFormat
		wantErr bool
	}{
		{in: "", want: FormatPNG},
		{in: "PNG", want: FormatPNG},
		{in: "tif", want: FormatTIFF},
		{in: " tiff ", want: FormatTIFF},
		{in: "jpg", want: FormatJPEG},
		{in: "jpeg", want: FormatJPEG},
		{in: "gif", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseImageFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImageFormat_MimeAndExtension(t *testing.T) {
	assert.Equal(t, "image/png", FormatPNG.MimeType())
	assert.Equal(t, "png", FormatPNG.Extension())
	assert.Equal(t, "image/tiff", FormatTIFF.MimeType())
	assert.Equal(t, "image/jpeg", FormatJPEG.MimeType())
	assert.Equal(t, "jpg", FormatJPEG.Extension())
}

func TestDimensions(t *testing.T) {
	img := image.NewGray(image.Rect(10, 20, 40, 30))
	d := DimensionsOf(img)
	assert.Equal(t, Dimensions{Width: 30, Height: 10}, d)
	assert.False(t, d.Empty())
	assert.Equal(t, "30x10", d.String())

	assert.True(t, Dimensions{Width: 0, Height: 5}.Empty())
	assert.True(t, Dimensions{Width: 5, Height: -1}.Empty())
}

func TestCompositeMode_String(t *testing.T) {
	assert.Equal(t, "composited", Composited.String())
	assert.Equal(t, "mask", MaskOnly.String())
	assert.Equal(t, "CompositeMode(7)", CompositeMode(7).String())
}
