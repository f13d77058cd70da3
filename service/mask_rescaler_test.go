package service

import (
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskRescaler_ExactDimensions(t *testing.T) {
	tests := []struct {
		name   string
		mask   model.Dimensions
		target model.Dimensions
	}{
		{name: "方图", mask: model.Dimensions{Width: 64, Height: 64}, target: model.Dimensions{Width: 1000, Height: 1000}},
		{name: "竖图", mask: model.Dimensions{Width: 32, Height: 64}, target: model.Dimensions{Width: 501, Height: 1003}},
		{name: "横图", mask: model.Dimensions{Width: 64, Height: 32}, target: model.Dimensions{Width: 1999, Height: 1000}},
		{name: "单像素宽", mask: model.Dimensions{Width: 1, Height: 64}, target: model.Dimensions{Width: 1, Height: 1000}},
		{name: "单像素高", mask: model.Dimensions{Width: 64, Height: 1}, target: model.Dimensions{Width: 1000, Height: 1}},
		{name: "单像素", mask: model.Dimensions{Width: 1, Height: 1}, target: model.Dimensions{Width: 7, Height: 3}},
		{name: "缩小", mask: model.Dimensions{Width: 40, Height: 30}, target: model.Dimensions{Width: 13, Height: 11}},
	}

	for _, kernel := range []string{"catmullrom", "bilinear", "approxbilinear"} {
		r, err := NewMaskRescaler(kernel)
		require.NoError(t, err)

		for _, tt := range tests {
			t.Run(fmt.Sprintf("%s/%s", kernel, tt.name), func(t *testing.T) {
				mask := halfMask(tt.mask)
				got, err := r.RescaleToOriginal(mask, tt.target)
				require.NoError(t, err)
				assert.Equal(t, tt.target, model.DimensionsOf(got))
				assert.Equal(t, image.Point{}, got.Bounds().Min)
			})
		}
	}
}

func TestMaskRescaler_SameSizeCopies(t *testing.T) {
	r, err := NewMaskRescaler("")
	require.NoError(t, err)

	mask := halfMask(model.Dimensions{Width: 10, Height: 4})
	got, err := r.RescaleToOriginal(mask, model.Dimensions{Width: 10, Height: 4})
	require.NoError(t, err)

	assert.NotSame(t, mask, got)
	assert.Equal(t, mask.Pix, got.Pix)
}

func TestMaskRescaler_UniformStaysUniform(t *testing.T) {
	r, err := NewMaskRescaler("catmullrom")
	require.NoError(t, err)

	mask := image.NewGray(image.Rect(0, 0, 16, 8))
	for i := range mask.Pix {
		mask.Pix[i] = 200
	}

	got, err := r.RescaleToOriginal(mask, model.Dimensions{Width: 97, Height: 45})
	require.NoError(t, err)
	for _, v := range got.Pix {
		assert.InDelta(t, 200, int(v), 1)
	}
}

func TestMaskRescaler_PreservesRegions(t *testing.T) {
	r, err := NewMaskRescaler("catmullrom")
	require.NoError(t, err)

	got, err := r.RescaleToOriginal(halfMask(model.Dimensions{Width: 32, Height: 16}), model.Dimensions{Width: 320, Height: 160})
	require.NoError(t, err)

	assert.Equal(t, color.Gray{Y: 0xff}, got.GrayAt(5, 80))
	assert.Equal(t, color.Gray{Y: 0}, got.GrayAt(315, 80))
}

func TestMaskRescaler_Errors(t *testing.T) {
	r, err := NewMaskRescaler("")
	require.NoError(t, err)

	mask := halfMask(model.Dimensions{Width: 4, Height: 4})

	_, err = r.RescaleToOriginal(mask, model.Dimensions{Width: 0, Height: 10})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = r.RescaleToOriginal(mask, model.Dimensions{Width: 10, Height: 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = r.RescaleToOriginal(nil, model.Dimensions{Width: 10, Height: 10})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = NewMaskRescaler("nearest")
	assert.Error(t, err)

	_, err = NewMaskRescaler("bogus")
	assert.Error(t, err)
}
