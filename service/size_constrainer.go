package service

import (
	"fmt"
	"image"
	"strings"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/nfnt/resize"
)

// SizeConstrainer 把输入图像限制在安全的处理尺寸内，只缩小不放大
type SizeConstrainer struct {
	maxDim int
	filter resize.InterpolationFunction
}

// NewSizeConstrainer 创建 SizeConstrainer，filter 为空时使用 lanczos3
func NewSizeConstrainer(maxDim int, filter string) (*SizeConstrainer, error) {
	if maxDim <= 0 {
		return nil, fmt.Errorf("max dimension must be positive, got %d", maxDim)
	}
	f, err := parseDownscaleFilter(filter)
	if err != nil {
		return nil, err
	}
	return &SizeConstrainer{maxDim: maxDim, filter: f}, nil
}

func (c *SizeConstrainer) MaxDimension() int {
	return c.maxDim
}

// Constrain 返回（可能缩小后的）图像以及原始尺寸。
// 两边都不超过 maxDim 时原样返回同一个图像。
func (c *SizeConstrainer) Constrain(img image.Image) (image.Image, model.Dimensions, error) {
	if img == nil {
		return nil, model.Dimensions{}, fmt.Errorf("%w: missing image data", ErrInvalidImage)
	}

	original := model.DimensionsOf(img)
	if original.Empty() {
		return nil, model.Dimensions{}, fmt.Errorf("%w: zero-sized image %s", ErrInvalidImage, original)
	}

	target := ConstrainedDimensions(original, c.maxDim)
	if target == original {
		return img, original, nil
	}

	resized := resize.Resize(uint(target.Width), uint(target.Height), img, c.filter)
	return resized, original, nil
}

// ConstrainedDimensions 计算等比缩小后的尺寸：长边等于 maxDim，短边四舍五入（半数进位），至少为1
func ConstrainedDimensions(d model.Dimensions, maxDim int) model.Dimensions {
	if d.Width <= maxDim && d.Height <= maxDim {
		return d
	}

	if d.Width >= d.Height {
		h := int(float64(d.Height)*float64(maxDim)/float64(d.Width) + 0.5)
		return model.Dimensions{Width: maxDim, Height: max(1, h)}
	}

	w := int(float64(d.Width)*float64(maxDim)/float64(d.Height) + 0.5)
	return model.Dimensions{Width: max(1, w), Height: maxDim}
}

func parseDownscaleFilter(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "", "lanczos3":
		return resize.Lanczos3, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "mitchell":
		return resize.MitchellNetravali, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "nearest":
		// 最近邻会产生锯齿，影响分割质量
		return 0, fmt.Errorf("downscale filter %q is not allowed", name)
	default:
		return 0, fmt.Errorf("unknown downscale filter %q", name)
	}
}
