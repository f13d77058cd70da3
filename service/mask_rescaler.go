package service

import (
	"fmt"
	"image"
	"strings"

	"github.com/TIANLI0/MatteKit/model"
	"golang.org/x/image/draw"
)

// MaskRescaler 把模型输出的低分辨率蒙版还原到原图尺寸
type MaskRescaler struct {
	interp draw.Interpolator
}

func NewMaskRescaler(kernel string) (*MaskRescaler, error) {
	interp, err := parseUpscaleKernel(kernel)
	if err != nil {
		return nil, err
	}
	return &MaskRescaler{interp: interp}, nil
}

// RescaleToOriginal 返回尺寸严格等于 target 的新蒙版
func (r *MaskRescaler) RescaleToOriginal(mask *image.Gray, target model.Dimensions) (*image.Gray, error) {
	if target.Empty() {
		return nil, fmt.Errorf("%w: target %s has zero area", ErrDimensionMismatch, target)
	}
	if mask == nil || model.DimensionsOf(mask).Empty() {
		return nil, fmt.Errorf("%w: empty mask", ErrDimensionMismatch)
	}

	dst := image.NewGray(image.Rect(0, 0, target.Width, target.Height))
	if model.DimensionsOf(mask) == target {
		draw.Draw(dst, dst.Bounds(), mask, mask.Bounds().Min, draw.Src)
		return dst, nil
	}

	r.interp.Scale(dst, dst.Bounds(), mask, mask.Bounds(), draw.Src, nil)
	return dst, nil
}

func parseUpscaleKernel(name string) (draw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "", "catmullrom":
		return draw.CatmullRom, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "nearest":
		// 蒙版直接作为 alpha，块状放大会产生锯齿边缘
		return nil, fmt.Errorf("upscale kernel %q is not allowed", name)
	default:
		return nil, fmt.Errorf("unknown upscale kernel %q", name)
	}
}
