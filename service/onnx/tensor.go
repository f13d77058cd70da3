package onnx

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ImageNet 均值与标准差
var (
	mean = [3]float32{0.485, 0.456, 0.406}
	std  = [3]float32{0.229, 0.224, 0.225}
)

// FillInput 把图像缩放到 size x size，按 CHW 排列并做 ImageNet 标准化
func FillInput(img image.Image, dst []float32, size int) error {
	plane := size * size
	if len(dst) < plane*3 {
		return errors.Errorf("input tensor holds %d floats, need %d", len(dst), plane*3)
	}

	scaled := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := scaled.Bounds()
	red, green, blue := dst[:plane], dst[plane:plane*2], dst[plane*2:plane*3]

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, bl, _ := scaled.At(b.Min.X+x, b.Min.Y+y).RGBA()
			red[i] = (float32(r>>8)/255 - mean[0]) / std[0]
			green[i] = (float32(g>>8)/255 - mean[1]) / std[1]
			blue[i] = (float32(bl>>8)/255 - mean[2]) / std[2]
			i++
		}
	}
	return nil
}

// MaskFromOutput 把模型概率图做 min-max 归一化后转为灰度蒙版
func MaskFromOutput(data []float32, size int) (*image.Gray, error) {
	plane := size * size
	if size <= 0 || len(data) < plane {
		return nil, errors.Errorf("output tensor holds %d floats, need %d", len(data), plane)
	}
	data = data[:plane]

	lo, hi := float32(math.MaxFloat32), float32(-math.MaxFloat32)
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	// 输出为常数时按概率值直接换算
	span := hi - lo
	if span < 1e-6 {
		lo, span = 0, 1
	}

	mask := image.NewGray(image.Rect(0, 0, size, size))
	for i, v := range data {
		n := (v - lo) / span
		mask.Pix[i] = toByte(n)
	}
	return mask, nil
}

func toByte(v float32) uint8 {
	switch {
	case math.IsNaN(float64(v)) || v <= 0:
		return 0
	case v >= 1:
		return 0xff
	default:
		return uint8(v*255 + 0.5)
	}
}
