package service

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"runtime"

	"github.com/TIANLI0/MatteKit/model"
	"golang.org/x/sync/errgroup"
)

// Compositor 根据模式输出蒙版本身或以蒙版为 alpha 的透明底图像
type Compositor struct {
	workers int
}

// NewCompositor workers <= 0 时使用 GOMAXPROCS
func NewCompositor(workers int) *Compositor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Compositor{workers: workers}
}

// Compose 总是返回新图像，不修改 original 与 mask
func (c *Compositor) Compose(ctx context.Context, original image.Image, mask *image.Gray, mode model.CompositeMode) (image.Image, error) {
	if original == nil || mask == nil {
		return nil, fmt.Errorf("%w: missing image or mask", ErrDimensionMismatch)
	}
	src, m := model.DimensionsOf(original), model.DimensionsOf(mask)
	if src != m {
		return nil, fmt.Errorf("%w: image %s, mask %s", ErrDimensionMismatch, src, m)
	}

	switch mode {
	case model.MaskOnly:
		return copyGray(mask), nil
	case model.Composited:
		return c.composite(ctx, original, mask)
	default:
		return nil, fmt.Errorf("unknown composite mode %s", mode)
	}
}

// composite 按行分段并行：out.rgb = 原图颜色，out.a = 蒙版值（原图自带透明度时相乘）
func (c *Compositor) composite(ctx context.Context, original image.Image, mask *image.Gray) (*image.NRGBA, error) {
	b := original.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	band := (h + c.workers - 1) / c.workers
	g, gctx := errgroup.WithContext(ctx)
	for y0 := 0; y0 < h; y0 += band {
		y1 := min(y0+band, h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				compositeRow(out, original, mask, y)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func compositeRow(out *image.NRGBA, original image.Image, mask *image.Gray, y int) {
	b := original.Bounds()
	mb := mask.Bounds()
	dst := out.Pix[y*out.Stride : y*out.Stride+b.Dx()*4]
	off := mask.PixOffset(mb.Min.X, mb.Min.Y+y)
	alpha := mask.Pix[off : off+mb.Dx()]

	if src, ok := original.(*image.NRGBA); ok {
		row := src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):]
		for x := 0; x < b.Dx(); x++ {
			i := x * 4
			dst[i] = row[i]
			dst[i+1] = row[i+1]
			dst[i+2] = row[i+2]
			dst[i+3] = scaleAlpha(alpha[x], row[i+3])
		}
		return
	}

	for x := 0; x < b.Dx(); x++ {
		c := color.NRGBAModel.Convert(original.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
		i := x * 4
		dst[i] = c.R
		dst[i+1] = c.G
		dst[i+2] = c.B
		dst[i+3] = scaleAlpha(alpha[x], c.A)
	}
}

// scaleAlpha 不透明像素时结果精确等于蒙版值
func scaleAlpha(m, a uint8) uint8 {
	if a == 0xff {
		return m
	}
	return uint8((uint32(m)*uint32(a) + 127) / 255)
}

func copyGray(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	return dst
}
