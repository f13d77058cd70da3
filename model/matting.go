package model

import (
	"fmt"
	"image"
	"strings"
)

// CompositeMode 输出模式，每个请求只确定一次
type CompositeMode int

const (
	// Composited 原图以蒙版为 alpha 合成到透明画布（默认）
	Composited CompositeMode = iota
	// MaskOnly 只返回单通道蒙版
	MaskOnly
)

func (m CompositeMode) String() string {
	switch m {
	case Composited:
		return "composited"
	case MaskOnly:
		return "mask"
	default:
		return fmt.Sprintf("CompositeMode(%d)", int(m))
	}
}

// ImageFormat 输出编码格式
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatTIFF ImageFormat = "tiff"
	FormatJPEG ImageFormat = "jpeg"
)

// ParseImageFormat 解析表单中的格式字段，空值为 PNG
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "tif", "tiff":
		return FormatTIFF, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

func (f ImageFormat) MimeType() string {
	switch f {
	case FormatTIFF:
		return "image/tiff"
	case FormatJPEG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func (f ImageFormat) Extension() string {
	switch f {
	case FormatTIFF:
		return "tiff"
	case FormatJPEG:
		return "jpg"
	default:
		return "png"
	}
}

// Dimensions 以像素表示的宽高
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DimensionsOf 返回图像的宽高
func DimensionsOf(img image.Image) Dimensions {
	b := img.Bounds()
	return Dimensions{Width: b.Dx(), Height: b.Dy()}
}

// Empty 宽或高不为正时返回 true
func (d Dimensions) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// MattingOptions 单次请求的处理选项
type MattingOptions struct {
	Mode   CompositeMode
	Format ImageFormat
}

// MattingResult 管线最终输出
type MattingResult struct {
	Data   []byte
	Format ImageFormat
	Mode   CompositeMode
	Width  int
	Height int
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
