package service

import (
	"bytes"
	"fmt"
	"image"

	"github.com/TIANLI0/MatteKit/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// DecodeImage 解码上传内容并按 EXIF 方向摆正
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	if d := model.DimensionsOf(img); d.Empty() {
		return nil, fmt.Errorf("%w: zero-sized image %s", ErrInvalidImage, d)
	}
	return img, nil
}
