package grabcut

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// GrabCut 掩码取值
const (
	maskBackground     uint8 = 0
	maskForeground     uint8 = 1
	maskProbBackground uint8 = 2
	maskProbForeground uint8 = 3
)

// 小于该边长时 GrabCut 无法建立颜色模型
const minSide = 16

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Segmenter 基于 OpenCV GrabCut 的内置分割后端，不依赖外部模型
type Segmenter struct {
	iterations int
	borderSize int
	softEdges  bool
	analyzer   *complexityAnalyzer
	saliency   *saliencyDetector
	masks      *maskProcessor
	portrait   *portraitDetector
}

func NewSegmenter(cfg *config.GrabCutConfig) *Segmenter {
	portrait := newPortraitDetector(cfg.FaceModel)
	return &Segmenter{
		iterations: max(1, cfg.Iterations),
		borderSize: cfg.BorderSize,
		softEdges:  cfg.SoftEdges,
		analyzer:   newComplexityAnalyzer(portrait),
		saliency:   newSaliencyDetector(),
		masks:      newMaskProcessor(),
		portrait:   portrait,
	}
}

// Close 释放人脸检测模型
func (s *Segmenter) Close() error {
	return s.portrait.Close()
}

// Segment 返回与输入同尺寸的 *image.Gray 蒙版，255 为主体
func (s *Segmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() < minSide || b.Dy() < minSide {
		utils.Logger.Debug("image too small for grabcut, keeping every pixel",
			zap.Int("width", b.Dx()),
			zap.Int("height", b.Dy()))
		return opaqueMask(b.Dx(), b.Dy()), nil
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return nil, fmt.Errorf("failed to convert image: empty mat")
	}

	startTime := time.Now()
	width, height := src.Cols(), src.Rows()

	scene := s.analyzer.Analyze(&src)
	utils.Logger.Debug("scene analyzed",
		zap.Stringer("level", scene.Level),
		zap.Float64("edge_density", scene.EdgeDensity),
		zap.Float64("color_variance", scene.ColorVariance),
		zap.Int("faces", len(scene.Faces)))

	var initRect image.Rectangle
	var mask gocv.Mat
	if scene.Level == levelSimple {
		border := s.borderSize
		if border < 10 {
			border = int(float64(min(width, height)) * 0.05)
		}
		border = max(1, border)
		initRect = image.Rect(border, border, width-border, height-border)
		mask = gocv.NewMat()
	} else {
		saliencyMap := s.saliency.Detect(&src)
		defer saliencyMap.Close()

		initRect = s.saliency.ExtractRect(&saliencyMap, width, height)
		mask = s.saliency.CreateMask(&saliencyMap, width, height)
		for _, face := range scene.Faces {
			s.masks.Fill(&mask, face, maskForeground)
		}
	}
	defer mask.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	iterations := scene.Level.iterations(s.iterations)
	if mask.Empty() {
		gocv.GrabCut(src, &mask, initRect, &bgdModel, &fgdModel, iterations, gocv.GCInitWithRect)
	} else {
		gocv.GrabCut(src, &mask, image.Rectangle{}, &bgdModel, &fgdModel, iterations, gocv.GCInitWithMask)
	}

	if scene.Level != levelSimple {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gocv.GrabCut(src, &mask, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)
	}

	fg := s.masks.ExtractForeground(&mask)
	defer func() { fg.Close() }()

	replace := func(next gocv.Mat) {
		fg.Close()
		fg = next
	}

	if scene.Level == levelPortrait {
		replace(s.portrait.EnhancePortraitMask(&fg, &src))
		replace(s.masks.FillEdgeGaps(&fg, &src))
	}

	kernelSize := 3
	if scene.Level == levelComplex || scene.Level == levelPortrait {
		kernelSize = 5
	}
	replace(s.masks.MorphologyOptimize(&fg, kernelSize))

	// 只保留一个显著主体
	replace(s.masks.KeepLargest(&fg))

	if s.softEdges {
		replace(s.masks.Feather(&fg, width, height))
	} else if scene.Level != levelSimple {
		replace(s.masks.RefineEdges(&fg))
	}

	out, err := fg.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to export mask: %w", err)
	}

	utils.Logger.Debug("grabcut finished",
		zap.Stringer("level", scene.Level),
		zap.Int("iterations", iterations),
		zap.Float64("coverage", coverage(&fg)),
		zap.Duration("duration", time.Since(startTime)))

	return out, nil
}

// opaqueMask 全部为主体的蒙版
func opaqueMask(width, height int) *image.Gray {
	mask := image.NewGray(image.Rect(0, 0, width, height))
	for i := range mask.Pix {
		mask.Pix[i] = 0xff
	}
	return mask
}

// coverage 前景像素占比
func coverage(mask *gocv.Mat) float64 {
	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(*mask)) / float64(total)
}
