package grabcut

import (
	"image"

	"gocv.io/x/gocv"
)

// level 场景复杂度，决定初始化方式与迭代次数
type level int

const (
	levelSimple level = iota
	levelMedium
	levelComplex
	levelPortrait
)

func (l level) String() string {
	switch l {
	case levelSimple:
		return "simple"
	case levelMedium:
		return "medium"
	case levelComplex:
		return "complex"
	case levelPortrait:
		return "portrait"
	default:
		return "unknown"
	}
}

// iterations 在基础迭代次数上按复杂度增减
func (l level) iterations(base int) int {
	switch l {
	case levelSimple:
		return max(3, base-2)
	case levelPortrait:
		return base + 1
	case levelComplex:
		return base + 2
	default:
		return base
	}
}

type sceneInfo struct {
	Level         level
	EdgeDensity   float64
	ColorVariance float64
	Faces         []image.Rectangle
}

type complexityAnalyzer struct {
	portrait *portraitDetector
}

func newComplexityAnalyzer(portrait *portraitDetector) *complexityAnalyzer {
	return &complexityAnalyzer{portrait: portrait}
}

// Analyze 依据边缘密度、Lab 颜色方差与人像特征判断场景
func (ca *complexityAnalyzer) Analyze(img *gocv.Mat) sceneInfo {
	info := sceneInfo{
		EdgeDensity:   ca.edgeDensity(img),
		ColorVariance: ca.colorVariance(img),
		Faces:         ca.portrait.DetectFaces(img),
	}
	info.Level = classify(info.EdgeDensity, info.ColorVariance, len(info.Faces) > 0 || ca.portrait.IsPortrait(img))
	return info
}

func classify(edgeDensity, colorVariance float64, portrait bool) level {
	switch {
	case portrait:
		return levelPortrait
	case edgeDensity < 0.05 && colorVariance < 30:
		return levelSimple
	case edgeDensity > 0.15 || colorVariance > 60:
		return levelComplex
	default:
		return levelMedium
	}
}

func (ca *complexityAnalyzer) edgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	return float64(gocv.CountNonZero(edges)) / float64(img.Rows()*img.Cols())
}

// colorVariance Lab 三通道标准差的均值
func (ca *complexityAnalyzer) colorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	if stddev.Rows() == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		sum += stddev.GetDoubleAt(i, 0)
	}
	return sum / float64(stddev.Rows())
}
