package grabcut

import (
	"image"
	"sync"

	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// portraitDetector 基于肤色与可选的 Haar 人脸模型识别人像
type portraitDetector struct {
	mu         sync.Mutex
	classifier *gocv.CascadeClassifier
}

// newPortraitDetector faceModel 为空或加载失败时只使用肤色检测
func newPortraitDetector(faceModel string) *portraitDetector {
	pd := &portraitDetector{}
	if faceModel == "" {
		return pd
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(faceModel) {
		utils.Logger.Warn("failed to load face model, face detection disabled", zap.String("path", faceModel))
		classifier.Close()
		return pd
	}
	pd.classifier = &classifier
	return pd
}

func (pd *portraitDetector) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.classifier == nil {
		return nil
	}
	err := pd.classifier.Close()
	pd.classifier = nil
	return err
}

// DetectSkin YCrCb 空间的肤色区域
func (pd *portraitDetector) DetectSkin(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	skin := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb,
		gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0},
		gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255},
		&skin)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()
	gocv.MorphologyEx(skin, &skin, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skin, &skin, gocv.MorphOpen, kernel)

	return skin
}

// DetectFaces 未配置人脸模型时返回 nil
func (pd *portraitDetector) DetectFaces(img *gocv.Mat) []image.Rectangle {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.classifier == nil {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	return pd.classifier.DetectMultiScale(gray)
}

func (pd *portraitDetector) IsPortrait(img *gocv.Mat) bool {
	skin := pd.DetectSkin(img)
	defer skin.Close()

	return float64(gocv.CountNonZero(skin))/float64(img.Rows()*img.Cols()) > 0.15
}

// EnhancePortraitMask 把膨胀后的肤色区域并入前景
func (pd *portraitDetector) EnhancePortraitMask(mask, img *gocv.Mat) gocv.Mat {
	skin := pd.DetectSkin(img)
	defer skin.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(skin, &dilated, kernel)

	enhanced := gocv.NewMat()
	gocv.BitwiseOr(*mask, dilated, &enhanced)
	return enhanced
}
