package grabcut

import (
	"image"

	"gocv.io/x/gocv"
)

// saliencyDetector 用梯度能量近似显著区域，为 GrabCut 提供初始标记
type saliencyDetector struct{}

func newSaliencyDetector() *saliencyDetector {
	return &saliencyDetector{}
}

// Detect 返回 Otsu 二值化后的显著性图
func (sd *saliencyDetector) Detect(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	gradX := gocv.NewMat()
	defer gradX.Close()
	gradY := gocv.NewMat()
	defer gradY.Close()
	gocv.Sobel(gray, &gradX, gocv.MatTypeCV16S, 1, 0, 3, 1, 0, gocv.BorderDefault)
	gocv.Sobel(gray, &gradY, gocv.MatTypeCV16S, 0, 1, 3, 1, 0, gocv.BorderDefault)

	absX := gocv.NewMat()
	defer absX.Close()
	absY := gocv.NewMat()
	defer absY.Close()
	gocv.ConvertScaleAbs(gradX, &absX, 1, 0)
	gocv.ConvertScaleAbs(gradY, &absY, 1, 0)

	gradient := gocv.NewMat()
	defer gradient.Close()
	gocv.AddWeighted(absX, 0.5, absY, 0.5, 0, &gradient)

	// 模糊核随图像尺寸变化，保持为奇数
	k := oddKernel(min(img.Cols(), img.Rows())/50, 5, 21)
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gradient, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	gocv.Threshold(blurred, &saliency, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	return saliency
}

// ExtractRect 最大显著轮廓的外接矩形，外扩 5%
func (sd *saliencyDetector) ExtractRect(saliency *gocv.Mat, width, height int) image.Rectangle {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 21, Y: 21})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	contours := gocv.FindContours(dilated, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		border := max(1, int(float64(min(width, height))*0.1))
		return image.Rect(border, border, width-border, height-border)
	}

	var best image.Rectangle
	bestArea := -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			best = gocv.BoundingRect(contours.At(i))
		}
	}

	pad := int(float64(best.Dx()) * 0.05)
	return image.Rect(best.Min.X-pad, best.Min.Y-pad, best.Max.X+pad, best.Max.Y+pad).
		Intersect(image.Rect(0, 0, width, height))
}

// CreateMask 边框为确定背景，显著区域为可能前景，其余为可能背景
func (sd *saliencyDetector) CreateMask(saliency *gocv.Mat, width, height int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(maskBackground), 0, 0, 0), height, width, gocv.MatTypeCV8U)

	border := max(1, int(float64(min(width, height))*0.03))
	inner := mask.Region(image.Rect(border, border, width-border, height-border))
	inner.SetTo(gocv.NewScalar(float64(maskProbBackground), 0, 0, 0))
	inner.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 11, Y: 11})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*saliency, &dilated, kernel)

	seed := gocv.NewMat()
	defer seed.Close()
	gocv.Threshold(dilated, &seed, 128, float32(maskProbForeground), gocv.ThresholdBinary)

	gocv.Max(mask, seed, &mask)
	return mask
}

func oddKernel(v, lo, hi int) int {
	v = max(lo, min(hi, v))
	if v%2 == 0 {
		v++
	}
	return v
}
