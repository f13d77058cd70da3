package grabcut

import (
	"image"

	"gocv.io/x/gocv"
)

// maskProcessor GrabCut 结果的后处理
type maskProcessor struct{}

func newMaskProcessor() *maskProcessor {
	return &maskProcessor{}
}

// ExtractForeground 确定前景与可能前景置为 255
func (mp *maskProcessor) ExtractForeground(mask *gocv.Mat) gocv.Mat {
	fg := gocv.NewMat()
	defer fg.Close()
	gocv.InRangeWithScalar(*mask, gocv.NewScalar(float64(maskForeground), 0, 0, 0), gocv.NewScalar(float64(maskForeground), 0, 0, 0), &fg)

	probable := gocv.NewMat()
	defer probable.Close()
	gocv.InRangeWithScalar(*mask, gocv.NewScalar(float64(maskProbForeground), 0, 0, 0), gocv.NewScalar(float64(maskProbForeground), 0, 0, 0), &probable)

	combined := gocv.NewMat()
	gocv.BitwiseOr(fg, probable, &combined)
	return combined
}

// Fill 把矩形区域标记为 value，越界部分忽略
func (mp *maskProcessor) Fill(mask *gocv.Mat, r image.Rectangle, value uint8) {
	r = r.Intersect(image.Rect(0, 0, mask.Cols(), mask.Rows()))
	if r.Empty() {
		return
	}
	region := mask.Region(r)
	defer region.Close()
	region.SetTo(gocv.NewScalar(float64(value), 0, 0, 0))
}

// MorphologyOptimize 先开后闭，去掉噪点并填补小孔
func (mp *maskProcessor) MorphologyOptimize(mask *gocv.Mat, kernelSize int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*mask, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	return closed
}

// RefineEdges 平滑锯齿后重新二值化
func (mp *maskProcessor) RefineEdges(mask *gocv.Mat) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 3, Y: 3})
	defer kernel.Close()

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.Dilate(*mask, &dilated, kernel)

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(dilated, &blurred, image.Point{X: 3, Y: 3}, 0, 0, gocv.BorderDefault)

	final := gocv.NewMat()
	gocv.Threshold(blurred, &final, 127, 255, gocv.ThresholdBinary)
	return final
}

// Feather 不做二值化的高斯羽化，边缘保留中间值
func (mp *maskProcessor) Feather(mask *gocv.Mat, width, height int) gocv.Mat {
	k := oddKernel(min(width, height)/200, 3, 9)
	soft := gocv.NewMat()
	gocv.GaussianBlur(*mask, &soft, image.Point{X: k, Y: k}, 0, 0, gocv.BorderReplicate)
	return soft
}

// KeepLargest 只保留面积最大的连通区域，没有前景时返回副本
func (mp *maskProcessor) KeepLargest(mask *gocv.Mat) gocv.Mat {
	contours := gocv.FindContours(*mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return mask.Clone()
	}

	largest, maxArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > maxArea {
			maxArea = area
			largest = i
		}
	}

	kept := gocv.NewMatWithSize(mask.Rows(), mask.Cols(), gocv.MatTypeCV8U)
	kept.SetTo(gocv.NewScalar(0, 0, 0, 0))
	gocv.DrawContours(&kept, contours, largest, white, -1)

	// 轮廓内部的孔洞按原蒙版恢复
	result := gocv.NewMat()
	gocv.BitwiseAnd(kept, *mask, &result)
	kept.Close()
	return result
}

// FillEdgeGaps 在图像边缘附近，邻域多数为前景的背景像素补为前景
func (mp *maskProcessor) FillEdgeGaps(mask, img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 30, 90)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3})
	defer kernel.Close()
	gocv.Dilate(edges, &edges, kernel)

	refined := mask.Clone()
	rows, cols := mask.Rows(), mask.Cols()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if edges.GetUCharAt(y, x) == 0 || mask.GetUCharAt(y, x) > 128 {
				continue
			}
			if mp.foregroundNeighbors(mask, x, y) > 12 {
				refined.SetUCharAt(y, x, 255)
			}
		}
	}
	return refined
}

// foregroundNeighbors 5x5 邻域内的前景像素数
func (mp *maskProcessor) foregroundNeighbors(mask *gocv.Mat, x, y int) int {
	count := 0
	for dy := -2; dy <= 2; dy++ {
		for dx := -2; dx <= 2; dx++ {
			nx, ny := x+dx, y+dy
			if nx >= 0 && nx < mask.Cols() && ny >= 0 && ny < mask.Rows() && mask.GetUCharAt(ny, nx) > 128 {
				count++
			}
		}
	}
	return count
}
