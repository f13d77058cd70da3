package service

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

// Segmenter 外部显著主体分割模型，返回任意通道布局的蒙版图像
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (image.Image, error)
}

// SegmenterFunc 让普通函数满足 Segmenter
type SegmenterFunc func(ctx context.Context, img image.Image) (image.Image, error)

func (f SegmenterFunc) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	return f(ctx, img)
}

// SegmentationAdapter 调用分割模型并把输出规整为与输入同尺寸的灰度蒙版
type SegmentationAdapter struct {
	segmenter    Segmenter
	semaphore    chan struct{}
	queueTimeout time.Duration
	timeout      time.Duration
}

func NewSegmentationAdapter(segmenter Segmenter, cfg *config.SegmenterConfig) *SegmentationAdapter {
	return &SegmentationAdapter{
		segmenter:    segmenter,
		semaphore:    make(chan struct{}, max(1, cfg.MaxConcurrent)),
		queueTimeout: cfg.QueueTimeout,
		timeout:      cfg.Timeout,
	}
}

// Segment 对受限尺寸的图像执行分割，不做重试
func (a *SegmentationAdapter) Segment(ctx context.Context, img image.Image) (*image.Gray, error) {
	if err := a.acquire(ctx); err != nil {
		return nil, err
	}
	defer a.release()

	callCtx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	size := model.DimensionsOf(img)
	start := time.Now()

	raw, err := a.segmenter.Segment(callCtx, img)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSegmentation, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: model returned no output", ErrSegmentation)
	}

	utils.Logger.Debug("segmentation finished",
		zap.String("input", size.String()),
		zap.String("output", model.DimensionsOf(raw).String()),
		zap.Duration("duration", time.Since(start)))

	return NormalizeMask(raw, size)
}

// acquire 并发控制，排队超时返回 ErrQueueFull
func (a *SegmentationAdapter) acquire(ctx context.Context) error {
	queueCtx := ctx
	if a.queueTimeout > 0 {
		var cancel context.CancelFunc
		queueCtx, cancel = context.WithTimeout(ctx, a.queueTimeout)
		defer cancel()
	}

	select {
	case a.semaphore <- struct{}{}:
		return nil
	case <-queueCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrQueueFull
	}
}

func (a *SegmentationAdapter) release() {
	<-a.semaphore
}

// NormalizeMask 把模型输出转换为单通道灰度，尺寸与 size 不同时重采样到 size
func NormalizeMask(raw image.Image, size model.Dimensions) (*image.Gray, error) {
	got := model.DimensionsOf(raw)
	if got.Empty() {
		return nil, fmt.Errorf("%w: malformed mask dimensions %s", ErrSegmentation, got)
	}
	if size.Empty() {
		return nil, fmt.Errorf("%w: malformed input dimensions %s", ErrSegmentation, size)
	}

	gray := image.NewGray(image.Rect(0, 0, got.Width, got.Height))
	draw.Draw(gray, gray.Bounds(), raw, raw.Bounds().Min, draw.Src)
	if got == size {
		return gray, nil
	}

	scaled := image.NewGray(image.Rect(0, 0, size.Width, size.Height))
	draw.BiLinear.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Src, nil)
	return scaled, nil
}
