package service

import (
	"context"
	"fmt"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/utils"
	"go.uber.org/zap"
)

// MattingService 串联 限制尺寸 → 分割 → 蒙版还原 → 合成 → 编码
type MattingService struct {
	constrainer  *SizeConstrainer
	segmentation *SegmentationAdapter
	rescaler     *MaskRescaler
	compositor   *Compositor
	encoder      *Encoder
}

func NewMattingService(cfg *config.Config, segmenter Segmenter) (*MattingService, error) {
	if segmenter == nil {
		return nil, fmt.Errorf("segmenter is required")
	}

	constrainer, err := NewSizeConstrainer(cfg.Matting.MaxDimension, cfg.Matting.DownscaleFilter)
	if err != nil {
		return nil, err
	}
	rescaler, err := NewMaskRescaler(cfg.Matting.UpscaleKernel)
	if err != nil {
		return nil, err
	}
	encoder, err := NewEncoder(cfg.Matting.PNGCompression)
	if err != nil {
		return nil, err
	}

	return &MattingService{
		constrainer:  constrainer,
		segmentation: NewSegmentationAdapter(segmenter, &cfg.Segmenter),
		rescaler:     rescaler,
		compositor:   NewCompositor(cfg.Matting.CompositeWorkers),
		encoder:      encoder,
	}, nil
}

// Process 处理单张图片，任一阶段失败即中止，不返回部分结果
func (s *MattingService) Process(ctx context.Context, data []byte, opts model.MattingOptions) (*model.MattingResult, error) {
	startTime := time.Now()
	if opts.Format == "" {
		opts.Format = model.FormatPNG
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	constrained, original, err := s.constrainer.Constrain(img)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("processing image",
		zap.String("original", original.String()),
		zap.String("constrained", model.DimensionsOf(constrained).String()),
		zap.Int("max_dimension", s.constrainer.MaxDimension()),
		zap.String("mode", opts.Mode.String()),
		zap.String("format", string(opts.Format)))

	segStart := time.Now()
	mask, err := s.segmentation.Segment(ctx, constrained)
	if err != nil {
		return nil, err
	}
	segDuration := time.Since(segStart)

	fullMask, err := s.rescaler.RescaleToOriginal(mask, original)
	if err != nil {
		return nil, err
	}

	out, err := s.compositor.Compose(ctx, img, fullMask, opts.Mode)
	if err != nil {
		return nil, err
	}

	encoded, err := s.encoder.Encode(out, opts.Format)
	if err != nil {
		return nil, err
	}

	utils.Logger.Info("image matted successfully",
		zap.Duration("segmentation", segDuration),
		zap.Duration("duration", time.Since(startTime)),
		zap.Int("bytes", len(encoded)))

	return &model.MattingResult{
		Data:   encoded,
		Format: opts.Format,
		Mode:   opts.Mode,
		Width:  original.Width,
		Height: original.Height,
	}, nil
}
