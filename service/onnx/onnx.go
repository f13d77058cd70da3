// Package onnx 使用 onnxruntime 运行 U²-Net/BASNet 类显著主体分割模型
package onnx

import (
	"context"
	"image"
	"os"
	"sync"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// Segmenter 单个会话的输入输出张量复用，Run 期间加锁
type Segmenter struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
}

// NewSegmenter 加载模型并预分配 1x3xNxN 输入与 1x1xNxN 输出
func NewSegmenter(cfg *config.ONNXConfig) (*Segmenter, error) {
	if cfg.InputSize <= 0 {
		return nil, errors.Errorf("invalid input size %d", cfg.InputSize)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", cfg.ModelPath)
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "failed to initialize onnxruntime")
		}
	}

	n := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, n, n))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create input tensor")
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1, n, n))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "failed to create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.IntraThreads); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "failed to set intra op threads")
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName}, []string{cfg.OutputName},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "failed to create session")
	}

	utils.Logger.Info("onnx model loaded",
		zap.String("model", cfg.ModelPath),
		zap.Int("input_size", cfg.InputSize))

	return &Segmenter{
		session: session,
		input:   input,
		output:  output,
		size:    cfg.InputSize,
	}, nil
}

// Segment 返回 NxN 的灰度蒙版，由调用方缩放回输入尺寸
func (s *Segmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, errors.New("session closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := FillInput(img, s.input.GetData(), s.size); err != nil {
		return nil, err
	}

	start := time.Now()
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}
	utils.Logger.Debug("onnx inference finished", zap.Duration("duration", time.Since(start)))

	return MaskFromOutput(s.output.GetData(), s.size)
}

func (s *Segmenter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.session != nil {
		err = s.session.Destroy()
		s.session = nil
	}
	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	if s.output != nil {
		s.output.Destroy()
		s.output = nil
	}
	return err
}
