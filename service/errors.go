package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidImage 输入无法解码、尺寸为0或类型不允许
	ErrInvalidImage = errors.New("invalid image")
	// ErrEmptyImage 上传内容为空
	ErrEmptyImage = fmt.Errorf("%w: empty image", ErrInvalidImage)
	// ErrSegmentation 分割模型无输出、输出格式错误或调用失败
	ErrSegmentation = errors.New("segmentation failed")
	// ErrDimensionMismatch 蒙版与原图尺寸不一致，属于内部不变量被破坏
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrEncoding 目标格式无法承载该像素格式
	ErrEncoding = errors.New("encoding failed")
	// ErrQueueFull 等待分割并发槽位超时
	ErrQueueFull = errors.New("processing queue is full, retry later")
)
