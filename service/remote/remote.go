// Package remote 通过 HTTP 调用独立部署的分割模型服务
package remote

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/TIANLI0/MatteKit/config"
	nhttp "github.com/TIANLI0/MatteKit/utils/http"
	"github.com/disintegration/imaging"
)

// Segmenter 以 multipart 上传 PNG，响应体为蒙版图像
type Segmenter struct {
	url       string
	fileField string
	timeout   time.Duration
	cli       nhttp.IClient
}

func NewSegmenter(cfg *config.RemoteConfig) *Segmenter {
	return NewSegmenterWithClient(cfg, nhttp.NewHTTPClient(cfg.Timeout))
}

func NewSegmenterWithClient(cfg *config.RemoteConfig, cli nhttp.IClient) *Segmenter {
	field := cfg.FileField
	if field == "" {
		field = "image"
	}
	return &Segmenter{
		url:       cfg.URL,
		fileField: field,
		timeout:   cfg.Timeout,
		cli:       cli,
	}
}

func (s *Segmenter) Segment(ctx context.Context, img image.Image) (image.Image, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(s.fileField, "input.png")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(part, img); err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var resp []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: s.url,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   &resp,
		Timeout:    s.timeout,
	}
	if err := s.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("empty response from %s", s.url)
	}

	mask, err := imaging.Decode(bytes.NewReader(resp))
	if err != nil {
		return nil, fmt.Errorf("decode mask: %w", err)
	}
	return mask, nil
}
