package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/middleware"
	"github.com/TIANLI0/MatteKit/model"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Processor 单张图片的抠图管线
type Processor interface {
	Process(ctx context.Context, data []byte, opts model.MattingOptions) (*model.MattingResult, error)
}

type MattingHandler struct {
	cfg     *config.Config
	matting Processor
	cache   service.ResultCache
}

// NewMattingHandler cache 为 nil 时不使用缓存
func NewMattingHandler(cfg *config.Config, matting Processor, cache service.ResultCache) *MattingHandler {
	return &MattingHandler{
		cfg:     cfg,
		matting: matting,
		cache:   cache,
	}
}

// Routes 注册上传页面与抠图接口
func (h *MattingHandler) Routes(r gin.IRouter) {
	r.GET("/", h.Index)
	r.POST("/", h.Matte)
	r.POST("/api/v1/matte", h.Matte)
}

const indexPage = `<!doctype html>
<head>
    <title>MatteKit</title>
</head>
<body>
    <h1>Upload image</h1>
    <form method="POST" enctype="multipart/form-data">
        <p><input type="file" name="data"></p>
        <p><input type="checkbox" id="mask" name="mask" value="true"><label for="mask"> Mask only</label></p>
        <p><input type="submit" value="Get image"></p>
    </form>
</body>
</html>
`

// Index 简单的上传页面，也用作探活
func (h *MattingHandler) Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexPage))
}

// statusClientClosedRequest 客户端在处理完成前断开
const statusClientClosedRequest = 499

// Matte 处理图片上传，返回透明底图像或蒙版
func (h *MattingHandler) Matte(c *gin.Context) {
	file, err := c.FormFile("data")
	if err != nil {
		utils.Logger.Debug("missing upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "missing file param `data`",
		})
		return
	}

	// 验证文件大小
	if h.cfg.Upload.MaxSize > 0 && file.Size > h.cfg.Upload.MaxSize {
		c.JSON(http.StatusRequestEntityTooLarge, model.ErrorResponse{
			Success: false,
			Message: fmt.Sprintf("file exceeds size limit (%d MB)", h.cfg.Upload.MaxSize/(1024*1024)),
		})
		return
	}

	data, err := readUpload(file)
	if err != nil {
		utils.Logger.Error("failed to read upload", zap.Error(err))
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "failed to read upload",
			Error:   err.Error(),
		})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "empty image",
		})
		return
	}

	// 按内容嗅探类型，不信任客户端的 Content-Type
	mime := mimetype.Detect(data)
	if !h.isAllowedType(mime) {
		c.JSON(http.StatusUnsupportedMediaType, model.ErrorResponse{
			Success: false,
			Message: "unsupported file type",
			Error:   mime.String(),
		})
		return
	}

	opts, err := parseOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Success: false,
			Message: "invalid parameter",
			Error:   err.Error(),
		})
		return
	}

	ctx := c.Request.Context()
	md5 := utils.BytesMD5(data)
	cacheKey := service.CacheKey(md5, opts)

	utils.Logger.Info("file uploaded",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.String("mime", mime.String()),
		zap.Int64("size", file.Size),
		zap.String("mode", opts.Mode.String()))

	if cached := h.lookup(ctx, cacheKey); cached != nil {
		utils.Logger.Info("cache hit", zap.String("cache_key", cacheKey))
		h.writeImage(c, cached, opts.Format, true)
		return
	}

	result, err := h.matting.Process(ctx, data, opts)
	if err != nil {
		status := statusFor(err)
		fields := []zap.Field{zap.String("md5", md5), zap.Int("status", status), zap.Error(err)}
		if status >= http.StatusInternalServerError {
			utils.Logger.Error("failed to process image", fields...)
		} else {
			utils.Logger.Warn("rejected image", fields...)
		}
		c.JSON(status, model.ErrorResponse{
			Success: false,
			Message: messageFor(err),
			Error:   err.Error(),
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.SetResult(ctx, cacheKey, result.Data); err != nil {
			utils.Logger.Warn("failed to set cache", zap.Error(err))
		}
	}

	h.writeImage(c, result.Data, result.Format, false)
}

func (h *MattingHandler) lookup(ctx context.Context, key string) []byte {
	if h.cache == nil {
		return nil
	}
	data, err := h.cache.GetResult(ctx, key)
	if err != nil {
		utils.Logger.Warn("failed to get cache", zap.Error(err))
		return nil
	}
	return data
}

func (h *MattingHandler) writeImage(c *gin.Context, data []byte, format model.ImageFormat, cached bool) {
	if h.cache != nil {
		if cached {
			c.Header("X-Cache", "HIT")
		} else {
			c.Header("X-Cache", "MISS")
		}
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=output.%s", format.Extension()))
	c.Data(http.StatusOK, format.MimeType(), data)
}

func (h *MattingHandler) isAllowedType(mime *mimetype.MIME) bool {
	if len(h.cfg.Upload.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range h.cfg.Upload.AllowedTypes {
		if mime.Is(allowed) {
			return true
		}
	}
	return false
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// parseOptions mask 仅在值为 "true"（不区分大小写）时生效
func parseOptions(c *gin.Context) (model.MattingOptions, error) {
	var opts model.MattingOptions
	if strings.EqualFold(strings.TrimSpace(c.PostForm("mask")), "true") {
		opts.Mode = model.MaskOnly
	}

	format, err := model.ParseImageFormat(c.PostForm("format"))
	if err != nil {
		return opts, err
	}
	opts.Format = format
	return opts, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrEncoding):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrSegmentation):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request canceled"
	case errors.Is(err, service.ErrEmptyImage):
		return "empty image"
	case errors.Is(err, service.ErrInvalidImage):
		return "invalid image"
	case errors.Is(err, service.ErrEncoding):
		return "output format cannot hold this image"
	case errors.Is(err, service.ErrQueueFull):
		return "server busy, retry later"
	case errors.Is(err, service.ErrSegmentation):
		return "segmentation failed"
	default:
		return "image processing failed"
	}
}
