package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/TIANLI0/MatteKit/config"
	"github.com/TIANLI0/MatteKit/handler"
	"github.com/TIANLI0/MatteKit/middleware"
	"github.com/TIANLI0/MatteKit/service"
	"github.com/TIANLI0/MatteKit/service/grabcut"
	"github.com/TIANLI0/MatteKit/service/onnx"
	"github.com/TIANLI0/MatteKit/service/remote"
	"github.com/TIANLI0/MatteKit/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg, err := config.New()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting MatteKit server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("segmenter", cfg.Segmenter.Backend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 结果缓存默认关闭
	var cache service.ResultCache
	if cfg.Redis.Enabled {
		redisService := service.NewRedisService(&cfg.Redis)
		if err := redisService.Ping(ctx); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
			_ = redisService.Close()
		} else {
			utils.Logger.Info("redis connected successfully", zap.Duration("ttl", cfg.Redis.TTL))
			cache = redisService
			defer redisService.Close()
		}
	}

	// 初始化分割模型
	segmenter, closer, err := newSegmenter(cfg)
	if err != nil {
		utils.Logger.Fatal("failed to initialize segmenter", zap.Error(err))
	}
	defer closer.Close()

	mattingService, err := service.NewMattingService(cfg, segmenter)
	if err != nil {
		utils.Logger.Fatal("failed to initialize matting pipeline", zap.Error(err))
	}

	mattingHandler := handler.NewMattingHandler(cfg, mattingService, cache)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())
	r.MaxMultipartMemory = cfg.Upload.MaxSize

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"version":   Version,
			"segmenter": cfg.Segmenter.Backend,
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	mattingHandler.Routes(r)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		utils.Logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("server forced to shutdown", zap.Error(err))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newSegmenter 按 segmenter.backend 选择分割后端
func newSegmenter(cfg *config.Config) (service.Segmenter, io.Closer, error) {
	switch cfg.Segmenter.Backend {
	case "grabcut":
		seg := grabcut.NewSegmenter(&cfg.GrabCut)
		return seg, seg, nil
	case "onnx":
		seg, err := onnx.NewSegmenter(&cfg.ONNX)
		if err != nil {
			return nil, nil, err
		}
		return seg, seg, nil
	case "remote":
		return remote.NewSegmenter(&cfg.Remote), nopCloser{}, nil
	default:
		return nil, nil, fmt.Errorf("unknown segmenter backend %q", cfg.Segmenter.Backend)
	}
}
