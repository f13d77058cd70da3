package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Upload    UploadConfig    `mapstructure:"upload"`
	Matting   MattingConfig   `mapstructure:"matting"`
	Segmenter SegmenterConfig `mapstructure:"segmenter"`
	GrabCut   GrabCutConfig   `mapstructure:"grabcut"`
	ONNX      ONNXConfig      `mapstructure:"onnx"`
	Remote    RemoteConfig    `mapstructure:"remote"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr 返回 http.Server 可用的监听地址，兼容 "8080" 与 ":8080" 两种写法
func (s ServerConfig) Addr() string {
	if s.Port == "" {
		return ":8080"
	}
	if strings.Contains(s.Port, ":") {
		return s.Port
	}
	return ":" + s.Port
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// MattingConfig 前后处理管线参数
type MattingConfig struct {
	MaxDimension     int    `mapstructure:"max_dimension"`
	DownscaleFilter  string `mapstructure:"downscale_filter"`
	UpscaleKernel    string `mapstructure:"upscale_kernel"`
	PNGCompression   string `mapstructure:"png_compression"`
	CompositeWorkers int    `mapstructure:"composite_workers"`
}

// SegmenterConfig 分割模型调用参数
type SegmenterConfig struct {
	Backend       string        `mapstructure:"backend"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type GrabCutConfig struct {
	Iterations int    `mapstructure:"iterations"`
	BorderSize int    `mapstructure:"border_size"`
	SoftEdges  bool   `mapstructure:"soft_edges"`
	FaceModel  string `mapstructure:"face_model"`
}

type ONNXConfig struct {
	LibraryPath  string `mapstructure:"library_path"`
	ModelPath    string `mapstructure:"model_path"`
	InputName    string `mapstructure:"input_name"`
	OutputName   string `mapstructure:"output_name"`
	InputSize    int    `mapstructure:"input_size"`
	IntraThreads int    `mapstructure:"intra_threads"`
}

type RemoteConfig struct {
	URL       string        `mapstructure:"url"`
	FileField string        `mapstructure:"file_field"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Load 从 YAML 文件加载配置；文件不存在时只使用默认值与环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 环境变量覆盖，例如 MATTEKIT_MATTING_MAX_DIMENSION
	v.SetEnvPrefix("MATTEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "PORT", "MATTEKIT_SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// New 从 MATTEKIT_CONFIG 指定的路径（默认 config.yaml）加载配置，
// 文件缺失时使用默认值，配置非法时返回错误
func New() (*Config, error) {
	path := os.Getenv("MATTEKIT_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return Load(path)
}

// Validate 检查会导致管线无法工作的配置
func (c *Config) Validate() error {
	if c.Matting.MaxDimension <= 0 {
		return fmt.Errorf("matting.max_dimension must be positive, got %d", c.Matting.MaxDimension)
	}
	if c.Segmenter.MaxConcurrent <= 0 {
		return fmt.Errorf("segmenter.max_concurrent must be positive, got %d", c.Segmenter.MaxConcurrent)
	}
	switch c.Segmenter.Backend {
	case "grabcut", "onnx", "remote":
	default:
		return fmt.Errorf("unknown segmenter backend %q", c.Segmenter.Backend)
	}
	if c.Segmenter.Backend == "remote" && c.Remote.URL == "" {
		return fmt.Errorf("remote.url is required for the remote segmenter")
	}
	if c.Segmenter.Backend == "onnx" && c.ONNX.ModelPath == "" {
		return fmt.Errorf("onnx.model_path is required for the onnx segmenter")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", time.Hour)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.allowed_types", defaultAllowedTypes())

	v.SetDefault("matting.max_dimension", 1024)
	v.SetDefault("matting.downscale_filter", "lanczos3")
	v.SetDefault("matting.upscale_kernel", "catmullrom")
	v.SetDefault("matting.png_compression", "default")
	v.SetDefault("matting.composite_workers", 0)

	v.SetDefault("segmenter.backend", "grabcut")
	v.SetDefault("segmenter.max_concurrent", 3)
	v.SetDefault("segmenter.queue_timeout", 30*time.Second)
	v.SetDefault("segmenter.timeout", time.Duration(0))

	v.SetDefault("grabcut.iterations", 5)
	v.SetDefault("grabcut.border_size", 10)
	v.SetDefault("grabcut.soft_edges", true)
	v.SetDefault("grabcut.face_model", "")

	v.SetDefault("onnx.library_path", "")
	v.SetDefault("onnx.model_path", "")
	v.SetDefault("onnx.input_name", "input.1")
	v.SetDefault("onnx.output_name", "1959")
	v.SetDefault("onnx.input_size", 320)
	v.SetDefault("onnx.intra_threads", 0)

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.file_field", "image")
	v.SetDefault("remote.timeout", 60*time.Second)
}

func defaultAllowedTypes() []string {
	return []string{"image/jpeg", "image/png", "image/gif", "image/bmp", "image/tiff", "image/webp"}
}
