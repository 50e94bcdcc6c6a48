package config

import (
	"embed"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// SourceType 数据源类型
type SourceType string

const (
	SourceRSS  SourceType = "rss"
	SourceJSON SourceType = "json"
	SourceHTML SourceType = "html"
)

// Source 描述一个内容来源，运行期间只读
type Source struct {
	Name string     `yaml:"name" json:"name"`
	URL  string     `yaml:"url" json:"url"`
	Type SourceType `yaml:"type" json:"type"`
}

// Kind 返回规范化后的类型，未填写时按 rss 处理
func (s Source) Kind() SourceType {
	t := SourceType(strings.ToLower(strings.TrimSpace(string(s.Type))))
	if t == "" {
		return SourceRSS
	}
	return t
}

type HostConfig struct {
	Opening string `yaml:"opening"`
	Closing string `yaml:"closing"`
}

type WeatherConfig struct {
	// ParseFields 为 true 时从 NOAA 载荷中提取真实字段，默认保持固定句子
	ParseFields bool `yaml:"parse_fields"`
}

type FeedConfig struct {
	Path           string `yaml:"path"`
	ScriptPath     string `yaml:"script_path"`
	Title          string `yaml:"title"`
	UIDPrefix      string `yaml:"uid_prefix"`
	RedirectionURL string `yaml:"redirection_url"`
}

type Config struct {
	// 以下来自环境变量
	AppPort       string `yaml:"-"`
	PostgresDSN   string `yaml:"-"`
	RedisAddr     string `yaml:"-"`
	CronSpec      string `yaml:"-"`
	BasicAuthUser string `yaml:"-"`
	BasicAuthPass string `yaml:"-"`

	PollyVoice string `yaml:"-"`
	AWSRegion  string `yaml:"-"`
	S3Bucket   string `yaml:"-"`
	S3Prefix   string `yaml:"-"`
	FFmpegPath string `yaml:"-"`

	// 以下来自 YAML 配置文件
	UseLatestAlias        bool          `yaml:"use_latest_alias"`
	LatestFilename        string        `yaml:"latest_filename"`
	DatedFilenameTemplate string        `yaml:"dated_filename_template"`
	TargetDurationMinutes int           `yaml:"target_duration_minutes"`
	CompressLimit         int           `yaml:"compress_limit"`
	CivicKeywords         []string      `yaml:"civic_keywords"`
	ReciteFetchErrors     bool          `yaml:"recite_fetch_errors"`
	Host                  HostConfig    `yaml:"host"`
	Weather               WeatherConfig `yaml:"weather"`
	Feed                  FeedConfig    `yaml:"feed"`
	Sources               []Source      `yaml:"sources"`
}

const (
	defaultCompressLimit  = 8
	defaultTargetMinutes  = 10
	defaultS3Prefix       = "savannah-briefings"
	defaultLatestFilename = "latest.mp3"
	defaultDatedTemplate  = "{date}.mp3"
)

var defaultCivicKeywords = []string{"city", "wtoc", "wsav", "wjcl"}

// Load 读取 .env、YAML 配置文件与环境变量。
// path 为空时使用 CONFIG_PATH，仍为空则为 config.yaml；文件不存在时退回内置默认配置。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = getEnv("CONFIG_PATH", "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		log.Printf("config: %s not found, using built-in defaults", path)
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.loadEnv()
	cfg.applyDefaults()
	if err := validate(cfg); err != nil {
		return nil, err
	}

	log.Printf("config loaded: sources=%d port=%s cron=%s latest=%v", len(cfg.Sources), cfg.AppPort, cfg.CronSpec, cfg.UseLatestAlias)
	return cfg, nil
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("config: read embedded defaults: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse embedded defaults: %w", err)
	}
	return &cfg, nil
}

func (c *Config) loadEnv() {
	c.AppPort = getEnv("APP_PORT", "9000")
	c.PostgresDSN = getEnv("POSTGRES_DSN", "")
	c.RedisAddr = getEnv("REDIS_ADDR", "localhost:6380")
	c.CronSpec = getEnv("CRON_SPEC", "0 6 * * *")
	c.BasicAuthUser = getEnv("APP_BASIC_USER", "")
	c.BasicAuthPass = getEnv("APP_BASIC_PASS", "")

	c.PollyVoice = getEnv("POLLY_VOICE", "Joanna")
	c.AWSRegion = getEnv("AWS_REGION", "us-east-2")
	c.S3Bucket = getEnv("S3_BUCKET", "")
	c.S3Prefix = strings.Trim(getEnv("S3_PREFIX", defaultS3Prefix), "/")
	c.FFmpegPath = getEnv("FFMPEG_PATH", "ffmpeg")
}

func (c *Config) applyDefaults() {
	if c.CompressLimit <= 0 {
		c.CompressLimit = defaultCompressLimit
	}
	if c.TargetDurationMinutes <= 0 {
		c.TargetDurationMinutes = defaultTargetMinutes
	}
	if c.LatestFilename == "" {
		c.LatestFilename = defaultLatestFilename
	}
	if c.DatedFilenameTemplate == "" {
		c.DatedFilenameTemplate = defaultDatedTemplate
	}
	if len(c.CivicKeywords) == 0 {
		c.CivicKeywords = append([]string(nil), defaultCivicKeywords...)
	}
	if c.S3Prefix == "" {
		c.S3Prefix = defaultS3Prefix
	}
	if c.Feed.Path == "" {
		c.Feed.Path = "savannah-daily-briefing-feed.json"
	}
	if c.Feed.ScriptPath == "" {
		c.Feed.ScriptPath = "latest-script.txt"
	}
	if c.Feed.Title == "" {
		c.Feed.Title = "Savannah Daily Briefing"
	}
	if c.Feed.UIDPrefix == "" {
		c.Feed.UIDPrefix = "savannah"
	}
}

// TargetDuration 目标时长
func (c *Config) TargetDuration() time.Duration {
	return time.Duration(c.TargetDurationMinutes) * time.Minute
}

func validate(cfg *Config) error {
	if len(cfg.Sources) == 0 {
		return fmt.Errorf("config: no sources configured")
	}
	for i, s := range cfg.Sources {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("config: source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("config: source %q: url is required", s.Name)
		}
		u, err := url.Parse(s.URL)
		if err != nil {
			return fmt.Errorf("config: source %q: invalid url: %w", s.Name, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("config: source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
		}
		switch s.Kind() {
		case SourceRSS, SourceJSON, SourceHTML:
		default:
			return fmt.Errorf("config: source %q: unknown type %q (valid: rss, json, html)", s.Name, s.Type)
		}
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
