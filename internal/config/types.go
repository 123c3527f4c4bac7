package config

import (
	"fmt"
	"time"
)

// Duration fields hold plain seconds in the JSON file and are multiplied
// by time.Second at the call site.
type Config struct {
	Server   ServerConfig    `json:"server"`
	Upload   UploadConfig    `json:"upload"`
	Queue    QueueConfig     `json:"queue"`
	Scraper  ScraperConfig   `json:"scraper"`
	IOPaint  IOPaintConfig   `json:"iopaint"`
	Pipeline PipelineConfig  `json:"pipeline"`
	RunPod   RunPodConfig    `json:"runpod"`
	Redis    RedisConfig     `json:"redis"`
	Session  SessionConfig   `json:"session"`
	S3       S3Config        `json:"s3"`
	Gemini   GeminiConfig    `json:"gemini"`
	Sentry   SentryConfig    `json:"sentry"`
}

type ServerConfig struct {
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type UploadConfig struct {
	MaxRequestBodyMB     int64 `json:"max_request_body"`
	MaxMultipartMemoryMB int64 `json:"max_multipart_memory"`
}

type QueueConfig struct {
	Capacity int `json:"capacity"` // pending request backlog cap
}

type ScraperConfig struct {
	UserAgent      string        `json:"user_agent"`
	RequestTimeout time.Duration `json:"request_timeout"`
	CountryID      int           `json:"country_id"` // destination-country query param for port prices
}

type IOPaintConfig struct {
	URL             string        `json:"url"`
	InpaintTimeout  time.Duration `json:"inpaint_timeout"`
	UpscaleTimeout  time.Duration `json:"upscale_timeout"`
	HealthTimeout   time.Duration `json:"health_timeout"`
	WatermarkWidth  int           `json:"watermark_width"`
	WatermarkHeight int           `json:"watermark_height"`
	MinWidth        int           `json:"min_width"`  // below MinWidth*MinHeight pixels images get upscaled
	MinHeight       int           `json:"min_height"`
	UpscaleFactor   int           `json:"upscale_factor"`
}

type PipelineConfig struct {
	PhotoLimit      int           `json:"photo_limit"` // hard ceiling per batch
	DownloadTimeout time.Duration `json:"download_timeout"`
	PreviewCount    int           `json:"preview_count"`
}

type RunPodConfig struct {
	Enabled      bool          `json:"enabled"`
	BaseURL      string        `json:"base_url"` // https://api.runpod.ai/v2/{endpoint_id}
	APIKey       string        `json:"api_key"`
	Sync         bool          `json:"sync"` // runsync instead of run+poll
	PollInterval time.Duration `json:"poll_interval"`
	MaxWait      time.Duration `json:"max_wait"`
	PhotoLimit   int           `json:"photo_limit"` // payload cap, stricter than the batch cap
}

type RedisConfig struct {
	Password            string        `json:"password"`
	DatabaseID          int           `json:"database_id"`
	HealthCheckInterval time.Duration `json:"health_check_interval"`
	DialTimeout         time.Duration `json:"dial_timeout"`
	ReadTimeout         time.Duration `json:"read_timeout"`
	WriteTimeout        time.Duration `json:"write_timeout"`
	PoolSize            int           `json:"pool_size"`
	Nodes               []RedisNode   `json:"nodes"`
}

type RedisNode struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (n RedisNode) Addr() string { return fmt.Sprintf("%s:%d", n.Host, n.Port) }

type SessionConfig struct {
	TTL   time.Duration `json:"ttl"`   // how long finished results stay fetchable
	Sweep time.Duration `json:"sweep"` // in-memory state sweep interval
}

type S3Config struct {
	Enabled     bool   `json:"enabled"`
	AccountID   string `json:"account_id"`
	BucketName  string `json:"bucket_name"`
	AccessKeyID string `json:"access_key_id"`
	SecretKey   string `json:"secret_key"`
	Prefix      string `json:"prefix"`
}

type GeminiConfig struct {
	APIKey string `json:"api_key"`
	Model  string `json:"model"`
}

type SentryConfig struct {
	SentryDSN   string `json:"sentry_dsn"`
	Environment string `json:"environment"`
}
