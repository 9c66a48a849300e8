package global

import (
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type MongoConfig struct {
	Uri         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	AuthSource  string `mapstructure:"auth_source"`
	MaxPoolSize int    `mapstructure:"max_pool_size"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type AppConfig struct {
	HTTPAddr string `mapstructure:"http_addr"` // HTTP + WebSocket 监听地址
	GrpcAddr string `mapstructure:"grpc_addr"` // 健康检查 gRPC 监听地址
	NodeID   int64  `mapstructure:"node_id"`

	TokenTTLHours int `mapstructure:"token_ttl_hours"` // 默认 168（7天）

	Mongo MongoConfig `mapstructure:"mongo"`
	Redis RedisConfig `mapstructure:"redis"`
}

func defaultConfig() AppConfig {
	return AppConfig{
		HTTPAddr:      ":8087",
		GrpcAddr:      ":50052",
		NodeID:        100,
		TokenTTLHours: 168,
		Mongo: MongoConfig{
			Uri:         "mongodb://localhost:27017",
			Database:    "hrdesk",
			MaxPoolSize: 20,
		},
		Redis: RedisConfig{
			Addr: "127.0.0.1:6379",
		},
	}
}

// LoadConfig 读取 yaml 配置文件；path 为空或文件不存在时用默认值。
// 个别字段允许 env 覆盖（HTTP_ADDR / MONGODB_URI / REDIS_ADDR）。
func LoadConfig(path string) (AppConfig, error) {
	cfg := defaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var doc map[string]any
			if err := yaml.Unmarshal(raw, &doc); err != nil {
				return cfg, err
			}
			if err := mapstructure.Decode(doc, &cfg); err != nil {
				return cfg, err
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("MONGODB_URI"); v != "" {
		cfg.Mongo.Uri = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	return cfg, nil
}

func (c AppConfig) TokenTTL() time.Duration {
	h := c.TokenTTLHours
	if h <= 0 {
		h = 168
	}
	return time.Duration(h) * time.Hour
}
