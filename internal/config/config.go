// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Log          LogConfig          `mapstructure:"log"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	MinIO        MinIOConfig        `mapstructure:"minio"`
	Gemini       GeminiConfig       `mapstructure:"gemini"`
	ImageGateway ImageGatewayConfig `mapstructure:"image_gateway"`
	Quota        QuotaConfig        `mapstructure:"quota"`
	Dictation    DictationConfig    `mapstructure:"dictation"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// GeminiConfig 存储文本生成服务相关的配置。
type GeminiConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ImageGatewayConfig 存储图片生成网关的配置。
// 网关通过路径中携带的 prompt 触发生成，并直接返回图片字节。
type ImageGatewayConfig struct {
	URLEndpoint    string `mapstructure:"url_endpoint"`
	Folder         string `mapstructure:"folder"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// QuotaConfig 配置每种对话模式消耗的额度。额度仅作遥测用途，不做硬性拦截。
type QuotaConfig struct {
	TextCost  int `mapstructure:"text_cost"`
	ImageCost int `mapstructure:"image_cost"`
}

// DictationConfig 存储语音转写网关的配置（供客户端使用）。
type DictationConfig struct {
	GatewayURL string `mapstructure:"gateway_url"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为缺省配置项填充默认值。
func applyDefaults() {
	if Conf.Quota.TextCost == 0 {
		Conf.Quota.TextCost = 1
	}
	if Conf.Quota.ImageCost == 0 {
		Conf.Quota.ImageCost = 2
	}
	if Conf.Gemini.BaseURL == "" {
		Conf.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if Conf.Gemini.Model == "" {
		Conf.Gemini.Model = "models/gemini-2.5-pro"
	}
}
