package config

import (
	"github.com/blues/mes/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// KafkaConfig 通知发布配置
type KafkaConfig struct {
	Brokers  []string `mapstructure:"brokers"`   // broker 地址列表
	Topic    string   `mapstructure:"topic"`     // 通知主题
	PoolSize int      `mapstructure:"pool_size"` // 异步投递协程池大小
}

// GatewayConfig 下游协作方配置
type GatewayConfig struct {
	PaymentURL     string `mapstructure:"payment_url"`     // 支付处理方地址
	OrderURL       string `mapstructure:"order_url"`       // 订单服务地址
	PayoutURL      string `mapstructure:"payout_url"`      // 分账引擎地址
	ReputationURL  string `mapstructure:"reputation_url"`  // 评价服务地址
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 调用超时（秒）
}

type TaskConfig struct {
	Interval  int `mapstructure:"interval"`   // 自动放款扫描间隔（秒）
	BatchSize int `mapstructure:"batch_size"` // 每轮扫描的最大候选数
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/mes")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "escrow")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})
	viper.SetDefault("kafka.topic", "escrow.notifications")
	viper.SetDefault("kafka.pool_size", 8)
	viper.SetDefault("gateway.timeout_seconds", 5)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.batch_size", 100)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
