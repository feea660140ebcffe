package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type WorkerConfig struct {
	Bin      string `mapstructure:"bin"`
	Count    int    `mapstructure:"count"`
	LogLevel string `mapstructure:"log_level"`
}

type RtcConfig struct {
	ListenIP    string `mapstructure:"listen_ip"`
	AnnouncedIP string `mapstructure:"announced_ip"`
	MinPort     int    `mapstructure:"min_port"`
	MaxPort     int    `mapstructure:"max_port"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Worker     WorkerConfig  `mapstructure:"worker"`
	Rtc        RtcConfig     `mapstructure:"rtc"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "20s")
	v.SetDefault("worker.bin", "media-worker")
	v.SetDefault("worker.count", 2)
	v.SetDefault("worker.log_level", "warn")
	v.SetDefault("rtc.listen_ip", "0.0.0.0")
	v.SetDefault("rtc.min_port", 40000)
	v.SetDefault("rtc.max_port", 49999)

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Workers: %d\n", cfg.Mode, cfg.Port, cfg.Worker.Count)
	return &cfg, nil
}
