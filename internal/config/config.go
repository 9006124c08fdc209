package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	VNPay    VNPayConfig    `mapstructure:"vnpay"`
	Premium  PremiumConfig  `mapstructure:"premium"`
	Progress ProgressConfig `mapstructure:"progress"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Per-IP limit applied to the unauthenticated payment callback routes.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// VNPayConfig holds the merchant terminal credentials for the payment gateway.
type VNPayConfig struct {
	TmnCode    string        `mapstructure:"tmn_code"`
	HashSecret string        `mapstructure:"hash_secret"`
	PayURL     string        `mapstructure:"pay_url"`
	ReturnURL  string        `mapstructure:"return_url"`
	Locale     string        `mapstructure:"locale"`
	OrderTTL   time.Duration `mapstructure:"order_ttl"`
}

type PremiumConfig struct {
	PricePerMonth int64  `mapstructure:"price_per_month"` // VND
	MaxMonths     int    `mapstructure:"max_months"`
	SweepEnabled  bool   `mapstructure:"sweep_enabled"`
	SweepSchedule string `mapstructure:"sweep_schedule"` // cron spec
	AssignTrainer bool   `mapstructure:"assign_trainer"`
}

type ProgressConfig struct {
	// IANA zone in which "one workout per calendar day" is evaluated.
	Timezone string `mapstructure:"timezone"`
}

// Location resolves the configured gating time zone.
func (p ProgressConfig) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(p.Timezone)
}

type ScheduleConfig struct {
	WorkStart string `mapstructure:"work_start"` // HH:MM
	WorkEnd   string `mapstructure:"work_end"`   // HH:MM
	// Reject a booking when the student already has one on the same date.
	OneBookingPerStudentDay bool `mapstructure:"one_booking_per_student_day"`
}

// LoadConfig reads configuration from file or environment variables.
// A .env file in the working directory, if present, is loaded first.
func LoadConfig(path string) (config Config, err error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, vnpay.hash_secret -> VNPAY_HASH_SECRET
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		err = nil // env vars and defaults are enough
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}
	return config, config.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")
	v.SetDefault("server.rate_limit_rps", 5)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "fitness_coach")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("vnpay.tmn_code", "")
	v.SetDefault("vnpay.hash_secret", "")
	v.SetDefault("vnpay.pay_url", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html")
	v.SetDefault("vnpay.return_url", "http://localhost:8080/api/v1/payment/vnpay-return")
	v.SetDefault("vnpay.locale", "vn")
	v.SetDefault("vnpay.order_ttl", "15m")
	v.SetDefault("premium.price_per_month", 99000)
	v.SetDefault("premium.max_months", 12)
	v.SetDefault("premium.sweep_enabled", true)
	v.SetDefault("premium.sweep_schedule", "@hourly")
	v.SetDefault("premium.assign_trainer", true)
	v.SetDefault("progress.timezone", "UTC")
	v.SetDefault("schedule.work_start", "09:00")
	v.SetDefault("schedule.work_end", "17:00")
	v.SetDefault("schedule.one_booking_per_student_day", true)
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.VNPay.HashSecret == "" {
		errs = append(errs, errors.New("vnpay.hash_secret is required"))
	}
	if _, err := c.Progress.Location(); err != nil {
		errs = append(errs, fmt.Errorf("progress.timezone: %w", err))
	}
	if c.Premium.PricePerMonth <= 0 {
		errs = append(errs, errors.New("premium.price_per_month must be positive"))
	}
	if c.Premium.MaxMonths <= 0 {
		errs = append(errs, errors.New("premium.max_months must be positive"))
	}
	start, errStart := time.Parse("15:04", c.Schedule.WorkStart)
	end, errEnd := time.Parse("15:04", c.Schedule.WorkEnd)
	if errStart != nil || errEnd != nil || !start.Before(end) {
		errs = append(errs, fmt.Errorf("schedule: invalid working hours %q-%q", c.Schedule.WorkStart, c.Schedule.WorkEnd))
	}
	return errors.Join(errs...)
}
