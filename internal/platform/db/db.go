package db

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	driverName     = "mysql"
	ConfigFilePath = "config/config.yaml"

	ModeDev     = "dev"
	ModeRelease = "release"

	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

type Certs struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type RedisConfig struct {
	Addr             string `yaml:"addr"` // 空ならキャッシュ無効
	Password         string `yaml:"password"`
	DB               int    `yaml:"db"`
	RegionTTLSeconds int    `yaml:"region_ttl_seconds"`
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenTTLHours int    `yaml:"token_ttl_hours"`
}

type AttendanceConfig struct {
	Timezone string `yaml:"timezone"` // work_date の区切りに使う
	Store    string `yaml:"store"`    // mysql|memory
}

type Config struct {
	Version     string           `yaml:"version"`
	Mode        string           `yaml:"mode"`
	Server      ServerConfig     `yaml:"server"`
	DB          DatabaseConfig   `yaml:"database"`
	Certificate Certs            `yaml:"certificate"`
	Log         LogConfig        `yaml:"log"`
	Redis       RedisConfig      `yaml:"redis"`
	Auth        AuthConfig       `yaml:"auth"`
	Attendance  AttendanceConfig `yaml:"attendance"`
}

// 秘密情報は環境変数（.env 可）で上書きできる
const (
	EnvDBHost        = "WORKFORCE_DB_HOST"
	EnvDBUser        = "WORKFORCE_DB_USER"
	EnvDBPassword    = "WORKFORCE_DB_PASSWORD"
	EnvJWTSecret     = "WORKFORCE_JWT_SECRET"
	EnvRedisAddr     = "WORKFORCE_REDIS_ADDR"
	EnvRedisPassword = "WORKFORCE_REDIS_PASSWORD"
)

func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込み失敗: %w", err)
	}
	return parseConfig(buf, os.Getenv)
}

// ParseConfig は環境変数を見ない
func ParseConfig(buf []byte) (*Config, error) {
	return parseConfig(buf, nil)
}

func parseConfig(buf []byte, getenv func(string) string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのパース失敗: %w", err)
	}
	if getenv != nil {
		cfg.applyEnv(getenv)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	override := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.DB.Host, EnvDBHost)
	override(&c.DB.Username, EnvDBUser)
	override(&c.DB.Password, EnvDBPassword)
	override(&c.Auth.JWTSecret, EnvJWTSecret)
	override(&c.Redis.Addr, EnvRedisAddr)
	override(&c.Redis.Password, EnvRedisPassword)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDev
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8443"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		if c.Mode == ModeRelease {
			c.Log.Format = "json"
		} else {
			c.Log.Format = "console"
		}
	}
	if c.Redis.RegionTTLSeconds <= 0 {
		c.Redis.RegionTTLSeconds = 60
	}
	if c.Auth.TokenTTLHours <= 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Attendance.Timezone == "" {
		c.Attendance.Timezone = "UTC"
	}
	if c.Attendance.Store == "" {
		c.Attendance.Store = StoreMySQL
	}
}

func (c *Config) validate() error {
	if c.Mode != ModeDev && c.Mode != ModeRelease {
		return fmt.Errorf("mode must be %q or %q: got %q", ModeDev, ModeRelease, c.Mode)
	}
	if c.Attendance.Store != StoreMySQL && c.Attendance.Store != StoreMemory {
		return fmt.Errorf("attendance.store must be %q or %q: got %q", StoreMySQL, StoreMemory, c.Attendance.Store)
	}
	if _, err := time.LoadLocation(c.Attendance.Timezone); err != nil {
		return fmt.Errorf("attendance.timezone が不正: %w", err)
	}
	if c.Mode == ModeRelease && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required in release mode")
	}
	return nil
}

// Location は attendance.timezone を解決する（validate 済み前提）
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Attendance.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) RegionTTL() time.Duration {
	return time.Duration(c.Redis.RegionTTLSeconds) * time.Second
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLHours) * time.Hour
}

func Connect(c DatabaseConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&tls=false&timeout=3s&readTimeout=5s&writeTimeout=5s&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("接続準備に失敗: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("DB接続に失敗: %w", err)
	}

	// 接続プール（合算がMySQLの max_connections を超えないよう配分する）
	db.SetMaxOpenConns(80)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}
