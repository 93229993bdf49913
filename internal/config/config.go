package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig 汇总后端服务与 intakectl 客户端所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabaseDriver    string
	DatabasePath      string
	DatabaseDSN       string
	SessionSecret     string
	GinMode           string
	LogLevel          string
	Environment       string
	ProductSeedPath   string
	SuperRootUserName string
	SuperRootPassword string

	// 客户端（planner）侧配置
	Source         string
	APIBaseURL     string
	TokenFile      string
	FixturePath    string
	TelegramToken  string
	TelegramChatID int64
	RefreshCron    string
}

const (
	// SourceBackend 表示通过 REST API 访问真实后端。
	SourceBackend = "backend"
	// SourceFixture 表示使用内置的占位数据。
	SourceFixture = "fixture"
)

// Load 从环境变量（以及可选的 .env 文件）读取配置，并为缺失项提供默认值。
func Load() (AppConfig, error) {
	// .env 不存在时忽略，且不会覆盖已有的环境变量
	_ = godotenv.Load()

	port := env("PORT", "8080")
	listenAddr := env("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	driver := strings.ToLower(env("DATABASE_DRIVER", "sqlite"))
	if driver != "sqlite" && driver != "postgres" {
		return AppConfig{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	source := strings.ToLower(env("INTAKE_SOURCE", SourceBackend))
	if source != SourceBackend && source != SourceFixture {
		return AppConfig{}, fmt.Errorf("unsupported INTAKE_SOURCE %q", source)
	}

	var chatID int64
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		chatID = parsed
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabaseDriver:    driver,
		DatabasePath:      env("DATABASE_PATH", "intakeplan.db"),
		DatabaseDSN:       strings.TrimSpace(os.Getenv("DATABASE_DSN")),
		SessionSecret:     env("SESSION_SECRET", "intakeplan-dev-secret"),
		GinMode:           env("GIN_MODE", "release"),
		LogLevel:          strings.ToLower(env("LOG_LEVEL", "info")),
		Environment:       strings.ToLower(env("ENVIRONMENT", "development")),
		ProductSeedPath:   strings.TrimSpace(os.Getenv("PRODUCT_SEED_PATH")),
		SuperRootUserName: strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword: strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
		Source:            source,
		APIBaseURL:        strings.TrimRight(env("INTAKE_API_URL", "http://localhost:8080/api"), "/"),
		TokenFile:         env("INTAKE_TOKEN_FILE", defaultTokenFile()),
		FixturePath:       strings.TrimSpace(os.Getenv("INTAKE_FIXTURE_PATH")),
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		TelegramChatID:    chatID,
		RefreshCron:       env("REFRESH_CRON", "0 0 * * *"),
	}, nil
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".intakeplan-token"
	}
	return dir + string(os.PathSeparator) + "intakeplan" + string(os.PathSeparator) + "token"
}
