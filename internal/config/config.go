package config

import (
	"os"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
	OAuth    OAuthConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	FrontendURL    string
	AllowedOrigins []string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       string
	TLS      string
}

// AuthConfig - 토큰/쿠키 관련 설정 (문자열 그대로 두고 서비스 생성 시 파싱)
type AuthConfig struct {
	AccessSecret      string
	RefreshSecret     string
	AccessExpiration  string
	RefreshExpiration string
	BcryptCost        string
	StoreTimeout      string
	CookieSecure      string
	CookieSameSite    string
	CookieDomain      string
	CookiePath        string
}

type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// 비어 있는 ClientID 는 해당 provider 비활성화를 의미
func (c OAuthProviderConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

type OAuthConfig struct {
	Google OAuthProviderConfig
	GitHub OAuthProviderConfig
	Kakao  OAuthProviderConfig
}

type AdminConfig struct {
	Email    string
	Password string
	Name     string
}

func Load() Config {
	return Config{
		Server: ServerConfig{
			Port:           getenv("PORT", "4000"),
			Env:            getenv("APP_ENV", "development"),
			LogLevel:       getenv("LOG_LEVEL", "info"),
			FrontendURL:    getenv("FRONTEND_URL", "http://localhost:3000"),
			AllowedOrigins: splitList(getenv("CORS_ALLOWED_ORIGINS", getenv("FRONTEND_URL", "http://localhost:3000"))),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     redisAddr(),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getenv("REDIS_DB", "0"),
			TLS:      os.Getenv("REDIS_TLS"),
		},
		Auth: AuthConfig{
			AccessSecret:      os.Getenv("JWT_ACCESS_SECRET"),
			RefreshSecret:     os.Getenv("JWT_REFRESH_SECRET"),
			AccessExpiration:  getenv("JWT_ACCESS_EXPIRATION", "15m"),
			RefreshExpiration: getenv("JWT_REFRESH_EXPIRATION", "7d"),
			BcryptCost:        getenv("BCRYPT_COST", "10"),
			StoreTimeout:      getenv("AUTH_STORE_TIMEOUT", "3s"),
			CookieSecure:      os.Getenv("AUTH_COOKIE_SECURE"),
			CookieSameSite:    getenv("AUTH_COOKIE_SAMESITE", "lax"),
			CookieDomain:      os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:        getenv("AUTH_COOKIE_PATH", "/"),
		},
		OAuth: OAuthConfig{
			Google: providerConfig("GOOGLE"),
			GitHub: providerConfig("GITHUB"),
			Kakao:  providerConfig("KAKAO"),
		},
		Admin: AdminConfig{
			Email:    os.Getenv("ADMIN_EMAIL"),
			Password: os.Getenv("ADMIN_PASSWORD"),
			Name:     getenv("ADMIN_NAME", "Admin User"),
		},
	}
}

// 운영 환경 여부 (쿠키 Secure 기본값 결정에 사용)
func (c ServerConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

func providerConfig(prefix string) OAuthProviderConfig {
	return OAuthProviderConfig{
		ClientID:     os.Getenv(prefix + "_CLIENT_ID"),
		ClientSecret: os.Getenv(prefix + "_CLIENT_SECRET"),
		CallbackURL:  os.Getenv(prefix + "_CALLBACK_URL"),
	}
}

// REDIS_HOST/REDIS_PORT 가 모두 있으면 REDIS_ADDR 보다 우선
func redisAddr() string {
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		return host + ":" + port
	}
	return getenv("REDIS_ADDR", "localhost:6379")
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
