// Package config, uygulamanın tüm konfigürasyonunu merkezi olarak yönetir.
// Environment variable'lardan okur, .env dosyasını da destekler.
//
// Go'da "struct" bir veri yapısıdır — birden fazla field'ı bir arada tutar.
// Config struct'ı tüm ayarları tek bir yerde toplar, böylece
// her yerde ayrı ayrı os.Getenv() çağırmak yerine tek bir Config nesnesi taşırız.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config, uygulamanın tüm konfigürasyon değerlerini taşır.
// Her alt bölüm ayrı bir struct — Single Responsibility: her struct tek bir concern'ü temsil eder.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Grant    GrantConfig
	Email    EmailConfig
}

// ServerConfig, HTTP server ayarları.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig, SQLite database ayarları.
type DatabaseConfig struct {
	Path string // SQLite dosya yolu (ör: ./data/tahta.db)
}

// RedisConfig, kanal relay'i için Redis ayarları.
//
// Redis opsiyoneldir: Addr boşsa relay devre dışı kalır ve hub tek
// instance modunda çalışır. Birden fazla tahta instance'ı çalıştırılacaksa
// hepsinin aynı Redis'e bağlanması gerekir — kanal event'leri instance'lar
// arası bu yoldan taşınır.
type RedisConfig struct {
	Addr     string // ör: localhost:6379 — boş ise relay kapalı
	Password string
	DB       int
}

// JWTConfig, JWT token ayarları.
type JWTConfig struct {
	Secret             string // Token imzalama anahtarı — GİZLİ TUTULMALI
	AccessTokenExpiry  int    // Dakika cinsinden (varsayılan: 15)
	RefreshTokenExpiry int    // Gün cinsinden (varsayılan: 7)
}

// GrantConfig, kanal yetkilendirme grant'i ayarları.
//
// Grant, Access Gate'in tek bir subscribe denemesi için ürettiği kısa ömürlü
// imzalı token'dır. Access token ile AYNI secret kullanılmaz — grant sızarsa
// etki alanı tek bir kanala abone olmakla sınırlı kalmalıdır.
type GrantConfig struct {
	Secret        string
	ExpirySeconds int // Grant'in geçerlilik süresi (varsayılan: 60)
}

// EmailConfig, Resend ile email gönderim ayarları.
// APIKey boşsa email gönderimi devre dışı kalır (development kolaylığı).
type EmailConfig struct {
	APIKey    string
	FromEmail string // ör: noreply@tahta.app
	AppURL    string // Davet linklerinde kullanılan public URL
}

// Load, environment variable'lardan Config oluşturur.
// .env dosyası varsa önce onu yükler (development kolaylığı için).
//
// Go'da error handling: Go'da exception/try-catch yoktur.
// Fonksiyonlar hata durumunda (value, error) tuple'ı döner.
// Çağıran taraf her zaman error'ı kontrol ETMEK ZORUNDADIR.
func Load() (*Config, error) {
	// .env dosyasını yükle — dosya yoksa hata vermez, sessizce devam eder.
	// Production'da bu dosya olmaz, gerçek env variable'lar kullanılır.
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9090"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	accessExpiry, err := strconv.Atoi(getEnv("JWT_ACCESS_EXPIRY_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_EXPIRY_MINUTES: %w", err)
	}

	refreshExpiry, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRY_DAYS", "7"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRY_DAYS: %w", err)
	}

	grantExpiry, err := strconv.Atoi(getEnv("GRANT_EXPIRY_SECONDS", "60"))
	if err != nil {
		return nil, fmt.Errorf("invalid GRANT_EXPIRY_SECONDS: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	// Grant secret ayrı ve zorunlu — iki secret'ın aynı olması grant'in
	// izolasyonunu bozar (access token kanal grant'i yerine geçebilirdi).
	grantSecret := getEnv("GRANT_SECRET", "")
	if grantSecret == "" {
		return nil, fmt.Errorf("GRANT_SECRET environment variable is required")
	}
	if grantSecret == jwtSecret {
		return nil, fmt.Errorf("GRANT_SECRET must differ from JWT_SECRET")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/tahta.db"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenExpiry:  accessExpiry,
			RefreshTokenExpiry: refreshExpiry,
		},
		Grant: GrantConfig{
			Secret:        grantSecret,
			ExpirySeconds: grantExpiry,
		},
		Email: EmailConfig{
			APIKey:    getEnv("RESEND_API_KEY", ""),
			FromEmail: getEnv("EMAIL_FROM", "noreply@tahta.app"),
			AppURL:    getEnv("APP_URL", "http://localhost:3000"),
		},
	}

	return cfg, nil
}

// Addr, HTTP server'ın dinleyeceği adresi döner (ör: "0.0.0.0:9090").
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv, environment variable'ı okur, yoksa fallback değeri döner.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
