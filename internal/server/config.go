package server

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMemory = "memory"
	StorePG     = "pg"
)

// Config is read once at startup from the environment.
type Config struct {
	HTTPAddr        string
	DatabaseURL     string
	MasterDataStore string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	ArtifactTTL     time.Duration
	MaxUploadBytes  int64
	MaxDecodedBytes int64
	MaxImagePixels  int64
	MaxConcurrent   int
	DefaultCompany  string
	// Companies limits the accepted X-Company-Code values. Empty accepts any.
	Companies     []string
	BaseCurrency  string
	LogLevel      string
	AllowlistPath string
}

func ConfigFromEnv() (Config, error) {
	c := Config{
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		DatabaseURL:     dbDSNFromEnv(),
		MasterDataStore: strings.ToLower(getenvDefault("MASTERDATA_STORE", StoreMemory)),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		DefaultCompany:  strings.TrimSpace(os.Getenv("DEFAULT_COMPANY")),
		Companies:       splitList(os.Getenv("COMPANIES")),
		BaseCurrency:    strings.ToUpper(getenvDefault("BASE_CURRENCY", "USD")),
		LogLevel:        strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		AllowlistPath:   os.Getenv("ALLOWLIST_PATH"),
	}
	if c.MasterDataStore != StoreMemory && c.MasterDataStore != StorePG {
		return Config{}, fmt.Errorf("MASTERDATA_STORE: unknown store %q", c.MasterDataStore)
	}

	var err error
	if c.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if c.MaxConcurrent, err = getenvInt("PDF_MAX_CONCURRENT", 4); err != nil {
		return Config{}, err
	}
	mb, err := getenvInt("PDF_MAX_UPLOAD_MB", 50)
	if err != nil {
		return Config{}, err
	}
	c.MaxUploadBytes = int64(mb) << 20
	if mb, err = getenvInt("PDF_MAX_DECODED_MB", 512); err != nil {
		return Config{}, err
	}
	c.MaxDecodedBytes = int64(mb) << 20
	mp, err := getenvInt("PDF_MAX_IMAGE_MEGAPIXELS", 40)
	if err != nil {
		return Config{}, err
	}
	c.MaxImagePixels = int64(mp) * 1_000_000
	ttl, err := time.ParseDuration(getenvDefault("ARTIFACT_TTL", "1h"))
	if err != nil || ttl <= 0 {
		return Config{}, fmt.Errorf("ARTIFACT_TTL: invalid duration %q", os.Getenv("ARTIFACT_TTL"))
	}
	c.ArtifactTTL = ttl
	return c, nil
}

func dbDSNFromEnv() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getenvDefault("DB_HOST", "127.0.0.1")
	port := getenvDefault("DB_PORT", "5432")
	user := getenvDefault("DB_USER", "app")
	pass := getenvDefault("DB_PASSWORD", "app")
	name := getenvDefault("DB_NAME", "harbor_erp")
	sslmode := getenvDefault("DB_SSLMODE", "disable")

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, pass),
		Host:   host + ":" + port,
		Path:   "/" + name,
	}
	q := u.Query()
	q.Set("sslmode", sslmode)
	u.RawQuery = q.Encode()
	return u.String()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
