package server

import (
	"net/url"
	"testing"
	"time"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "DATABASE_URL", "MASTERDATA_STORE", "REDIS_ADDR", "REDIS_DB", "ARTIFACT_TTL", "PDF_MAX_UPLOAD_MB", "PDF_MAX_DECODED_MB", "PDF_MAX_IMAGE_MEGAPIXELS", "PDF_MAX_CONCURRENT", "DEFAULT_COMPANY", "COMPANIES", "BASE_CURRENCY", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	c, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.HTTPAddr != ":8080" || c.MasterDataStore != StoreMemory || c.BaseCurrency != "USD" || c.LogLevel != "info" {
		t.Fatalf("config=%+v", c)
	}
	if c.ArtifactTTL != time.Hour || c.MaxUploadBytes != 50<<20 || c.MaxConcurrent != 4 {
		t.Fatalf("config=%+v", c)
	}
	if c.MaxDecodedBytes != 512<<20 || c.MaxImagePixels != 40_000_000 {
		t.Fatalf("config=%+v", c)
	}
	if len(c.Companies) != 0 {
		t.Fatalf("companies=%v", c.Companies)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("MASTERDATA_STORE", "PG")
	t.Setenv("ARTIFACT_TTL", "15m")
	t.Setenv("PDF_MAX_UPLOAD_MB", "5")
	t.Setenv("PDF_MAX_CONCURRENT", "1")
	t.Setenv("PDF_MAX_DECODED_MB", "64")
	t.Setenv("PDF_MAX_IMAGE_MEGAPIXELS", "8")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("COMPANIES", " ACME, ,GLOBEX ")
	t.Setenv("BASE_CURRENCY", "sgd")

	c, err := ConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.MasterDataStore != StorePG || c.ArtifactTTL != 15*time.Minute || c.MaxUploadBytes != 5<<20 || c.MaxConcurrent != 1 || c.RedisDB != 3 {
		t.Fatalf("config=%+v", c)
	}
	if c.MaxDecodedBytes != 64<<20 || c.MaxImagePixels != 8_000_000 {
		t.Fatalf("config=%+v", c)
	}
	if len(c.Companies) != 2 || c.Companies[1] != "GLOBEX" || c.BaseCurrency != "SGD" {
		t.Fatalf("config=%+v", c)
	}
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"MASTERDATA_STORE":   "sqlite",
		"ARTIFACT_TTL":       "soon",
		"PDF_MAX_UPLOAD_MB":  "-1",
		"PDF_MAX_CONCURRENT": "many",
		"PDF_MAX_DECODED_MB": "lots",
	}
	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv(k, v)
			if _, err := ConfigFromEnv(); err == nil {
				t.Fatalf("%s=%q: expected error", k, v)
			}
		})
	}
}

func TestDBDSNFromEnv_DatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://u:p@h:5432/db?sslmode=disable")

	if got := dbDSNFromEnv(); got != "postgres://u:p@h:5432/db?sslmode=disable" {
		t.Fatalf("got=%q", got)
	}
}

func TestDBDSNFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE"} {
		t.Setenv(k, "")
	}

	u, err := url.Parse(dbDSNFromEnv())
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "postgres" || u.Host != "127.0.0.1:5432" || u.Path != "/harbor_erp" {
		t.Fatalf("dsn=%s", u)
	}
	if u.Query().Get("sslmode") != "disable" {
		t.Fatal("expected sslmode")
	}
}

func TestGetenvDefault(t *testing.T) {
	t.Setenv("X_TEST_ENV", "v")

	if got := getenvDefault("X_TEST_ENV", "d"); got != "v" {
		t.Fatalf("got=%q", got)
	}
	if got := getenvDefault("X_NO_SUCH_ENV", "d"); got != "d" {
		t.Fatalf("got=%q", got)
	}
}
