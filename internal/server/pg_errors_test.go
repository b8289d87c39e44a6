package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestPgErrorCode(t *testing.T) {
	if got := pgErrorCode(&pgconn.PgError{Code: " 28P01 "}); got != "28P01" {
		t.Fatalf("code=%q", got)
	}
	if got := pgErrorCode(fmt.Errorf("ping: %w", &pgconn.PgError{Code: "57P03"})); got != "57P03" {
		t.Fatalf("wrapped code=%q", got)
	}
	if got := pgErrorCode(errors.New("boom")); got != "" {
		t.Fatalf("non-pg code=%q", got)
	}
}
