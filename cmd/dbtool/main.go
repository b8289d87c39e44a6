package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/schema"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/infrastructure/persistence"
	"github.com/jacksonlee411/harbor-erp/modules/masterdata/services"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <apply-schema|rls-smoke|import-records> [args]")
	}

	switch os.Args[1] {
	case "apply-schema":
		applySchema(os.Args[2:])
	case "rls-smoke":
		rlsSmoke(os.Args[2:])
	case "import-records":
		importRecords(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

func parseURLFlags(name string, args []string, extra func(fs *flag.FlagSet)) string {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var url string
	fs.StringVar(&url, "url", "", "postgres connection string")
	if extra != nil {
		extra(fs)
	}
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	if url == "" {
		fatalf("missing --url")
	}
	return url
}

func applySchema(args []string) {
	url := parseURLFlags("apply-schema", args, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, persistence.SchemaSQL); err != nil {
		if msg, ok := pgErrorMessage(err); ok {
			fatalf("apply schema: %s", msg)
		}
		fatal(err)
	}
	fmt.Println("[apply-schema] OK")
}

// rlsSmoke checks that masterdata.records fails closed without a company and
// never leaks rows across companies.
func rlsSmoke(args []string) {
	url := parseURLFlags("rls-smoke", args, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	_ = tryEnsureRole(ctx, conn, "app_nobypassrls")

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	_ = trySetRole(ctx, tx, "app_nobypassrls")

	const insert = `
INSERT INTO masterdata.records (id, company_id, entity, code, name, created_at, updated_at)
VALUES (gen_random_uuid(), $1, 'departments', $2, $2, now(), now());`

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_failclosed;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, insert, "SMOKE-A", "RLS-0")
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_failclosed;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected fail-closed error when app.current_company is missing")
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_company', $1, true);`, "SMOKE-A"); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, insert, "SMOKE-A", "RLS-A"); err != nil {
		fatal(err)
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_cross_insert;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, insert, "SMOKE-B", "RLS-B")
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_cross_insert;`); rbErr != nil {
		fatal(rbErr)
	}
	if err == nil {
		fatalf("expected RLS rejection on cross-company insert")
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT sp_duplicate;`); err != nil {
		fatal(err)
	}
	_, err = tx.Exec(ctx, insert, "SMOKE-A", "rls-a")
	if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT sp_duplicate;`); rbErr != nil {
		fatal(rbErr)
	}
	if code := pgErrorCode(err); code != "23505" {
		fatalf("expected unique violation on case-insensitive duplicate code, got %v", err)
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM masterdata.records WHERE code LIKE 'RLS-%';`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 1 {
		fatalf("expected count=1 under company A, got %d", count)
	}

	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_company', $1, true);`, "SMOKE-B"); err != nil {
		fatal(err)
	}
	if err := tx.QueryRow(ctx, `SELECT count(*) FROM masterdata.records WHERE code LIKE 'RLS-%';`).Scan(&count); err != nil {
		fatal(err)
	}
	if count != 0 {
		fatalf("expected count=0 under company B, got %d", count)
	}

	fmt.Println("[rls-smoke] OK")
}

type importRow struct {
	line int
	code string
	name string
}

type importConflict struct {
	line   int
	reason string
	detail string
}

// importRecords loads a code,name CSV into one master-data entity through the
// same validation the API applies.
func importRecords(args []string) {
	var company, entity, file string
	var dryRun bool
	url := parseURLFlags("import-records", args, func(fs *flag.FlagSet) {
		fs.StringVar(&company, "company", "", "company code")
		fs.StringVar(&entity, "entity", "", "master data entity, e.g. departments")
		fs.StringVar(&file, "file", "", "CSV file with code,name columns")
		fs.BoolVar(&dryRun, "dry-run", false, "validate the file without writing")
	})
	if company == "" || entity == "" || file == "" {
		fatalf("missing --company, --entity or --file")
	}

	schemas, err := schema.Default()
	if err != nil {
		fatal(err)
	}
	if _, ok := schemas.Lookup(types.Entity(entity)); !ok {
		fatalf("unknown entity: %s", entity)
	}

	f, err := os.Open(file)
	if err != nil {
		fatal(err)
	}
	defer f.Close()
	rows, conflicts := readRecordCSV(f)
	for _, c := range conflicts {
		_, _ = fmt.Fprintf(os.Stderr, "line %d: %s %s\n", c.line, c.reason, c.detail)
	}
	if len(conflicts) > 0 {
		fatalf("[import-records] %d conflicts", len(conflicts))
	}
	if dryRun {
		fmt.Printf("[import-records] dry run OK rows=%d\n", len(rows))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	defer conn.Close(context.Background())

	facade := services.NewRecordsFacade(persistence.NewRecordPGStore(conn), schemas)
	for _, row := range rows {
		if _, err := facade.Save(ctx, company, types.Entity(entity), services.SaveInput{Code: row.code, Name: row.name}); err != nil {
			fatalf("line %d: %v", row.line, err)
		}
	}
	fmt.Printf("[import-records] OK rows=%d\n", len(rows))
}

func readRecordCSV(r io.Reader) ([]importRow, []importConflict) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var rows []importRow
	var conflicts []importConflict
	seen := map[string]int{}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			conflicts = append(conflicts, importConflict{line: line, reason: "csv_invalid", detail: err.Error()})
			continue
		}
		if line == 1 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if len(rec) < 2 {
			conflicts = append(conflicts, importConflict{line: line, reason: "columns_missing"})
			continue
		}
		code := strings.TrimSpace(rec[0])
		name := strings.TrimSpace(rec[1])
		if code == "" {
			conflicts = append(conflicts, importConflict{line: line, reason: "code_missing"})
			continue
		}
		if name == "" {
			conflicts = append(conflicts, importConflict{line: line, reason: "name_missing", detail: code})
			continue
		}
		key := strings.ToLower(code)
		if first, ok := seen[key]; ok {
			conflicts = append(conflicts, importConflict{line: line, reason: "code_duplicate", detail: fmt.Sprintf("%s (first on line %d)", code, first)})
			continue
		}
		seen[key] = line
		rows = append(rows, importRow{line: line, code: code, name: name})
	}
	return rows, conflicts
}

func pgErrorMessage(err error) (string, bool) {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok {
		return "", false
	}
	return pgErr.Message, true
}

func pgErrorCode(err error) string {
	pgErr, ok := errors.AsType[*pgconn.PgError](err)
	if !ok {
		return ""
	}
	return pgErr.Code
}

func tryEnsureRole(ctx context.Context, conn *pgx.Conn, role string) error {
	if !validSQLIdent(role) {
		return fmt.Errorf("invalid role: %s", role)
	}

	stmt := fmt.Sprintf(`DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_roles WHERE rolname = '%s') THEN
    EXECUTE 'CREATE ROLE %s NOBYPASSRLS';
  END IF;
END
$$;`, role, role)
	if _, err := conn.Exec(ctx, stmt); err != nil {
		return err
	}
	_, _ = conn.Exec(ctx, `GRANT USAGE ON SCHEMA masterdata TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA masterdata TO `+role+`;`)
	_, _ = conn.Exec(ctx, `GRANT EXECUTE ON ALL FUNCTIONS IN SCHEMA masterdata TO `+role+`;`)
	return nil
}

func trySetRole(ctx context.Context, tx pgx.Tx, role string) bool {
	if _, err := tx.Exec(ctx, `SET ROLE `+role+`;`); err != nil {
		return false
	}
	return true
}

var reSQLIdent = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validSQLIdent(s string) bool {
	return reSQLIdent.MatchString(s)
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
