package persistence

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jacksonlee411/harbor-erp/modules/masterdata/domain/types"
	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

const testRecordID = "01890a5d-ac96-774b-bcce-b302099a8057"

func storeWith(tx *stubTx) *RecordPGStore {
	return &RecordPGStore{pool: beginnerFunc(func(context.Context) (pgx.Tx, error) { return tx, nil })}
}

func TestRecordPGStore_BeginError(t *testing.T) {
	t.Parallel()

	boom := errors.New("begin failed")
	s := &RecordPGStore{pool: beginnerFunc(func(context.Context) (pgx.Tx, error) { return nil, boom })}
	if _, err := s.Get(context.Background(), "ACME", types.EntityDepartments, testRecordID); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestRecordPGStore_SetsCompanyBeforeQuerying(t *testing.T) {
	t.Parallel()

	tx := &stubTx{row: &stubRow{vals: recordRow(testRecordID, "FIN", `{"costCenter":"C-1"}`)}}
	rec, err := storeWith(tx).Get(context.Background(), "ACME", types.EntityDepartments, testRecordID)
	if err != nil {
		t.Fatal(err)
	}
	if len(tx.execSQLs) == 0 || !strings.Contains(tx.execSQLs[0], "app.current_company") {
		t.Fatalf("exec=%v", tx.execSQLs)
	}
	if tx.execArgs[0][0] != "ACME" {
		t.Fatalf("args=%v", tx.execArgs[0])
	}
	if rec.Entity != types.EntityDepartments || rec.Attributes["costCenter"] != "C-1" || !tx.committed {
		t.Fatalf("rec=%+v committed=%v", rec, tx.committed)
	}
}

func TestRecordPGStore_SetConfigError(t *testing.T) {
	t.Parallel()

	boom := errors.New("exec failed")
	tx := &stubTx{execErr: boom}
	if _, _, err := storeWith(tx).List(context.Background(), "ACME", types.EntityVoyages, types.ListQuery{PageSize: 10}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if !tx.rolledBack {
		t.Fatal("expected rollback")
	}
}

func TestRecordPGStore_GetNotFound(t *testing.T) {
	t.Parallel()

	_, err := storeWith(&stubTx{}).GetByCode(context.Background(), "ACME", types.EntityDepartments, "NOPE")
	if !httperr.IsNotFound(err) {
		t.Fatalf("err=%v", err)
	}
}

func TestRecordPGStore_BadAttributesJSON(t *testing.T) {
	t.Parallel()

	tx := &stubTx{row: &stubRow{vals: recordRow(testRecordID, "FIN", `{bad`)}}
	if _, err := storeWith(tx).Get(context.Background(), "ACME", types.EntityDepartments, testRecordID); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecordPGStore_List(t *testing.T) {
	t.Parallel()

	tx := &stubTx{
		row: &stubRow{vals: []any{12}},
		rows: &stubRows{data: [][]any{
			recordRow(testRecordID, "AST", `{"nature":"asset"}`),
			recordRow("01890a5d-ac96-774b-bcce-b302099a8058", "LIA", `{}`),
		}},
	}
	recs, total, err := storeWith(tx).List(context.Background(), "ACME", types.EntityAccountTypes, types.ListQuery{Search: "a", Page: 2, PageSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 12 || len(recs) != 2 || recs[1].Code != "LIA" {
		t.Fatalf("total=%d recs=%+v", total, recs)
	}
}

func TestRecordPGStore_ListRowsError(t *testing.T) {
	t.Parallel()

	boom := errors.New("rows failed")
	tx := &stubTx{row: &stubRow{vals: []any{1}}, rows: &stubRows{err: boom}}
	if _, _, err := storeWith(tx).List(context.Background(), "ACME", types.EntityAccountTypes, types.ListQuery{PageSize: 2}); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestRecordPGStore_CreateDuplicateCode(t *testing.T) {
	t.Parallel()

	tx := &stubTx{execErr: &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "records_company_entity_code_unique"}, execErrAt: 2}
	_, err := storeWith(tx).Create(context.Background(), types.Record{
		ID: testRecordID, CompanyID: "ACME", Entity: types.EntityDepartments, Code: "FIN", Name: "Finance",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
	if !httperr.IsConflict(err) {
		t.Fatalf("err=%v", err)
	}
	if err.Error() != "Code FIN is already in use." {
		t.Fatalf("msg=%q", err.Error())
	}
}

func TestRecordPGStore_CreateCommits(t *testing.T) {
	t.Parallel()

	tx := &stubTx{}
	rec := types.Record{ID: testRecordID, CompanyID: "ACME", Entity: types.EntityDepartments, Code: "FIN", Name: "Finance"}
	if _, err := storeWith(tx).Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	if !tx.committed || len(tx.execArgs) != 2 {
		t.Fatalf("committed=%v execs=%d", tx.committed, len(tx.execArgs))
	}
	if got := string(tx.execArgs[1][5].([]byte)); got != "{}" {
		t.Fatalf("attributes=%s", got)
	}
}

func TestRecordPGStore_UpdateAndDeleteMissingRow(t *testing.T) {
	t.Parallel()

	rec := types.Record{ID: testRecordID, CompanyID: "ACME", Entity: types.EntityDepartments, Code: "FIN", Name: "Finance"}
	if _, err := storeWith(&stubTx{}).Update(context.Background(), rec); !httperr.IsNotFound(err) {
		t.Fatalf("update err=%v", err)
	}
	if err := storeWith(&stubTx{}).Delete(context.Background(), "ACME", types.EntityDepartments, testRecordID); !httperr.IsNotFound(err) {
		t.Fatalf("delete err=%v", err)
	}

	tx := &stubTx{tag: pgconn.NewCommandTag("DELETE 1")}
	if err := storeWith(tx).Delete(context.Background(), "ACME", types.EntityDepartments, testRecordID); err != nil {
		t.Fatal(err)
	}
	if !tx.committed {
		t.Fatal("expected commit")
	}
}

func TestRecordPGStore_CommitError(t *testing.T) {
	t.Parallel()

	boom := errors.New("commit failed")
	tx := &stubTx{tag: pgconn.NewCommandTag("UPDATE 1"), commitErr: boom}
	rec := types.Record{ID: testRecordID, CompanyID: "ACME", Entity: types.EntityDepartments, Code: "FIN", Name: "Finance"}
	if _, err := storeWith(tx).Update(context.Background(), rec); !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Fatalf("got=%q", got)
	}
}

func TestSchemaSQL_Embedded(t *testing.T) {
	t.Parallel()

	for _, want := range []string{"masterdata.records", "records_company_entity_code_unique", "ROW LEVEL SECURITY"} {
		if !strings.Contains(SchemaSQL, want) {
			t.Fatalf("schema.sql missing %q", want)
		}
	}
}
