// Package mssql registers the SQL Server ledger backend for "sqlserver://"
// DSNs, which go-mssqldb accepts as is.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"gcload/internal/ledger"
)

// Dialect is the SQL Server flavour of the ledger table.
var Dialect = ledger.Dialect{
	Name: "sqlserver",
	CreateTable: `IF OBJECT_ID(N'dbo.` + ledger.Table + `', N'U') IS NULL
CREATE TABLE dbo.` + ledger.Table + ` (
	id          BIGINT IDENTITY(1,1) PRIMARY KEY,
	run_id      NVARCHAR(64)  NOT NULL,
	operation   NVARCHAR(64)  NOT NULL,
	template    NVARCHAR(255) NOT NULL DEFAULT '',
	chunk       INT           NOT NULL,
	first_index INT           NOT NULL,
	points      INT           NOT NULL,
	status      NVARCHAR(16)  NOT NULL,
	http_status INT           NOT NULL,
	error_text  NVARCHAR(MAX) NOT NULL DEFAULT '',
	duration_ms BIGINT        NOT NULL,
	recorded_at DATETIME2     NOT NULL
)`,
	Placeholder: func(n int) string { return "@p" + strconv.Itoa(n) },
}

func init() {
	ledger.Register("sqlserver", func(ctx context.Context, dsn string) (ledger.Ledger, error) {
		return Open(ctx, dsn)
	})
}

// Open validates dsn, connects and creates the ledger table if needed.
func Open(ctx context.Context, dsn string) (*ledger.SQL, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	l, err := ledger.NewSQL(ctx, db, Dialect)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}
