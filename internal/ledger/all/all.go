// Package all enables every built-in ledger backend. Import it for side
// effects from the binary's wiring layer:
//
//	import _ "gcload/internal/ledger/all"
package all

import (
	_ "gcload/internal/ledger/mssql"
	_ "gcload/internal/ledger/mysql"
	_ "gcload/internal/ledger/postgres"
	_ "gcload/internal/ledger/sqlite"
)
