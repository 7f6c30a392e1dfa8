// Package all registers every writer backend. Import for side effects from
// binaries that should be able to write anywhere:
//
//	import _ "ordersetl/internal/sink/all"
package all

import (
	_ "ordersetl/internal/sink/csvsink"
	_ "ordersetl/internal/sink/mssql"
	_ "ordersetl/internal/sink/postgres"
	_ "ordersetl/internal/sink/sqlite"
)
