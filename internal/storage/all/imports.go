// Package all registers every storage backend. Blank-import it from the
// binary to make all kinds selectable through storage.New.
package all

import (
	_ "epietl/internal/storage/mssql"
	_ "epietl/internal/storage/mysql"
	_ "epietl/internal/storage/postgres"
	_ "epietl/internal/storage/sqlite"
)
