// Package database provides SQLite connectivity for Pulseline's line
// store: the table of bindings and last-written control attributes that
// lets a restarted daemon re-register its lines with their old settings.
//
// The store is a single small table with rare writes, so the connection
// pool is pinned to one connection and WAL mode keeps reads from
// blocking behind a write. All queries use parameterised statements and
// the database file is created owner read/write only.
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Files); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are forward-only and additive: new columns must be
// NULLABLE or carry a DEFAULT, and columns are never dropped or
// renamed. Rollback is restoring the database file.
package database
