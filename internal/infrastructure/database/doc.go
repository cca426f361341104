// Package database provides SQLite connectivity for the gateway's
// history store.
//
// This package manages:
//   - Database connections for file-backed and in-memory stores
//   - Schema migrations embedded into the binary
//   - Connection pooling tuned for SQLite's single-writer model
//
// The history store defaults to an in-memory database
// (mode=memory&cache=shared), which survives exactly as long as the
// process does. Pointing the DSN at a file enables WAL mode so reads
// stay concurrent with the recorder's writes.
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - File-backed database permissions are set to 0600
//
// Usage:
//
//	db, err := database.Open(database.Config{
//	    DSN:         cfg.History.DSN,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql, and live in the migrations package at
// the repository root.
package database
