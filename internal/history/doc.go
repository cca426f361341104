// Package history persists thing activity to the gateway's SQLite
// history store.
//
// The Recorder subscribes to every managed thing and writes three
// streams as notifications arrive:
//   - property updates (one row per accepted change)
//   - action lifecycle transitions (one row per status change)
//   - event occurrences (one row per emitted event)
//
// Persistence is best-effort and asynchronous. A full queue or a
// failed insert is logged and dropped; the thing layer never waits on
// the database.
//
// Usage:
//
//	repo := history.NewSQLiteRepository(db.DB)
//	rec := history.NewRecorder(repo, container, cfg.History.GetRetention())
//	rec.SetLogger(logger)
//	rec.Start()
//	defer rec.Stop()
//
// Retrieval is scoped per thing and ordered newest first, backing the
// REST history resource.
package history
