// Package sqlite implements store.Store on database/sql with the
// mattn/go-sqlite3 driver. Suitable for embedded deployments, CLI tools,
// and single-host applications.
//
// SQLite has no FOR UPDATE SKIP LOCKED, so the claim is an optimistic
// compare-and-swap loop: read the oldest ready id, then conditionally
// mark it in-progress WHERE the status is still ready. A zero-row update
// means another claimer won the race; the loop backs off and retries, up
// to a configurable bound.
//
//	s, err := sqlite.Open("queue.db")
//	if err != nil { ... }
//	defer s.Close()
//	if err := s.Migrate(ctx); err != nil { ... }
package sqlite
