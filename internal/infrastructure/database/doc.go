// Package database provides SQLite connectivity for the sensor daemon.
//
// It is only opened when database.enabled is set; the one consumer is the
// RPC audit trail.
//
// This package manages:
//   - Connection with WAL mode and a busy timeout
//   - Forward-only schema migrations read from an fs.FS
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql. There are
// no down migrations; the audit table only ever grows.
package database
