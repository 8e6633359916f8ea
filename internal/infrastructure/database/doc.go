// Package database provides the agent's SQLite connection and schema migrations.
//
// The database holds a single piece of durable state: the last applied switch
// mapping, so a restart comes back with the configuration that was live when
// the process stopped.
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
// Migrations are files named YYYYMMDD_HHMMSS_description.up.sql with an
// optional matching .down.sql. Each one is applied in its own transaction and
// recorded in schema_migrations.
package database
