// Package database provides the SQLite persistence layer for Amber Hub.
//
// The hub stores automations, devices, and restored entity states in a
// single SQLite file opened in WAL mode. SQLite was chosen over a client/
// server database because the hub is a single-node appliance: one process
// owns the data, backups are a file copy, and there is no operational
// overhead on small ARM boards.
//
// # Connection Management
//
// The pool is deliberately restricted to a single connection
// (SetMaxOpenConns(1)). SQLite serialises writers anyway, and a single
// connection avoids SQLITE_BUSY churn under concurrent repository access.
// All queries accept a context for timeout and cancellation.
//
// # Migrations
//
// Schema changes ship as embedded SQL files registered by the migrations
// package at init time. Filenames follow:
//
//	YYYYMMDD_HHMMSS_description.up.sql
//	YYYYMMDD_HHMMSS_description.down.sql
//
// Migrate applies pending migrations in version order, each within its
// own transaction, recording progress in schema_migrations. A failed
// migration rolls back alone and leaves earlier migrations committed, so
// Migrate can be re-run safely after a fix.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
