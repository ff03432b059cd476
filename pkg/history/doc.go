// Package history persists evaluated decisions to a local SQLite database
// for audit queries and prunes old records on a schedule.
package history
