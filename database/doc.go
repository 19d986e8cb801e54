// Package database provides store connection management on top of Bun,
// schema catalog introspection, a statement runner that logs failing and slow
// statements, SQL seed-file execution, error classification and logging.
package database
