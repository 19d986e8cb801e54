// Package repository turns table names that are only known at request time
// into safe statements. Names are checked against the store's schema catalog
// (Resolver), remembered for the life of the process (Cache), quoted, and
// combined with driver-bound values (Builder). TableRepository executes the
// result and materializes rows as types.Row.
package repository
