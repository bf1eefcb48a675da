// ABOUTME: Package store persists audit records and builtin capability rows in
// ABOUTME: SQLite. It is the default audit sink and the builtin executor's backend.
package store
