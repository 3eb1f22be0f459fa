// Package database opens PostgreSQL connection pools.
//
// The sync client only needs a database when session state is persisted
// to a shared PostgreSQL instance; the default SQLite backend opens its
// own file and does not go through this package.
package database
