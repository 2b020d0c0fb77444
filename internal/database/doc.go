// Package database provides connection pool management for PostgreSQL.
//
// The only consumer is the state journal, which appends observed connection
// states to the connection_events table.
package database
