// Package store defines interfaces for persisting stage progress history.
// Implementations live in other packages; this package must not import
// database drivers or concrete clients.
package store
