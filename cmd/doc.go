// Package cmd implements the command-line interface of the gorient
// client. It provides a hierarchical command structure for database
// administration and for working with records and queries.
//
// The package is organized into several subpackages:
//
//   - db: Commands for database administration (create, drop, list, etc.)
//   - record: Commands for single-record operations (load, create, delete) and benchmarking
//   - query: Commands for running SQL queries, commands and scripts
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See gorient -help for a list of all commands.
package cmd
