// Package id generates identifiers used across the framework: sortable
// ULIDs for request ids and records, UUIDs, and random tokens for session
// ids, CSRF tokens and lock owners.
package id
