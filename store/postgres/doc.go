// Package postgres implements the store using pgx/v5 with raw SQL.
// Features: JSONB event streams appended by concatenation upsert,
// embedded SQL migrations.
package postgres
