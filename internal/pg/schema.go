package pg

// Схема фиксированная: пять таблиц EAV-модели плюс views.
// DDL идемпотентный (create ... if not exists) и намеренно держится в
// переносимом диалекте: та же схема накатывается на Postgres в проде и на
// in-memory SQLite в тестах.
//
// Плоские проекции value_text/value_number в cells — то, по чему бьют
// сортировки и range-фильтры; индексы (column_id, value_*) под них.

func Schema() map[string]string {
	return map[string]string{
		"01_bases": `
CREATE TABLE IF NOT EXISTS bases (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    owner_id   TEXT,
    created_at TIMESTAMP NOT NULL,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE
)`,
		"02_tables": `
CREATE TABLE IF NOT EXISTS tables (
    id         TEXT PRIMARY KEY,
    base_id    TEXT NOT NULL,
    name       TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE
)`,
		"03_columns": `
CREATE TABLE IF NOT EXISTS columns (
    id         TEXT PRIMARY KEY,
    table_id   TEXT NOT NULL,
    name       TEXT NOT NULL,
    col_type   TEXT NOT NULL,
    ord        INTEGER NOT NULL DEFAULT 0,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE
)`,
		"04_rows": `
CREATE TABLE IF NOT EXISTS rows (
    id         TEXT PRIMARY KEY,
    table_id   TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE
)`,
		"05_cells": `
CREATE TABLE IF NOT EXISTS cells (
    row_id       TEXT NOT NULL,
    column_id    TEXT NOT NULL,
    value        TEXT NOT NULL DEFAULT '',
    value_text   TEXT,
    value_number DOUBLE PRECISION,
    PRIMARY KEY (row_id, column_id)
)`,
		"06_views": `
CREATE TABLE IF NOT EXISTS views (
    id             TEXT PRIMARY KEY,
    table_id       TEXT NOT NULL,
    name           TEXT NOT NULL,
    view_type      TEXT NOT NULL DEFAULT 'grid',
    column_order   TEXT NOT NULL DEFAULT '[]',
    hidden_columns TEXT NOT NULL DEFAULT '[]',
    filters        TEXT NOT NULL DEFAULT '[]',
    sorts          TEXT NOT NULL DEFAULT '[]'
)`,
		"07_idx_columns_table": `
CREATE INDEX IF NOT EXISTS idx_columns_table ON columns (table_id, is_deleted, ord)`,
		"08_idx_rows_table": `
CREATE INDEX IF NOT EXISTS idx_rows_table ON rows (table_id, is_deleted, id)`,
		"09_idx_cells_text": `
CREATE INDEX IF NOT EXISTS idx_cells_text ON cells (column_id, value_text)`,
		"10_idx_cells_number": `
CREATE INDEX IF NOT EXISTS idx_cells_number ON cells (column_id, value_number)`,
		"11_idx_views_table": `
CREATE INDEX IF NOT EXISTS idx_views_table ON views (table_id)`,
	}
}
