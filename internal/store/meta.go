package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"tabula/internal/model"
)

// ==== Bases ====

func (s *Store) CreateBase(ctx context.Context, name, ownerID string) (model.Base, error) {
	b := model.Base{
		ID:        s.NewID(),
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.Exec(ctx, s.sb.Insert("bases").
		Columns("id", "name", "owner_id", "created_at", "is_deleted").
		Values(b.ID, b.Name, b.OwnerID, b.CreatedAt, false))
	if err != nil {
		return model.Base{}, fmt.Errorf("insert base: %w", err)
	}
	return b, nil
}

func (s *Store) ListBases(ctx context.Context) ([]model.Base, error) {
	rows, err := s.Query(ctx, s.sb.Select("id", "name", "owner_id", "created_at", "is_deleted").
		From("bases").
		Where(sq.Eq{"is_deleted": false}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list bases: %w", err)
	}
	defer rows.Close()

	var out []model.Base
	for rows.Next() {
		var b model.Base
		var owner sql.NullString
		if err := rows.Scan(&b.ID, &b.Name, &owner, &b.CreatedAt, &b.IsDeleted); err != nil {
			return nil, err
		}
		b.OwnerID = owner.String
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteBase(ctx context.Context, id string) error {
	return s.softDelete(ctx, "bases", id)
}

// ==== Tables ====

func (s *Store) CreateTable(ctx context.Context, baseID, name string) (model.Table, error) {
	t := model.Table{
		ID:        s.NewID(),
		BaseID:    baseID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.Exec(ctx, s.sb.Insert("tables").
		Columns("id", "base_id", "name", "created_at", "is_deleted").
		Values(t.ID, t.BaseID, t.Name, t.CreatedAt, false))
	if err != nil {
		return model.Table{}, fmt.Errorf("insert table: %w", err)
	}
	return t, nil
}

func (s *Store) GetTable(ctx context.Context, id string) (model.Table, error) {
	row, err := s.QueryRow(ctx, s.sb.Select("id", "base_id", "name", "created_at", "is_deleted").
		From("tables").
		Where(sq.Eq{"id": id, "is_deleted": false}))
	if err != nil {
		return model.Table{}, err
	}
	var t model.Table
	if err := row.Scan(&t.ID, &t.BaseID, &t.Name, &t.CreatedAt, &t.IsDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Table{}, ErrNotFound
		}
		return model.Table{}, fmt.Errorf("get table: %w", err)
	}
	return t, nil
}

func (s *Store) ListTables(ctx context.Context, baseID string) ([]model.Table, error) {
	rows, err := s.Query(ctx, s.sb.Select("id", "base_id", "name", "created_at", "is_deleted").
		From("tables").
		Where(sq.Eq{"base_id": baseID, "is_deleted": false}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []model.Table
	for rows.Next() {
		var t model.Table
		if err := rows.Scan(&t.ID, &t.BaseID, &t.Name, &t.CreatedAt, &t.IsDeleted); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteTable(ctx context.Context, id string) error {
	return s.softDelete(ctx, "tables", id)
}

// ==== Columns ====

// CreateColumn добавляет колонку в конец (ord = max+1). Бэкфилла ячеек нет:
// отсутствующая ячейка читается как «пусто».
func (s *Store) CreateColumn(ctx context.Context, tableID, name string, colType model.ColumnType) (model.Column, error) {
	row, err := s.QueryRow(ctx, s.sb.Select("COALESCE(MAX(ord), -1)").
		From("columns").
		Where(sq.Eq{"table_id": tableID}))
	if err != nil {
		return model.Column{}, err
	}
	var maxOrd int
	if err := row.Scan(&maxOrd); err != nil {
		return model.Column{}, fmt.Errorf("max column order: %w", err)
	}

	c := model.Column{
		ID:      s.NewID(),
		TableID: tableID,
		Name:    name,
		Type:    colType,
		Order:   maxOrd + 1,
	}
	_, err = s.Exec(ctx, s.sb.Insert("columns").
		Columns("id", "table_id", "name", "col_type", "ord", "is_deleted").
		Values(c.ID, c.TableID, c.Name, c.Type, c.Order, false))
	if err != nil {
		return model.Column{}, fmt.Errorf("insert column: %w", err)
	}
	return c, nil
}

func (s *Store) GetColumn(ctx context.Context, id string) (model.Column, error) {
	row, err := s.QueryRow(ctx, s.sb.Select("id", "table_id", "name", "col_type", "ord", "is_deleted").
		From("columns").
		Where(sq.Eq{"id": id, "is_deleted": false}))
	if err != nil {
		return model.Column{}, err
	}
	var c model.Column
	if err := row.Scan(&c.ID, &c.TableID, &c.Name, &c.Type, &c.Order, &c.IsDeleted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Column{}, ErrNotFound
		}
		return model.Column{}, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

// ListColumns — живые колонки таблицы в порядке отображения.
func (s *Store) ListColumns(ctx context.Context, tableID string) ([]model.Column, error) {
	rows, err := s.Query(ctx, s.sb.Select("id", "table_id", "name", "col_type", "ord", "is_deleted").
		From("columns").
		Where(sq.Eq{"table_id": tableID, "is_deleted": false}).
		OrderBy("ord", "id"))
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var out []model.Column
	for rows.Next() {
		var c model.Column
		if err := rows.Scan(&c.ID, &c.TableID, &c.Name, &c.Type, &c.Order, &c.IsDeleted); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) RenameColumn(ctx context.Context, id, name string) error {
	res, err := s.Exec(ctx, s.sb.Update("columns").
		Set("name", name).
		Where(sq.Eq{"id": id, "is_deleted": false}))
	if err != nil {
		return fmt.Errorf("rename column: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) SoftDeleteColumn(ctx context.Context, id string) error {
	return s.softDelete(ctx, "columns", id)
}

func (s *Store) RestoreBase(ctx context.Context, id string) error {
	return s.restore(ctx, "bases", id)
}

func (s *Store) RestoreTable(ctx context.Context, id string) error {
	return s.restore(ctx, "tables", id)
}

func (s *Store) RestoreColumn(ctx context.Context, id string) error {
	return s.restore(ctx, "columns", id)
}

// ==== Общее ====

func (s *Store) softDelete(ctx context.Context, table, id string) error {
	res, err := s.Exec(ctx, s.sb.Update(table).
		Set("is_deleted", true).
		Where(sq.Eq{"id": id, "is_deleted": false}))
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", table, err)
	}
	return requireAffected(res)
}

// restore снимает флаг удаления; not found, если запись жива или не существует.
func (s *Store) restore(ctx context.Context, table, id string) error {
	res, err := s.Exec(ctx, s.sb.Update(table).
		Set("is_deleted", false).
		Where(sq.Eq{"id": id, "is_deleted": true}))
	if err != nil {
		return fmt.Errorf("restore %s: %w", table, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
