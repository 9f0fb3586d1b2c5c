package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"tabula/internal/model"
)

// ==== Views ====
// Конфигурация (columnOrder/hiddenColumns/filters/sorts) хранится JSON-блобами
// и мутируется целиком; частичных апдейтов нет.

func (s *Store) CreateView(ctx context.Context, tableID, name, viewType string) (model.View, error) {
	if viewType == "" {
		viewType = "grid"
	}
	v := model.View{
		ID:      s.NewID(),
		TableID: tableID,
		Name:    name,
		Type:    viewType,
	}
	_, err := s.Exec(ctx, s.sb.Insert("views").
		Columns("id", "table_id", "name", "view_type", "column_order", "hidden_columns", "filters", "sorts").
		Values(v.ID, v.TableID, v.Name, v.Type, "[]", "[]", "[]", "[]"))
	if err != nil {
		return model.View{}, fmt.Errorf("insert view: %w", err)
	}
	return v, nil
}

func (s *Store) GetView(ctx context.Context, id string) (model.View, error) {
	row, err := s.QueryRow(ctx, s.sb.Select("id", "table_id", "name", "view_type", "column_order", "hidden_columns", "filters", "sorts").
		From("views").
		Where(sq.Eq{"id": id}))
	if err != nil {
		return model.View{}, err
	}
	return scanView(row.Scan)
}

func (s *Store) ListViews(ctx context.Context, tableID string) ([]model.View, error) {
	rows, err := s.Query(ctx, s.sb.Select("id", "table_id", "name", "view_type", "column_order", "hidden_columns", "filters", "sorts").
		From("views").
		Where(sq.Eq{"table_id": tableID}).
		OrderBy("id"))
	if err != nil {
		return nil, fmt.Errorf("list views: %w", err)
	}
	defer rows.Close()

	var out []model.View
	for rows.Next() {
		v, err := scanView(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// UpdateViewConfig перезаписывает конфигурацию целиком.
func (s *Store) UpdateViewConfig(ctx context.Context, v model.View) error {
	co, err := marshalJSON(v.ColumnOrder)
	if err != nil {
		return err
	}
	hc, err := marshalJSON(v.HiddenColumns)
	if err != nil {
		return err
	}
	fs, err := marshalJSON(v.Filters)
	if err != nil {
		return err
	}
	ss, err := marshalJSON(v.Sorts)
	if err != nil {
		return err
	}
	res, err := s.Exec(ctx, s.sb.Update("views").
		Set("name", v.Name).
		Set("view_type", v.Type).
		Set("column_order", co).
		Set("hidden_columns", hc).
		Set("filters", fs).
		Set("sorts", ss).
		Where(sq.Eq{"id": v.ID}))
	if err != nil {
		return fmt.Errorf("update view: %w", err)
	}
	return requireAffected(res)
}

func (s *Store) DeleteView(ctx context.Context, id string) error {
	res, err := s.Exec(ctx, s.sb.Delete("views").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete view: %w", err)
	}
	return requireAffected(res)
}

// ==== Скан/маршалинг ====

func scanView(scan func(...any) error) (model.View, error) {
	var v model.View
	var co, hc, fs, ss string
	if err := scan(&v.ID, &v.TableID, &v.Name, &v.Type, &co, &hc, &fs, &ss); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.View{}, ErrNotFound
		}
		return model.View{}, fmt.Errorf("scan view: %w", err)
	}
	if err := json.Unmarshal([]byte(co), &v.ColumnOrder); err != nil {
		return model.View{}, fmt.Errorf("view column_order: %w", err)
	}
	if err := json.Unmarshal([]byte(hc), &v.HiddenColumns); err != nil {
		return model.View{}, fmt.Errorf("view hidden_columns: %w", err)
	}
	if err := json.Unmarshal([]byte(fs), &v.Filters); err != nil {
		return model.View{}, fmt.Errorf("view filters: %w", err)
	}
	if err := json.Unmarshal([]byte(ss), &v.Sorts); err != nil {
		return model.View{}, fmt.Errorf("view sorts: %w", err)
	}
	return v, nil
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return "[]", nil
	}
	return string(b), nil
}
