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

// предел чанка одного INSERT: держит число плейсхолдеров в рамках лимитов
// обоих движков (rows — 4 параметра на запись, cells — 5)
const insertChunk = 1000

// ==== Rows ====

// CreateRow создаёт одну строку и по пустой ячейке на каждую живую колонку.
func (s *Store) CreateRow(ctx context.Context, tableID string) (model.Row, error) {
	cols, err := s.ListColumns(ctx, tableID)
	if err != nil {
		return model.Row{}, err
	}

	r := model.Row{
		ID:        s.NewID(),
		TableID:   tableID,
		CreatedAt: time.Now().UTC(),
	}
	cells := make([]model.Cell, 0, len(cols))
	for _, c := range cols {
		vt, vn, _ := Flatten(c.Type, "")
		cells = append(cells, model.Cell{
			RowID:     r.ID,
			ColumnID:  c.ID,
			ValueText: vt, ValueNumber: vn,
		})
	}

	if err := s.InsertRows(ctx, []model.Row{r}); err != nil {
		return model.Row{}, err
	}
	if err := s.InsertCells(ctx, cells); err != nil {
		return model.Row{}, err
	}
	return r, nil
}

func (s *Store) SoftDeleteRow(ctx context.Context, id string) error {
	return s.softDelete(ctx, "rows", id)
}

func (s *Store) RestoreRow(ctx context.Context, id string) error {
	return s.restore(ctx, "rows", id)
}

// InsertRows пишет пачку строк одной транзакцией, чанкуя INSERT'ы.
func (s *Store) InsertRows(ctx context.Context, rows []model.Row) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(rows); start += insertChunk {
		end := start + insertChunk
		if end > len(rows) {
			end = len(rows)
		}
		ins := s.sb.Insert("rows").Columns("id", "table_id", "created_at", "is_deleted")
		for _, r := range rows[start:end] {
			ins = ins.Values(r.ID, r.TableID, r.CreatedAt, false)
		}
		sqlText, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build rows insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlText, args...); err != nil {
			return fmt.Errorf("insert rows: %w", err)
		}
	}
	return tx.Commit()
}

// InsertCells — то же для ячеек. Проекции уже посчитаны вызывающим.
func (s *Store) InsertCells(ctx context.Context, cells []model.Cell) error {
	if len(cells) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for start := 0; start < len(cells); start += insertChunk {
		end := start + insertChunk
		if end > len(cells) {
			end = len(cells)
		}
		ins := s.sb.Insert("cells").Columns("row_id", "column_id", "value", "value_text", "value_number")
		for _, c := range cells[start:end] {
			ins = ins.Values(c.RowID, c.ColumnID, c.Value, c.ValueText, c.ValueNumber)
		}
		sqlText, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build cells insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlText, args...); err != nil {
			return fmt.Errorf("insert cells: %w", err)
		}
	}
	return tx.Commit()
}

// ==== Cells ====

// WriteCell — точечная запись значения ячейки (upsert). Единственная точка,
// где сырое значение и проекции меняются вместе; тип берётся у колонки на
// момент записи.
func (s *Store) WriteCell(ctx context.Context, rowID, columnID, raw string) (model.Cell, error) {
	col, err := s.GetColumn(ctx, columnID)
	if err != nil {
		return model.Cell{}, err
	}
	vt, vn, err := Flatten(col.Type, raw)
	if err != nil {
		return model.Cell{}, err
	}
	cell := model.Cell{
		RowID:    rowID,
		ColumnID: columnID,
		Value:    raw,
		ValueText: vt, ValueNumber: vn,
	}
	_, err = s.Exec(ctx, s.sb.Insert("cells").
		Columns("row_id", "column_id", "value", "value_text", "value_number").
		Values(cell.RowID, cell.ColumnID, cell.Value, cell.ValueText, cell.ValueNumber).
		Suffix("ON CONFLICT (row_id, column_id) DO UPDATE SET value = EXCLUDED.value, value_text = EXCLUDED.value_text, value_number = EXCLUDED.value_number"))
	if err != nil {
		return model.Cell{}, fmt.Errorf("write cell: %w", err)
	}
	return cell, nil
}

// CellsForRows забирает все ячейки для набора строк одним запросом и
// группирует по row id.
func (s *Store) CellsForRows(ctx context.Context, rowIDs []string) (map[string][]model.Cell, error) {
	out := make(map[string][]model.Cell, len(rowIDs))
	if len(rowIDs) == 0 {
		return out, nil
	}
	rows, err := s.Query(ctx, s.sb.Select("row_id", "column_id", "value", "value_text", "value_number").
		From("cells").
		Where(sq.Eq{"row_id": rowIDs}).
		OrderBy("row_id", "column_id"))
	if err != nil {
		return nil, fmt.Errorf("cells for rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Cell
		if err := rows.Scan(&c.RowID, &c.ColumnID, &c.Value, &c.ValueText, &c.ValueNumber); err != nil {
			return nil, err
		}
		out[c.RowID] = append(out[c.RowID], c)
	}
	return out, rows.Err()
}

// SortValue читает проекцию ячейки (rowID, columnID) для курсора.
// Отсутствующая ячейка читается как «пусто» — это корректное продолжение,
// даже если строка курсора уже удалена.
func (s *Store) SortValue(ctx context.Context, rowID, columnID string) (*string, *float64, error) {
	row, err := s.QueryRow(ctx, s.sb.Select("value_text", "value_number").
		From("cells").
		Where(sq.Eq{"row_id": rowID, "column_id": columnID}))
	if err != nil {
		return nil, nil, err
	}
	var vt *string
	var vn *float64
	if err := row.Scan(&vt, &vn); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("cursor cell: %w", err)
	}
	return vt, vn, nil
}
