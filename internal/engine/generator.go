package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"tabula/internal/model"
	"tabula/internal/store"
)

const (
	MaxBulkCount  = 100000
	rowBatchSize  = 5000
	cellBatchSize = 10000
)

// PartialCompletionError — bulk-прогон упал после коммита части батчей.
// Откатов нет: батчи коммитятся независимо, уже вставленные строки остаются.
// Вызывающий сверяется повторным запросом, а не слепым ретраем.
type PartialCompletionError struct {
	Committed int // строк закоммичено до падения
	Err       error
}

func (e *PartialCompletionError) Error() string {
	return fmt.Sprintf("bulk generation failed after %d committed rows: %v", e.Committed, e.Err)
}

func (e *PartialCompletionError) Unwrap() error { return e.Err }

// Generator батчами создаёт строки с синтетическими ячейками и публикует
// прогресс, который можно опрашивать по таблице из любого клиента.
// Синтетика — пакетный faker gofakeit (залочен, безопасен для
// параллельных прогонов).
type Generator struct {
	store    *store.Store
	progress *ProgressStore
}

func NewGenerator(st *store.Store, ps *ProgressStore) *Generator {
	return &Generator{store: st, progress: ps}
}

// Progress — последний прогон по таблице (для polling-эндпоинта).
func (g *Generator) Progress(tableID string) *Progress {
	return g.progress.Latest(tableID)
}

// BulkCreate создаёт count строк, по ячейке на каждую живую колонку.
// Строки — батчами по 5000 (одна транзакция на батч), ячейки — саб-батчами
// по 10000 записей на round trip. Прогресс обновляется после каждого батча
// строк. Вся операция НЕ одна транзакция: читатели видят частично
// заполненную таблицу по ходу прогона, это осознанная политика.
func (g *Generator) BulkCreate(ctx context.Context, tableID string, count int) (int, error) {
	if count < 1 || count > MaxBulkCount {
		return 0, verr("count", fmt.Sprintf("count must be between 1 and %d", MaxBulkCount))
	}
	if _, err := g.store.GetTable(ctx, tableID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, verr("tableId", "table not found")
		}
		return 0, infra("load table", err)
	}
	cols, err := g.store.ListColumns(ctx, tableID)
	if err != nil {
		return 0, infra("load columns", err)
	}
	if len(cols) == 0 {
		return 0, &PreconditionError{Message: "table has no columns"}
	}

	runID := g.store.NewID()
	g.progress.Start(runID, tableID, count)

	done := 0
	for done < count {
		n := rowBatchSize
		if count-done < n {
			n = count - done
		}

		now := time.Now().UTC()
		rows := make([]model.Row, n)
		for i := range rows {
			rows[i] = model.Row{ID: g.store.NewID(), TableID: tableID, CreatedAt: now}
		}
		if err := g.store.InsertRows(ctx, rows); err != nil {
			g.progress.Fail(runID)
			return done, wrapBulkFailure(done, infra("insert rows", err))
		}

		cells := make([]model.Cell, 0, n*len(cols))
		for _, r := range rows {
			for _, c := range cols {
				cells = append(cells, g.synthesizeCell(r.ID, c))
			}
		}
		for start := 0; start < len(cells); start += cellBatchSize {
			end := start + cellBatchSize
			if end > len(cells) {
				end = len(cells)
			}
			if err := g.store.InsertCells(ctx, cells[start:end]); err != nil {
				g.progress.Fail(runID)
				return done, wrapBulkFailure(done, infra("insert cells", err))
			}
		}

		done += n
		g.progress.Update(runID, done)
	}

	g.progress.Finish(runID)
	return done, nil
}

// частично закоммиченный прогон заворачиваем в PartialCompletionError
func wrapBulkFailure(committed int, err error) error {
	if committed == 0 {
		return err
	}
	return &PartialCompletionError{Committed: committed, Err: err}
}

// ==== Синтетика по типу и имени колонки ====

func (g *Generator) synthesizeCell(rowID string, col model.Column) model.Cell {
	if col.Type == model.ColumnText {
		v := g.textValue(col.Name)
		return model.Cell{RowID: rowID, ColumnID: col.ID, Value: v, ValueText: &v}
	}
	f := g.numberValue(col.Name)
	return model.Cell{
		RowID:       rowID,
		ColumnID:    col.ID,
		Value:       strconv.FormatFloat(f, 'f', -1, 64),
		ValueNumber: &f,
	}
}

func (g *Generator) textValue(colName string) string {
	name := strings.ToLower(colName)
	switch {
	case strings.Contains(name, "name"):
		return gofakeit.Name()
	case strings.Contains(name, "email"):
		return gofakeit.Email()
	case strings.Contains(name, "country"):
		return gofakeit.Country()
	case strings.Contains(name, "city"):
		return gofakeit.City()
	case strings.Contains(name, "company"):
		return gofakeit.Company()
	case strings.Contains(name, "job"), strings.Contains(name, "title"):
		return gofakeit.JobTitle()
	default:
		return gofakeit.Phrase()
	}
}

func (g *Generator) numberValue(colName string) float64 {
	name := strings.ToLower(colName)
	switch {
	case strings.Contains(name, "age"):
		return float64(gofakeit.Number(18, 65))
	case strings.Contains(name, "price"), strings.Contains(name, "cost"):
		return gofakeit.Price(10, 1000)
	case strings.Contains(name, "quantity"), strings.Contains(name, "count"):
		return float64(gofakeit.Number(1, 100))
	case strings.Contains(name, "rating"):
		return math.Round(gofakeit.Float64Range(1, 5)*10) / 10
	default:
		return float64(gofakeit.Number(1, 1000))
	}
}
