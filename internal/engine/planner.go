package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tabula/internal/model"
	"tabula/internal/store"
)

// ==== Параметры и результат запроса строк ====

const (
	DefaultLimit = 50
	MaxLimit     = 100
)

type QueryRequest struct {
	TableID string         `json:"tableId"`
	ViewID  string         `json:"viewId,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Cursor  string         `json:"cursor,omitempty"`
	Filters []model.Filter `json:"filters,omitempty"`
	Sorts   []model.Sort   `json:"sorts,omitempty"`
}

type QueryResult struct {
	Rows       []model.RowWithCells `json:"rows"`
	NextCursor *string              `json:"nextCursor"`
	TotalCount int                  `json:"totalCount"`
}

// Planner переводит (таблица, view?, фильтры, сортировки, курсор) в один
// SQL-запрос по EAV-хранилищу ячеек плюс парный count-запрос.
//
// Политика: активны максимум ОДИН фильтр и ОДНА сортировка — первые в
// эффективных списках, остальные молча игнорируются. Это осознанное
// ограничение контракта (курсор/порядок завязаны на единственный ключ),
// а не упущение.
type Planner struct {
	store *store.Store
}

func NewPlanner(st *store.Store) *Planner {
	return &Planner{store: st}
}

// QueryRows — основной вход: валидация, эффективные фильтр/сортировка,
// keyset-курсор, страница строк + общий счётчик + подцепленные ячейки.
func (p *Planner) QueryRows(ctx context.Context, req QueryRequest) (QueryResult, error) {
	// 1) limit
	limit := req.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return QueryResult{}, verr("limit", fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	if strings.TrimSpace(req.TableID) == "" {
		return QueryResult{}, verr("tableId", "tableId is required")
	}

	// 2) эффективные фильтры/сортировки: явные имеют приоритет, иначе —
	// сохранённые во view (если он указан)
	filters, sorts := req.Filters, req.Sorts
	if req.ViewID != "" && (len(filters) == 0 || len(sorts) == 0) {
		view, err := p.store.GetView(ctx, req.ViewID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return QueryResult{}, verr("viewId", "view not found")
			}
			return QueryResult{}, infra("load view", err)
		}
		if view.TableID != req.TableID {
			return QueryResult{}, verr("viewId", "view does not belong to table")
		}
		if len(filters) == 0 {
			filters = view.Filters
		}
		if len(sorts) == 0 {
			sorts = view.Sorts
		}
	}

	// 3) активны только первые
	var filter *model.Filter
	if len(filters) > 0 {
		filter = &filters[0]
	}
	var sort *model.Sort
	if len(sorts) > 0 {
		sort = &sorts[0]
	}

	// 4) сверяем объявленные типы с фактическими колонками
	if filter != nil {
		if err := p.checkColumn(ctx, req.TableID, filter.ColumnID, filter.ColumnType, "filter"); err != nil {
			return QueryResult{}, err
		}
		if !model.OperatorAllowed(filter.ColumnType, filter.Operator) {
			return QueryResult{}, verr("filter", fmt.Sprintf("operator %q is not valid for %s columns", filter.Operator, filter.ColumnType))
		}
	}
	if sort != nil {
		if !sort.Direction.Valid() {
			return QueryResult{}, verr("sort", fmt.Sprintf("invalid direction %q", sort.Direction))
		}
		if err := p.checkColumn(ctx, req.TableID, sort.ColumnID, sort.ColumnType, "sort"); err != nil {
			return QueryResult{}, err
		}
	}

	// 5) собираем запрос страницы и count-запрос с общими джойнами/предикатами
	sel, cnt, err := p.buildQueries(ctx, req.TableID, filter, sort, req.Cursor)
	if err != nil {
		return QueryResult{}, err
	}

	total := 0
	cntRow, err := p.store.QueryRow(ctx, cnt)
	if err != nil {
		return QueryResult{}, infra("count query", err)
	}
	if err := cntRow.Scan(&total); err != nil {
		return QueryResult{}, infra("count query", err)
	}

	dbRows, err := p.store.Query(ctx, sel.Limit(uint64(limit)))
	if err != nil {
		return QueryResult{}, infra("row query", err)
	}
	defer dbRows.Close()

	page := make([]model.RowWithCells, 0, limit)
	ids := make([]string, 0, limit)
	for dbRows.Next() {
		var r model.Row
		if err := dbRows.Scan(&r.ID, &r.TableID, &r.CreatedAt, &r.IsDeleted); err != nil {
			return QueryResult{}, infra("scan row", err)
		}
		page = append(page, model.RowWithCells{Row: r, Cells: []model.Cell{}})
		ids = append(ids, r.ID)
	}
	if err := dbRows.Err(); err != nil {
		return QueryResult{}, infra("row query", err)
	}

	// 6) ячейки одной пачкой
	cellsByRow, err := p.store.CellsForRows(ctx, ids)
	if err != nil {
		return QueryResult{}, infra("fetch cells", err)
	}
	for i := range page {
		if cs := cellsByRow[page[i].ID]; cs != nil {
			page[i].Cells = cs
		}
	}

	// 7) nextCursor только при полной странице
	var next *string
	if len(page) == limit {
		last := page[len(page)-1].ID
		next = &last
	}
	return QueryResult{Rows: page, NextCursor: next, TotalCount: total}, nil
}

// ValidateConfig проверяет фильтры/сортировки конфигурации view теми же
// правилами, что и запрос строк — только здесь все элементы, не первые.
func (p *Planner) ValidateConfig(ctx context.Context, tableID string, filters []model.Filter, sorts []model.Sort) error {
	for i := range filters {
		f := &filters[i]
		if err := p.checkColumn(ctx, tableID, f.ColumnID, f.ColumnType, "filters"); err != nil {
			return err
		}
		if !model.OperatorAllowed(f.ColumnType, f.Operator) {
			return verr("filters", fmt.Sprintf("operator %q is not valid for %s columns", f.Operator, f.ColumnType))
		}
	}
	for i := range sorts {
		s := &sorts[i]
		if !s.Direction.Valid() {
			return verr("sorts", fmt.Sprintf("invalid direction %q", s.Direction))
		}
		if err := p.checkColumn(ctx, tableID, s.ColumnID, s.ColumnType, "sorts"); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) checkColumn(ctx context.Context, tableID, columnID string, declared model.ColumnType, field string) error {
	if strings.TrimSpace(columnID) == "" {
		return verr(field, "columnId is required")
	}
	col, err := p.store.GetColumn(ctx, columnID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return verr(field, fmt.Sprintf("column %s not found", columnID))
		}
		return infra("load column", err)
	}
	if col.TableID != tableID {
		return verr(field, fmt.Sprintf("column %s does not belong to table", columnID))
	}
	if col.Type != declared {
		return verr(field, fmt.Sprintf("column %s is %s, filter/sort declares %s", columnID, col.Type, declared))
	}
	return nil
}

// ==== Сборка SQL ====

// buildQueries возвращает select страницы (без limit) и парный count.
// EAV-поворот: по одному LEFT JOIN на каждую задействованную колонку
// (fc — колонка фильтра, sc — колонка сортировки; одна и та же колонка
// джойнится один раз).
func (p *Planner) buildQueries(ctx context.Context, tableID string, filter *model.Filter, sort *model.Sort, cursor string) (sq.SelectBuilder, sq.SelectBuilder, error) {
	sb := p.store.Builder()

	base := func(cols ...string) sq.SelectBuilder {
		q := sb.Select(cols...).From("rows r").
			Where(sq.Eq{"r.table_id": tableID, "r.is_deleted": false})
		if sort != nil {
			q = q.LeftJoin("cells sc ON sc.row_id = r.id AND sc.column_id = ?", sort.ColumnID)
		}
		if filter != nil && (sort == nil || filter.ColumnID != sort.ColumnID) {
			q = q.LeftJoin("cells fc ON fc.row_id = r.id AND fc.column_id = ?", filter.ColumnID)
		}
		return q
	}

	// предикат фильтра — общий для страницы и count
	var filterPred sq.Sqlizer
	if filter != nil {
		alias := "fc"
		if sort != nil && filter.ColumnID == sort.ColumnID {
			alias = "sc"
		}
		pred, err := filterPredicate(alias, filter)
		if err != nil {
			return sq.SelectBuilder{}, sq.SelectBuilder{}, err
		}
		filterPred = pred
	}

	sel := base("r.id", "r.table_id", "r.created_at", "r.is_deleted")
	cnt := base("COUNT(DISTINCT r.id)")
	if filterPred != nil {
		sel = sel.Where(filterPred)
		cnt = cnt.Where(filterPred)
	}

	// keyset-курсор: только страница, count без него
	if cursor != "" {
		pred, err := p.cursorPredicate(ctx, cursor, sort)
		if err != nil {
			return sq.SelectBuilder{}, sq.SelectBuilder{}, err
		}
		sel = sel.Where(pred)
	}

	sel = sel.OrderBy(orderClauses(sort)...)
	return sel, cnt, nil
}

// filterPredicate — WHERE-условие одного фильтра по типизированной проекции.
func filterPredicate(alias string, f *model.Filter) (sq.Sqlizer, error) {
	vt := alias + ".value_text"
	vn := alias + ".value_number"

	if f.ColumnType == model.ColumnText {
		val := f.Value.Text() // отсутствующее значение — ""
		switch f.Operator {
		case model.OpContains:
			return sq.Expr("LOWER(COALESCE("+vt+", '')) LIKE ? ESCAPE '\\'", likePattern(val)), nil
		case model.OpEquals:
			return sq.Eq{vt: val}, nil
		case model.OpNotContains:
			// NULL и несовпадение считаются прошедшими
			return sq.Expr("("+vt+" IS NULL OR LOWER("+vt+") NOT LIKE ? ESCAPE '\\')", likePattern(val)), nil
		case model.OpIsEmpty:
			return sq.Expr("(" + vt + " IS NULL OR " + vt + " = '')"), nil
		case model.OpIsNotEmpty:
			return sq.Expr("(" + vt + " IS NOT NULL AND " + vt + " <> '')"), nil
		}
		return nil, verr("filter", fmt.Sprintf("operator %q is not valid for text columns", f.Operator))
	}

	// number
	switch f.Operator {
	case model.OpIsEmpty:
		return sq.Expr(vn + " IS NULL"), nil
	case model.OpIsNotEmpty:
		return sq.Expr(vn + " IS NOT NULL"), nil
	}
	val, err := f.Value.Number() // отсутствующее значение — 0
	if err != nil {
		return nil, verr("filter", "expected numeric value")
	}
	switch f.Operator {
	case model.OpEquals:
		return sq.Eq{vn: val}, nil
	case model.OpGreaterThan:
		return sq.Gt{vn: val}, nil
	case model.OpLessThan:
		return sq.Lt{vn: val}, nil
	case model.OpGreaterEqual:
		return sq.GtOrEq{vn: val}, nil
	case model.OpLessEqual:
		return sq.LtOrEq{vn: val}, nil
	}
	return nil, verr("filter", fmt.Sprintf("operator %q is not valid for number columns", f.Operator))
}

// likePattern экранирует wildcard'ы LIKE и оборачивает в %...%.
func likePattern(val string) string {
	val = strings.ToLower(val)
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(val) + "%"
}

// сентинель «пусто»: для text — NULL или пустая строка, для number — NULL
func sentinelExpr(colType model.ColumnType) string {
	if colType == model.ColumnText {
		return "(sc.value_text IS NULL OR sc.value_text = '')"
	}
	return "(sc.value_number IS NULL)"
}

func sortValueCol(colType model.ColumnType) string {
	if colType == model.ColumnText {
		return "sc.value_text"
	}
	return "sc.value_number"
}

// cursorPredicate строит условие продолжения после строки cursor так, чтобы
// (значение сортировки, id строки) оставались тотальным порядком: ни
// дубликатов, ни пропусков — включая NULL/пустые значения и равенства.
func (p *Planner) cursorPredicate(ctx context.Context, cursor string, sort *model.Sort) (sq.Sqlizer, error) {
	// без сортировки курсор — просто последний id (ULID'ы монотонны)
	if sort == nil {
		return sq.Gt{"r.id": cursor}, nil
	}

	vt, vn, err := p.store.SortValue(ctx, cursor, sort.ColumnID)
	if err != nil {
		return nil, infra("cursor lookup", err)
	}

	sentinel := sentinelExpr(sort.ColumnType)
	valCol := sortValueCol(sort.ColumnType)

	// значение строки курсора
	var curVal any
	curSentinel := true
	if sort.ColumnType == model.ColumnText {
		if vt != nil && *vt != "" {
			curVal, curSentinel = *vt, false
		}
	} else if vn != nil {
		curVal, curSentinel = *vn, false
	}

	if sort.Direction == model.SortAsc {
		if curSentinel {
			// пустые идут первыми: добираем пустые с большим id, затем все непустые
			return sq.Or{
				sq.And{sq.Expr(sentinel), sq.Gt{"r.id": cursor}},
				sq.Expr("NOT " + sentinel),
			}, nil
		}
		// строго больше, либо равные с большим id; пустые уже отданы
		return sq.And{
			sq.Expr("NOT " + sentinel),
			sq.Or{
				sq.Gt{valCol: curVal},
				sq.And{sq.Eq{valCol: curVal}, sq.Gt{"r.id": cursor}},
			},
		}, nil
	}

	// desc: пустые в самом конце
	if curSentinel {
		return sq.And{sq.Expr(sentinel), sq.Gt{"r.id": cursor}}, nil
	}
	return sq.Or{
		sq.And{sq.Expr("NOT " + sentinel), sq.Lt{valCol: curVal}},
		sq.And{sq.Eq{valCol: curVal}, sq.Gt{"r.id": cursor}},
		sq.Expr(sentinel),
	}, nil
}

// orderClauses: первичный ключ сортировки — проекция с явным размещением
// пустых (asc — сначала, desc — в конце), финальный tie-break всегда r.id ASC.
// CASE вместо NULLS FIRST/LAST — чтобы одинаково работало на Postgres и
// SQLite и чтобы пустая строка вела себя как NULL.
func orderClauses(sort *model.Sort) []string {
	if sort == nil {
		return []string{"r.id ASC"}
	}
	sentinel := sentinelExpr(sort.ColumnType)
	valCol := sortValueCol(sort.ColumnType)
	if sort.Direction == model.SortAsc {
		return []string{
			"CASE WHEN " + sentinel + " THEN 0 ELSE 1 END ASC",
			valCol + " ASC",
			"r.id ASC",
		}
	}
	return []string{
		"CASE WHEN " + sentinel + " THEN 1 ELSE 0 END ASC",
		valCol + " DESC",
		"r.id ASC",
	}
}
