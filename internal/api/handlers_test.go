package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"tabula/internal/engine"
	"tabula/internal/model"
	"tabula/internal/pg"
	"tabula/internal/store"
)

func newTestServer(t *testing.T) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, pg.ApplyDDL(db, pg.Schema()))

	st := store.New(db, sq.Question)
	planner := engine.NewPlanner(st)
	gen := engine.NewGenerator(st, engine.NewProgressStore())
	return NewRouter(st, planner, gen), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func seedAPI(t *testing.T, st *store.Store) (model.Table, model.Column, model.Column) {
	t.Helper()
	ctx := context.Background()
	b, err := st.CreateBase(ctx, "b", "")
	require.NoError(t, err)
	tbl, err := st.CreateTable(ctx, b.ID, "t")
	require.NoError(t, err)
	name, err := st.CreateColumn(ctx, tbl.ID, "Name", model.ColumnText)
	require.NoError(t, err)
	age, err := st.CreateColumn(ctx, tbl.ID, "Age", model.ColumnNumber)
	require.NoError(t, err)
	return tbl, name, age
}

func TestCrudFlowOverHTTP(t *testing.T) {
	r, _ := newTestServer(t)

	// base
	w := doJSON(t, r, http.MethodPost, "/api/bases", gin.H{"name": "CRM"})
	require.Equal(t, http.StatusCreated, w.Code)
	var base model.Base
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &base))
	require.NotEmpty(t, base.ID)

	// table
	w = doJSON(t, r, http.MethodPost, "/api/bases/"+base.ID+"/tables", gin.H{"name": "Leads"})
	require.Equal(t, http.StatusCreated, w.Code)
	var tbl model.Table
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tbl))

	// column
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/columns", gin.H{"name": "Name", "type": "text"})
	require.Equal(t, http.StatusCreated, w.Code)
	var col model.Column
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &col))

	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/columns", gin.H{"name": "Bad", "type": "date"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// row + cell
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var row model.Row
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))

	w = doJSON(t, r, http.MethodPut, "/api/rows/"+row.ID+"/cells/"+col.ID, gin.H{"value": "Ivan"})
	require.Equal(t, http.StatusOK, w.Code)
	var cell model.Cell
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cell))
	require.Equal(t, "Ivan", *cell.ValueText)

	// 404 по несуществующей колонке
	w = doJSON(t, r, http.MethodPut, "/api/rows/"+row.ID+"/cells/01NOPE", gin.H{"value": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)

	// soft delete строки и возврат через restore
	w = doJSON(t, r, http.MethodDelete, "/api/rows/"+row.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	var q struct {
		TotalCount int `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Equal(t, 0, q.TotalCount)

	w = doJSON(t, r, http.MethodPost, "/api/rows/"+row.ID+"/restore", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	require.Equal(t, 1, q.TotalCount)
}

func TestQueryEndpointContract(t *testing.T) {
	r, st := newTestServer(t)
	tbl, nameCol, ageCol := seedAPI(t, st)
	ctx := context.Background()

	mk := func(name, age string) {
		row, err := st.CreateRow(ctx, tbl.ID)
		require.NoError(t, err)
		_, err = st.WriteCell(ctx, row.ID, nameCol.ID, name)
		require.NoError(t, err)
		_, err = st.WriteCell(ctx, row.ID, ageCol.ID, age)
		require.NoError(t, err)
	}
	mk("Alice", "30")
	mk("Bob", "")
	mk("Carol", "25")

	w := doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{
		"sorts": []gin.H{{"columnId": ageCol.ID, "columnType": "number", "direction": "asc"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Rows       []model.RowWithCells `json:"rows"`
		NextCursor *string              `json:"nextCursor"`
		TotalCount int                  `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Rows, 3)
	require.Equal(t, 3, res.TotalCount)
	require.Nil(t, res.NextCursor)
	for _, row := range res.Rows {
		require.Len(t, row.Cells, 2)
	}

	// числовой операнд фильтра числом в JSON
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{
		"filters": []gin.H{{"columnId": ageCol.ID, "columnType": "number", "operator": "greater_equal", "value": 26}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Rows, 1)

	// тип фильтра не совпал с колонкой — 400 с кодом validation_error
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{
		"filters": []gin.H{{"columnId": nameCol.ID, "columnType": "number", "operator": "equals", "value": 1}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var errBody struct {
		Errors []FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	require.Len(t, errBody.Errors, 1)
	require.Equal(t, engine.ErrCodeValidation, errBody.Errors[0].Code)
}

func TestBulkAndProgressEndpoints(t *testing.T) {
	r, st := newTestServer(t)
	tbl, _, _ := seedAPI(t, st)

	w := doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/bulk", gin.H{"count": 25})
	require.Equal(t, http.StatusOK, w.Code)
	var bulk struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bulk))
	require.True(t, bulk.Success)
	require.Equal(t, 25, bulk.Count)

	// свежезавершённый прогон ещё виден на 100%
	w = doJSON(t, r, http.MethodGet, "/api/tables/"+tbl.ID+"/rows/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var prog engine.Progress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prog))
	require.Equal(t, 25, prog.Current)
	require.Equal(t, tbl.ID, prog.TableID)

	// count вне диапазона
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/bulk", gin.H{"count": 0})
	require.Equal(t, http.StatusBadRequest, w.Code)
	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/bulk", gin.H{"count": 100001})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkOnColumnlessTable(t *testing.T) {
	r, st := newTestServer(t)
	ctx := context.Background()
	b, err := st.CreateBase(ctx, "b", "")
	require.NoError(t, err)
	tbl, err := st.CreateTable(ctx, b.ID, "empty")
	require.NoError(t, err)

	w := doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/bulk", gin.H{"count": 5})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var errBody struct {
		Errors []FieldError `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	require.Equal(t, engine.ErrCodePrecondition, errBody.Errors[0].Code)
	require.Equal(t, "table has no columns", errBody.Errors[0].Message)
}

func TestProgressEndpointNullWhenIdle(t *testing.T) {
	r, st := newTestServer(t)
	tbl, _, _ := seedAPI(t, st)

	w := doJSON(t, r, http.MethodGet, "/api/tables/"+tbl.ID+"/rows/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "null", w.Body.String())
}

func TestViewEndpointsValidateConfig(t *testing.T) {
	r, st := newTestServer(t)
	tbl, nameCol, ageCol := seedAPI(t, st)

	w := doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/views", gin.H{"name": "main"})
	require.Equal(t, http.StatusCreated, w.Code)
	var v model.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))

	// валидная конфигурация сохраняется целиком
	w = doJSON(t, r, http.MethodPut, "/api/views/"+v.ID, gin.H{
		"columnOrder":   []string{ageCol.ID, nameCol.ID},
		"hiddenColumns": []string{},
		"filters":       []gin.H{{"columnId": nameCol.ID, "columnType": "text", "operator": "contains", "value": "a"}},
		"sorts":         []gin.H{{"columnId": ageCol.ID, "columnType": "number", "direction": "desc"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := st.GetView(context.Background(), v.ID)
	require.NoError(t, err)
	require.Equal(t, []string{ageCol.ID, nameCol.ID}, got.ColumnOrder)
	require.Len(t, got.Filters, 1)

	// неверно объявленный тип колонки — отказ
	w = doJSON(t, r, http.MethodPut, "/api/views/"+v.ID, gin.H{
		"filters": []gin.H{{"columnId": nameCol.ID, "columnType": "number", "operator": "equals"}},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// view из другого запроса строк: фильтр подхватывается планировщиком
	mkRow := func(name string) {
		row, err := st.CreateRow(context.Background(), tbl.ID)
		require.NoError(t, err)
		_, err = st.WriteCell(context.Background(), row.ID, nameCol.ID, name)
		require.NoError(t, err)
	}
	mkRow("Anna")
	mkRow("Boris")

	w = doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", gin.H{"viewId": v.ID})
	require.Equal(t, http.StatusOK, w.Code)
	var res struct {
		Rows       []model.RowWithCells `json:"rows"`
		TotalCount int                  `json:"totalCount"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 1, res.TotalCount) // только "Anna" содержит 'a'
}

func TestPaginationOverHTTP(t *testing.T) {
	r, st := newTestServer(t)
	tbl, nameCol, _ := seedAPI(t, st)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		row, err := st.CreateRow(ctx, tbl.ID)
		require.NoError(t, err)
		_, err = st.WriteCell(ctx, row.ID, nameCol.ID, fmt.Sprintf("row-%d", i))
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		body := gin.H{"limit": 3}
		if cursor != "" {
			body["cursor"] = cursor
		}
		w := doJSON(t, r, http.MethodPost, "/api/tables/"+tbl.ID+"/rows/query", body)
		require.Equal(t, http.StatusOK, w.Code)
		var res struct {
			Rows       []model.RowWithCells `json:"rows"`
			NextCursor *string              `json:"nextCursor"`
			TotalCount int                  `json:"totalCount"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		require.Equal(t, 7, res.TotalCount)
		for _, row := range res.Rows {
			require.False(t, seen[row.ID], "row %s paged twice", row.ID)
			seen[row.ID] = true
		}
		if res.NextCursor == nil {
			break
		}
		cursor = *res.NextCursor
	}
	require.Len(t, seen, 7)
}
