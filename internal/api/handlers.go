package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tabula/internal/engine"
	"tabula/internal/model"
	"tabula/internal/store"
)

// ==== Строки: запрос через планировщик ====

// POST /api/tables/:tableId/rows/query
func QueryRowsHandler(planner *engine.Planner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req engine.QueryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "Invalid JSON")
			return
		}
		req.TableID = c.Param("tableId")

		res, err := planner.QueryRows(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// POST /api/tables/:tableId/rows/bulk
func BulkCreateRowsHandler(gen *engine.Generator) gin.HandlerFunc {
	type bulkReq struct {
		Count int `json:"count"`
	}
	return func(c *gin.Context) {
		var req bulkReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "Invalid JSON")
			return
		}

		n, err := gen.BulkCreate(c.Request.Context(), c.Param("tableId"), req.Count)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
	}
}

// GET /api/tables/:tableId/rows/progress
func ProgressHandler(gen *engine.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := gen.Progress(c.Param("tableId"))
		if p == nil {
			// контракт: отсутствие прогона — JSON null, не 404
			c.JSON(http.StatusOK, nil)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// ==== Bases ====

// POST /api/bases
func CreateBaseHandler(st *store.Store) gin.HandlerFunc {
	type baseReq struct {
		Name    string `json:"name"`
		OwnerID string `json:"ownerId"`
	}
	return func(c *gin.Context) {
		var req baseReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(c, "name", "name is required")
			return
		}
		b, err := st.CreateBase(c.Request.Context(), req.Name, req.OwnerID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

// GET /api/bases
func ListBasesHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := st.ListBases(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		if out == nil {
			out = []model.Base{}
		}
		c.JSON(http.StatusOK, out)
	}
}

// DELETE /api/bases/:baseId  (soft delete)
func DeleteBaseHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.SoftDeleteBase(c.Request.Context(), c.Param("baseId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/bases/:baseId/restore
func RestoreBaseHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.RestoreBase(c.Request.Context(), c.Param("baseId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ==== Tables ====

// POST /api/bases/:baseId/tables
func CreateTableHandler(st *store.Store) gin.HandlerFunc {
	type tableReq struct {
		Name string `json:"name"`
	}
	return func(c *gin.Context) {
		var req tableReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(c, "name", "name is required")
			return
		}
		t, err := st.CreateTable(c.Request.Context(), c.Param("baseId"), req.Name)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// GET /api/bases/:baseId/tables
func ListTablesHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := st.ListTables(c.Request.Context(), c.Param("baseId"))
		if err != nil {
			respondError(c, err)
			return
		}
		if out == nil {
			out = []model.Table{}
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/tables/:tableId
func GetTableHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := st.GetTable(c.Request.Context(), c.Param("tableId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// DELETE /api/tables/:tableId  (soft delete)
func DeleteTableHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.SoftDeleteTable(c.Request.Context(), c.Param("tableId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/tables/:tableId/restore
func RestoreTableHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.RestoreTable(c.Request.Context(), c.Param("tableId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ==== Columns ====

// POST /api/tables/:tableId/columns
func CreateColumnHandler(st *store.Store) gin.HandlerFunc {
	type columnReq struct {
		Name string           `json:"name"`
		Type model.ColumnType `json:"type"`
	}
	return func(c *gin.Context) {
		var req columnReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(c, "name", "name is required")
			return
		}
		if !req.Type.Valid() {
			badRequest(c, "type", "type must be text or number")
			return
		}
		col, err := st.CreateColumn(c.Request.Context(), c.Param("tableId"), req.Name, req.Type)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, col)
	}
}

// GET /api/tables/:tableId/columns
func ListColumnsHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := st.ListColumns(c.Request.Context(), c.Param("tableId"))
		if err != nil {
			respondError(c, err)
			return
		}
		if out == nil {
			out = []model.Column{}
		}
		c.JSON(http.StatusOK, out)
	}
}

// PATCH /api/columns/:columnId  (переименование)
func RenameColumnHandler(st *store.Store) gin.HandlerFunc {
	type renameReq struct {
		Name string `json:"name"`
	}
	return func(c *gin.Context) {
		var req renameReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(c, "name", "name is required")
			return
		}
		if err := st.RenameColumn(c.Request.Context(), c.Param("columnId"), req.Name); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// DELETE /api/columns/:columnId  (soft delete)
func DeleteColumnHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.SoftDeleteColumn(c.Request.Context(), c.Param("columnId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/columns/:columnId/restore
func RestoreColumnHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.RestoreColumn(c.Request.Context(), c.Param("columnId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// ==== Rows / Cells ====

// POST /api/tables/:tableId/rows  (одна пустая строка + ячейки по колонкам)
func CreateRowHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		r, err := st.CreateRow(c.Request.Context(), c.Param("tableId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

// DELETE /api/rows/:rowId  (soft delete)
func DeleteRowHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.SoftDeleteRow(c.Request.Context(), c.Param("rowId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/rows/:rowId/restore
func RestoreRowHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.RestoreRow(c.Request.Context(), c.Param("rowId")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// PUT /api/rows/:rowId/cells/:columnId
// Проекции пересчитываются стором по типу колонки; нечисловое значение в
// number-колонку — 400, ничего не пишем.
func UpdateCellHandler(st *store.Store) gin.HandlerFunc {
	type cellReq struct {
		Value string `json:"value"`
	}
	return func(c *gin.Context) {
		var req cellReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "Invalid JSON")
			return
		}
		cell, err := st.WriteCell(c.Request.Context(), c.Param("rowId"), c.Param("columnId"), req.Value)
		if err != nil {
			if errors.Is(err, store.ErrNotNumeric) {
				badRequest(c, "value", "expected numeric value")
				return
			}
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cell)
	}
}

// ==== Views ====

// POST /api/tables/:tableId/views
func CreateViewHandler(st *store.Store) gin.HandlerFunc {
	type viewReq struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	return func(c *gin.Context) {
		var req viewReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
			badRequest(c, "name", "name is required")
			return
		}
		v, err := st.CreateView(c.Request.Context(), c.Param("tableId"), req.Name, req.Type)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, v)
	}
}

// GET /api/tables/:tableId/views
func ListViewsHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := st.ListViews(c.Request.Context(), c.Param("tableId"))
		if err != nil {
			respondError(c, err)
			return
		}
		if out == nil {
			out = []model.View{}
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/views/:viewId
func GetViewHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := st.GetView(c.Request.Context(), c.Param("viewId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// PUT /api/views/:viewId  (конфигурация мутируется целиком)
func UpdateViewHandler(st *store.Store, planner *engine.Planner) gin.HandlerFunc {
	type viewUpdateReq struct {
		Name          string         `json:"name"`
		Type          string         `json:"type"`
		ColumnOrder   []string       `json:"columnOrder"`
		HiddenColumns []string       `json:"hiddenColumns"`
		Filters       []model.Filter `json:"filters"`
		Sorts         []model.Sort   `json:"sorts"`
	}
	return func(c *gin.Context) {
		var req viewUpdateReq
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "body", "Invalid JSON")
			return
		}

		cur, err := st.GetView(c.Request.Context(), c.Param("viewId"))
		if err != nil {
			respondError(c, err)
			return
		}
		// фильтры/сортировки проверяем тем же валидатором, что и запрос строк
		if err := planner.ValidateConfig(c.Request.Context(), cur.TableID, req.Filters, req.Sorts); err != nil {
			respondError(c, err)
			return
		}

		cur.ColumnOrder = req.ColumnOrder
		cur.HiddenColumns = req.HiddenColumns
		cur.Filters = req.Filters
		cur.Sorts = req.Sorts
		if strings.TrimSpace(req.Name) != "" {
			cur.Name = req.Name
		}
		if strings.TrimSpace(req.Type) != "" {
			cur.Type = req.Type
		}
		if err := st.UpdateViewConfig(c.Request.Context(), cur); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, cur)
	}
}

// DELETE /api/views/:viewId
func DeleteViewHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.DeleteView(c.Request.Context(), c.Param("viewId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
