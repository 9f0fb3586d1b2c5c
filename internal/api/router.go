// api/router.go
package api

import (
	"github.com/gin-gonic/gin"

	"tabula/internal/engine"
	"tabula/internal/store"
)

func NewRouter(st *store.Store, planner *engine.Planner, gen *engine.Generator) *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api")
	{
		// bases
		apiGroup.POST("/bases", CreateBaseHandler(st))
		apiGroup.GET("/bases", ListBasesHandler(st))
		apiGroup.DELETE("/bases/:baseId", DeleteBaseHandler(st))
		apiGroup.POST("/bases/:baseId/restore", RestoreBaseHandler(st))

		// tables
		apiGroup.POST("/bases/:baseId/tables", CreateTableHandler(st))
		apiGroup.GET("/bases/:baseId/tables", ListTablesHandler(st))
		apiGroup.GET("/tables/:tableId", GetTableHandler(st))
		apiGroup.DELETE("/tables/:tableId", DeleteTableHandler(st))
		apiGroup.POST("/tables/:tableId/restore", RestoreTableHandler(st))

		// columns
		apiGroup.POST("/tables/:tableId/columns", CreateColumnHandler(st))
		apiGroup.GET("/tables/:tableId/columns", ListColumnsHandler(st))
		apiGroup.PATCH("/columns/:columnId", RenameColumnHandler(st))
		apiGroup.DELETE("/columns/:columnId", DeleteColumnHandler(st))
		apiGroup.POST("/columns/:columnId/restore", RestoreColumnHandler(st))

		// строки: статические сегменты — СНАЧАЛА
		apiGroup.POST("/tables/:tableId/rows/query", QueryRowsHandler(planner))
		apiGroup.POST("/tables/:tableId/rows/bulk", BulkCreateRowsHandler(gen))
		apiGroup.GET("/tables/:tableId/rows/progress", ProgressHandler(gen))
		apiGroup.POST("/tables/:tableId/rows", CreateRowHandler(st))
		apiGroup.DELETE("/rows/:rowId", DeleteRowHandler(st))
		apiGroup.POST("/rows/:rowId/restore", RestoreRowHandler(st))

		// ячейки
		apiGroup.PUT("/rows/:rowId/cells/:columnId", UpdateCellHandler(st))

		// views
		apiGroup.POST("/tables/:tableId/views", CreateViewHandler(st))
		apiGroup.GET("/tables/:tableId/views", ListViewsHandler(st))
		apiGroup.GET("/views/:viewId", GetViewHandler(st))
		apiGroup.PUT("/views/:viewId", UpdateViewHandler(st, planner))
		apiGroup.DELETE("/views/:viewId", DeleteViewHandler(st))
	}

	return r
}

func RunServer(addr string, st *store.Store, planner *engine.Planner, gen *engine.Generator) {
	_ = NewRouter(st, planner, gen).Run(addr)
}
