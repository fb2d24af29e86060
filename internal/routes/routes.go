package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/handlers"
)

func SetupRoutes(
	r *gin.Engine,
	dealHandler *handlers.DealHandler,
	stageHandler *handlers.StageHandler,
	fieldHandler *handlers.FieldHandler,
	reportHandler *handlers.ReportHandler,
	wsHandler *handlers.WSHandler,
) *gin.Engine {

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// DEALS
	deals := r.Group("/deals")
	{
		deals.POST("/", dealHandler.Create)
		deals.GET("/:id", dealHandler.GetByID)
		deals.PUT("/:id", dealHandler.Update)
		deals.DELETE("/:id", dealHandler.Delete)
		deals.PUT("/:id/stage", dealHandler.Move)
		deals.POST("/query", dealHandler.Query)
		deals.POST("/refresh", dealHandler.Refresh)
	}

	// Board projection and sync introspection live outside the /deals group
	// so the static paths never shadow the :id parameter.
	r.GET("/board", dealHandler.Board)
	r.GET("/sync/tasks", dealHandler.Tasks)

	// STAGES
	stages := r.Group("/stages")
	{
		stages.GET("/", stageHandler.List)
		stages.POST("/", stageHandler.Add)
		stages.POST("/reorder", stageHandler.Reorder)
		stages.PUT("/:id", stageHandler.Rename)
		stages.DELETE("/:id", stageHandler.Delete)
	}

	// CUSTOM FIELDS
	fields := r.Group("/fields")
	{
		fields.GET("/", fieldHandler.List)
		fields.POST("/", fieldHandler.Register)
		fields.DELETE("/:id", fieldHandler.Delete)
	}

	// REPORTS
	r.GET("/reports/pipeline.pdf", reportHandler.Pipeline)

	// CHANGE FEED
	r.GET("/ws", wsHandler.Feed)

	return r
}
