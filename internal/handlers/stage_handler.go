package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/models"
	"pipecrm/internal/services"
)

type StageHandler struct {
	Service *services.EngineService
}

func NewStageHandler(service *services.EngineService) *StageHandler {
	return &StageHandler{Service: service}
}

func (h *StageHandler) List(c *gin.Context) {
	stages, err := h.Service.ListStages(tenantFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stages)
}

type addStageRequest struct {
	ID    string `json:"id" binding:"required"`
	Label string `json:"label" binding:"required"`
}

func (h *StageHandler) Add(c *gin.Context) {
	var req addStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.AddStage(tenantFrom(c), models.Stage{ID: req.ID, Label: req.Label}); err != nil {
		writeError(c, err)
		return
	}
	stages, _ := h.Service.ListStages(tenantFrom(c))
	c.JSON(http.StatusCreated, stages)
}

type renameStageRequest struct {
	Label string `json:"label" binding:"required"`
}

func (h *StageHandler) Rename(c *gin.Context) {
	var req renameStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.RenameStage(tenantFrom(c), c.Param("id"), req.Label); err != nil {
		writeError(c, err)
		return
	}
	stages, _ := h.Service.ListStages(tenantFrom(c))
	c.JSON(http.StatusOK, stages)
}

type reorderStagesRequest struct {
	Order []string `json:"order" binding:"required"`
}

func (h *StageHandler) Reorder(c *gin.Context) {
	var req reorderStagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Service.ReorderStages(tenantFrom(c), req.Order); err != nil {
		writeError(c, err)
		return
	}
	stages, _ := h.Service.ListStages(tenantFrom(c))
	c.JSON(http.StatusOK, stages)
}

// Delete removes a stage; a populated stage needs the reassign_to query
// parameter naming the stage its deals move into.
func (h *StageHandler) Delete(c *gin.Context) {
	if err := h.Service.RemoveStage(tenantFrom(c), c.Param("id"), c.Query("reassign_to")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
