package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/models"
	"pipecrm/internal/pipeline"
	"pipecrm/internal/services"
)

type DealHandler struct {
	Service *services.EngineService
}

func NewDealHandler(service *services.EngineService) *DealHandler {
	return &DealHandler{Service: service}
}

func (h *DealHandler) Create(c *gin.Context) {
	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.Service.CreateDeal(c.Request.Context(), tenantFrom(c), &deal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *DealHandler) GetByID(c *gin.Context) {
	deal, err := h.Service.GetDeal(tenantFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deal)
}

func (h *DealHandler) Update(c *gin.Context) {
	var deal models.Deal
	if err := c.ShouldBindJSON(&deal); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.Service.EditDeal(c.Request.Context(), tenantFrom(c), c.Param("id"), &deal)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *DealHandler) Delete(c *gin.Context) {
	if err := h.Service.DeleteDeal(c.Request.Context(), tenantFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type moveDealRequest struct {
	StageID string `json:"stage_id" binding:"required"`
}

func (h *DealHandler) Move(c *gin.Context) {
	var req moveDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	moved, err := h.Service.MoveDealStage(c.Request.Context(), tenantFrom(c), c.Param("id"), req.StageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, moved)
}

type queryDealsRequest struct {
	Filter pipeline.Filter `json:"filter"`
	Sort   pipeline.Sort   `json:"sort"`
}

func (h *DealHandler) Query(c *gin.Context) {
	var req queryDealsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deals, err := h.Service.QueryDeals(tenantFrom(c), req.Filter, req.Sort)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, deals)
}

// Board returns the stage-grouped projection, optionally narrowed by the
// "q" free-text parameter.
func (h *DealHandler) Board(c *gin.Context) {
	filter := pipeline.Filter{Text: c.Query("q")}
	groups, err := h.Service.BoardView(tenantFrom(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

// Refresh reloads deals from the system of record, falling back to the last
// durable snapshot when it is unreachable.
func (h *DealHandler) Refresh(c *gin.Context) {
	stale, err := h.Service.RefreshFromRemote(c.Request.Context(), tenantFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stale": stale})
}

// Tasks lists the in-flight sync operations.
func (h *DealHandler) Tasks(c *gin.Context) {
	tasks, err := h.Service.PendingTasks(tenantFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
