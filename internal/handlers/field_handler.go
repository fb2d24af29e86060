package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pipecrm/internal/models"
	"pipecrm/internal/services"
)

type FieldHandler struct {
	Service *services.EngineService
}

func NewFieldHandler(service *services.EngineService) *FieldHandler {
	return &FieldHandler{Service: service}
}

func (h *FieldHandler) List(c *gin.Context) {
	defs, err := h.Service.ListFields(tenantFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, defs)
}

func (h *FieldHandler) Register(c *gin.Context) {
	var def models.CustomFieldDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.Service.RegisterCustomField(tenantFrom(c), def)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *FieldHandler) Delete(c *gin.Context) {
	if err := h.Service.RemoveCustomField(tenantFrom(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
