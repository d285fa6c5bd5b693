package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"peer-review-api/services"
)

type DeadlineController struct {
	deadlines *services.DeadlineService
}

func NewDeadlineController(deadlines *services.DeadlineService) *DeadlineController {
	return &DeadlineController{deadlines: deadlines}
}

func (h *DeadlineController) GetDeadline(c *gin.Context) {
	d, err := h.deadlines.GetDeadline(c.Request.Context(), currentActor(c), c.Param("id"), c.Param("reviewerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deadline": d})
}

func (h *DeadlineController) UpdateDeadline(c *gin.Context) {
	var req services.UpdateDeadlineInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	d, err := h.deadlines.UpdateDeadline(c.Request.Context(), currentActor(c), c.Param("id"), c.Param("reviewerId"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "deadline": d})
}

func (h *DeadlineController) ListMine(c *gin.Context) {
	items, err := h.deadlines.ListMine(c.Request.Context(), currentActor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": items})
}

// CheckDeadlines is the read-only report used by the admin dashboard.
func (h *DeadlineController) CheckDeadlines(c *gin.Context) {
	report, err := h.deadlines.CheckDeadlines(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

func (h *DeadlineController) Sweep(c *gin.Context) {
	summary, err := h.deadlines.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}
