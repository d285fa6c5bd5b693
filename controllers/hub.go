package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"peer-review-api/services"
)

type HubController struct {
	hubs *services.HubService
}

func NewHubController(hubs *services.HubService) *HubController {
	return &HubController{hubs: hubs}
}

func (h *HubController) CreateHub(c *gin.Context) {
	var req services.CreateHubInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hub, err := h.hubs.CreateHub(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "hub": hub})
}

func (h *HubController) GetHub(c *gin.Context) {
	hub, err := h.hubs.GetHub(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hub": hub})
}

func (h *HubController) AddReviewer(c *gin.Context) {
	var req services.AddHubReviewerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.hubs.AddReviewer(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hub": res.Hub, "invitedPapers": res.Invited})
}
