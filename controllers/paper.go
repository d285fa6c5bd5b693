package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"peer-review-api/services"
)

// PaperController exposes the paper lifecycle and review workflow.
type PaperController struct {
	workflow *services.ReviewWorkflowService
}

func NewPaperController(workflow *services.ReviewWorkflowService) *PaperController {
	return &PaperController{workflow: workflow}
}

/* ==========================
   Papers
   ========================== */

func (h *PaperController) CreatePaper(c *gin.Context) {
	var req services.CreatePaperInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paper, err := h.workflow.CreatePaper(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) ListPapers(c *gin.Context) {
	var req services.ListPapersInput
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	papers, err := h.workflow.ListPapers(c.Request.Context(), currentActor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": papers})
}

func (h *PaperController) GetPaper(c *gin.Context) {
	paper, err := h.workflow.GetPaper(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) SubmitPaper(c *gin.Context) {
	paper, err := h.workflow.SubmitPaper(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

/* ==========================
   Reviewer assignment
   ========================== */

func (h *PaperController) InviteReviewer(c *gin.Context) {
	var req services.InviteReviewerInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	assignment, err := h.workflow.InviteReviewer(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "assignment": assignment})
}

func (h *PaperController) RemoveReviewer(c *gin.Context) {
	paper, err := h.workflow.RemoveReviewer(c.Request.Context(), currentActor(c), c.Param("id"), c.Param("reviewerId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) AcceptSlot(c *gin.Context) {
	var req services.AcceptReviewInput
	if !bindJSON(c, &req) {
		return
	}

	paper, assignment, err := h.workflow.AcceptReview(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper, "assignment": assignment})
}

func (h *PaperController) DeclineSlot(c *gin.Context) {
	var req services.DeclineReviewInput
	if !bindJSON(c, &req) {
		return
	}

	paper, assignment, err := h.workflow.DeclineReview(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper, "assignment": assignment})
}

/* ==========================
   Reviews
   ========================== */

func (h *PaperController) SubmitReview(c *gin.Context) {
	var req services.SubmitReviewInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	review, paper, err := h.workflow.SubmitReview(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "review": review, "paper": paper})
}

func (h *PaperController) ListReviews(c *gin.Context) {
	reviews, err := h.workflow.ListReviews(c.Request.Context(), currentActor(c), c.Param("id"), queryInt(c, "round", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "items": reviews})
}

func (h *PaperController) CheckCompletion(c *gin.Context) {
	paper, fired, err := h.workflow.CheckCompletion(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	events := make([]string, 0, len(fired))
	for _, t := range fired {
		events = append(events, string(t.Event))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper, "transitions": events, "updated": len(fired) > 0})
}

/* ==========================
   Corrections and publication
   ========================== */

func (h *PaperController) SubmitCorrections(c *gin.Context) {
	var req services.SubmitCorrectionsInput
	if !bindJSON(c, &req) {
		return
	}

	paper, err := h.workflow.SubmitCorrections(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) RequestPublication(c *gin.Context) {
	paper, err := h.workflow.RequestPublication(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) ApprovePublication(c *gin.Context) {
	paper, err := h.workflow.ApprovePublication(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) RejectPublication(c *gin.Context) {
	var req services.RejectPublicationInput
	if !bindJSON(c, &req) {
		return
	}

	paper, err := h.workflow.RejectPublication(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) FinalDecision(c *gin.Context) {
	var req services.FinalDecisionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	paper, err := h.workflow.FinalDecision(c.Request.Context(), currentActor(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

func (h *PaperController) Withdraw(c *gin.Context) {
	paper, err := h.workflow.Withdraw(c.Request.Context(), currentActor(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": paper})
}

type phaseTimestampRequest struct {
	At *time.Time `json:"at"`
}

func (h *PaperController) SetPhaseTimestamp(c *gin.Context) {
	var req phaseTimestampRequest
	if !bindJSON(c, &req) {
		return
	}

	key := c.Param("key")
	at, written, err := h.workflow.SetPhaseTimestamp(c.Request.Context(), currentActor(c), c.Param("id"), key, req.At)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "key": key, "value": at, "written": written})
}
