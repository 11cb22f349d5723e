package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apca/claimaudit/internal/model"
	"github.com/apca/claimaudit/internal/retrieve"
	"github.com/apca/claimaudit/internal/store"
)

func (s *Server) health(c *gin.Context) {
	count, err := s.chunks.Count(c.Request.Context())
	if err != nil {
		s.logger.Warn("health chunk count failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"chunks": count,
	})
}

// createPolicyRequest carries a policy document as text. Policies
// arrive as markdown or plain text; PDF conversion happens upstream.
type createPolicyRequest struct {
	Name          string `json:"name" binding:"required"`
	Payer         string `json:"payer" binding:"required"`
	EffectiveDate string `json:"effective_date"`
	Content       string `json:"content" binding:"required"`
}

func (s *Server) createPolicy(c *gin.Context) {
	var req createPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	meta := model.PolicyMetadata{
		PolicyID:  uuid.NewString(),
		Name:      req.Name,
		Payer:     req.Payer,
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
	if req.EffectiveDate != "" {
		parsed, err := time.Parse("2006-01-02", req.EffectiveDate)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "INVALID_DATE", "effective_date must be YYYY-MM-DD")
			return
		}
		meta.EffectiveDate = parsed
	}

	count, err := s.pipeline.Process(c.Request.Context(), meta, req.Content)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "INGEST_FAILED", err.Error())
		return
	}
	meta.ChunkCount = count

	if err := s.store.SavePolicy(c.Request.Context(), meta); err != nil {
		errorJSON(c, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, meta)
}

func (s *Server) listPolicies(c *gin.Context) {
	policies, err := s.store.ListPolicies(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"policies": policies, "total": len(policies)})
}

func (s *Server) getPolicy(c *gin.Context) {
	meta, err := s.store.GetPolicy(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) deletePolicy(c *gin.Context) {
	policyID := c.Param("id")

	if err := s.store.DeletePolicy(c.Request.Context(), policyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	removed, err := s.chunks.DeletePolicy(c.Request.Context(), policyID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"policy_id": policyID, "chunks_removed": removed})
}

func (s *Server) createClaim(c *gin.Context) {
	var claim model.Claim
	if err := c.ShouldBindJSON(&claim); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if err := claim.Validate(); err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, "INVALID_CLAIM", err.Error())
		return
	}
	claim.EnsureID()

	if err := s.store.SaveClaim(c.Request.Context(), claim); err != nil {
		errorJSON(c, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusCreated, claim)
}

func (s *Server) listClaims(c *gin.Context) {
	claims, err := s.store.ListClaims(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"claims": claims, "total": len(claims)})
}

func (s *Server) getClaim(c *gin.Context) {
	claim, err := s.store.GetClaim(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, claim)
}

func (s *Server) listClaimAudits(c *gin.Context) {
	audits, err := s.store.ListAuditsForClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": audits, "total": len(audits)})
}

type runAuditRequest struct {
	ClaimID string `json:"claim_id" binding:"required"`
}

func (s *Server) runAudit(c *gin.Context) {
	var req runAuditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	claim, err := s.store.GetClaim(c.Request.Context(), req.ClaimID)
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}

	out, err := s.auditor.Audit(c.Request.Context(), claim)
	if errors.Is(err, retrieve.ErrNoEvidence) {
		errorJSON(c, http.StatusUnprocessableEntity, "NO_EVIDENCE", "no policy evidence found for this claim; ingest the relevant policy first")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "AUDIT_FAILED", err.Error())
		return
	}

	if err := s.store.SaveAudit(c.Request.Context(), out); err != nil {
		errorJSON(c, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getAudit(c *gin.Context) {
	audit, err := s.store.GetAudit(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, audit)
}

func (s *Server) listAuditFeedback(c *gin.Context) {
	feedback, err := s.store.ListFeedbackForAudit(c.Request.Context(), c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"feedback": feedback, "total": len(feedback)})
}

type createFeedbackRequest struct {
	AuditID   string `json:"audit_id" binding:"required"`
	IsCorrect *bool  `json:"is_correct" binding:"required"`
	Reason    string `json:"reason"`
	Comment   string `json:"comment"`
}

var validReasons = map[model.FeedbackReason]bool{
	model.FeedbackWrongPolicy:     true,
	model.FeedbackMissingEvidence: true,
	model.FeedbackWrongRuleParse:  true,
	model.FeedbackMissingFields:   true,
	model.FeedbackOther:           true,
}

func (s *Server) createFeedback(c *gin.Context) {
	var req createFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	reason := model.FeedbackReason(req.Reason)
	if req.Reason != "" && !validReasons[reason] {
		errorJSON(c, http.StatusBadRequest, "INVALID_REASON", "unknown feedback reason")
		return
	}

	fb := model.AuditorFeedback{
		FeedbackID: uuid.NewString(),
		AuditID:    req.AuditID,
		IsCorrect:  *req.IsCorrect,
		Reason:     reason,
		Comment:    req.Comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.SaveFeedback(c.Request.Context(), fb); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			errorJSON(c, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		errorJSON(c, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}
	c.JSON(http.StatusCreated, fb)
}
