package webhook

import (
	"net/http"

	"callcenter-platform/internal/callbacks"
	"callcenter-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers exposes the two provider-facing webhook endpoints:
//
//	POST /webhooks/exotel/call-callback/:callbackId/:tokenMd5
//	POST /webhooks/exotel/sms-callback/:callbackId/:tokenMd5
//
// No retry-suppression header is sent; the provider's own retry policy
// governs redelivery and the reconciler's idempotency makes that safe.
type Handlers struct {
	Guard      *Guard
	Reconciler *callbacks.Service
}

// VoiceCallback ingests one voice status delivery.
func (h Handlers) VoiceCallback(c *gin.Context) {
	if !h.authenticate(c) {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}

	p := callbacks.NormalizeVoice(c.Request.PostForm)
	if err := h.Reconciler.ReconcileVoice(c.Request.Context(), p); err != nil {
		logger.FromGin(c).Error("voice callback reconcile failed", "call_sid", p.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "persistence failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sid": p.CallSid, "status": p.Status})
}

// SMSCallback ingests one SMS status delivery.
func (h Handlers) SMSCallback(c *gin.Context) {
	if !h.authenticate(c) {
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}

	p := callbacks.NormalizeSMS(c.Request.PostForm)
	if err := h.Reconciler.ReconcileSMS(c.Request.Context(), p); err != nil {
		logger.FromGin(c).Error("sms callback reconcile failed", "sms_sid", p.SmsSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "persistence failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sid": p.SmsSid, "status": p.Status})
}

// authenticate runs the signature guard before any payload is parsed.
func (h Handlers) authenticate(c *gin.Context) bool {
	token := c.Param("tokenMd5")
	if err := h.Guard.Verify(token, c.ClientIP(), c.Request.UserAgent()); err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return false
	}
	return true
}
