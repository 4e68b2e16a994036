package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"callcenter-platform/internal/analytics"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/callbacks"
	"callcenter-platform/internal/exotel"
	"callcenter-platform/internal/heartbeat"
	"callcenter-platform/internal/numbers"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/syncer"

	"github.com/gin-gonic/gin"
)

// UserResolver looks up a user's role and assigned phone numbers in the
// user directory service. Injected as a function to avoid persistence
// assumptions here; the directory is a separate system.
type UserResolver func(ctx context.Context, userID string) (role string, nums []string, err error)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth        *auth.Manager
	ResolveUser UserResolver

	Outbound  *exotel.Service
	Callbacks *callbacks.Service
	Analytics *analytics.Service
	Heartbeat *heartbeat.Service
	Syncer    *syncer.Service
	Numbers   *numbers.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a JWT token pair. Credential verification lives in the
// user directory service; this endpoint resolves role and number
// assignments through it and mints the pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil || h.ResolveUser == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	role, nums, err := h.ResolveUser(c.Request.Context(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, role, nums)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair. Role and number
// assignments are re-resolved, so a revoked user or changed assignment
// takes effect at rotation.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil || h.ResolveUser == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	role, nums, err := h.ResolveUser(c.Request.Context(), claims.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, role, nums)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	uid, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"user_id": uid,
		"role":    role,
		"numbers": auth.Numbers(c.Request.Context()),
	})
}

// --- Outbound actions ---

type connectCallRequest struct {
	From string `json:"from"` // agent's phone, dialed first
	To   string `json:"to"`   // customer
}

// ConnectCall is the click-to-call action.
func (h Handlers) ConnectCall(c *gin.Context) {
	var req connectCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.From == "" || req.To == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to required"})
		return
	}
	detail, err := h.Outbound.ConnectCalls(c.Request.Context(), req.From, req.To)
	if err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type flowCallRequest struct {
	To     string `json:"to"`
	FlowID string `json:"flow_id"`
}

// FlowCall dials a number into a provider-side voice flow.
func (h Handlers) FlowCall(c *gin.Context) {
	var req flowCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.FlowID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and flow_id required"})
		return
	}
	detail, err := h.Outbound.PlaceCall(c.Request.Context(), req.To, req.FlowID)
	if err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

type sendSMSRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (h Handlers) SendSMS(c *gin.Context) {
	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.To == "" || req.Body == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to and body required"})
		return
	}
	detail, err := h.Outbound.SendSMS(c.Request.Context(), req.To, req.Body)
	if err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// --- Call records ---

func (h Handlers) GetCall(c *gin.Context) {
	row, err := h.Callbacks.VoiceBySid(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h Handlers) GetSMS(c *gin.Context) {
	row, err := h.Callbacks.SMSBySid(c.Request.Context(), c.Param("sid"))
	if err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// ClearRecording removes a call's recording reference. The call row stays.
func (h Handlers) ClearRecording(c *gin.Context) {
	if err := h.Callbacks.ClearRecording(c.Request.Context(), c.Param("sid")); err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// --- Analytics ---

// AnalyticsSummary aggregates call metrics over ?from=..&to=.. (RFC3339).
// Non-admin callers are scoped to their assigned numbers.
func (h Handlers) AnalyticsSummary(c *gin.Context) {
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}
	sum, err := h.Analytics.Summary(c.Request.Context(), analytics.SummaryRequest{
		Range:   analytics.TimeRange{From: from, To: to},
		Numbers: rbac.ScopeNumbers(c),
	})
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid range"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "aggregation failed"})
		return
	}
	c.JSON(http.StatusOK, sum)
}

// --- Heartbeat reads ---

func (h Handlers) HeartbeatLatest(c *gin.Context) {
	row, err := h.Heartbeat.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, heartbeat.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no health checks recorded"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h Handlers) HeartbeatHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	rows, err := h.Heartbeat.History(c.Request.Context(), limit, offset)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"checks": rows})
}

func (h Handlers) HeartbeatUptime(c *gin.Context) {
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}
	pct, err := h.Heartbeat.Uptime(c.Request.Context(), from, to)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uptime_percent": pct, "from": from, "to": to})
}

// --- Manual triggers (admin) ---

func (h Handlers) TriggerBulkSync(c *gin.Context) {
	row, err := h.Syncer.SyncCalls(c.Request.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrSyncInProgress) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "sync already running"})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h Handlers) TriggerDirectorySync(c *gin.Context) {
	if err := h.Numbers.SyncDirectory(c.Request.Context()); err != nil {
		h.providerError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}

func (h Handlers) TriggerHeartbeat(c *gin.Context) {
	c.JSON(http.StatusOK, h.Heartbeat.Poll(c.Request.Context()))
}

func (h Handlers) SyncHistory(c *gin.Context) {
	st := syncer.SyncType(c.DefaultQuery("type", string(syncer.SyncTypeBulkCalls)))
	limit, _ := strconv.Atoi(c.Query("limit"))
	rows, err := h.Syncer.History(c.Request.Context(), st, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": rows})
}

// --- Number directory ---

func (h Handlers) ListNumbers(c *gin.Context) {
	rows, err := h.Numbers.List(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"numbers": rows})
}

func (h Handlers) GetNumber(c *gin.Context) {
	row, err := h.Numbers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type createNumberRequest struct {
	Number         string `json:"number"`
	FriendlyName   string `json:"friendly_name"`
	DepartmentName string `json:"department_name"`
}

func (h Handlers) CreateNumber(c *gin.Context) {
	var req createNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	row, err := h.Numbers.Create(c.Request.Context(), req.Number, req.FriendlyName, req.DepartmentName)
	if err != nil {
		switch {
		case errors.Is(err, numbers.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, numbers.ErrDuplicate):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "number already exists"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, row)
}

type updateNumberRequest struct {
	FriendlyName   *string `json:"friendly_name"`
	DepartmentName *string `json:"department_name"`
	IsActive       *bool   `json:"is_active"`
}

// UpdateNumber patches the admin-editable fields; absent fields keep
// their current value.
func (h Handlers) UpdateNumber(c *gin.Context) {
	var req updateNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	upd := numbers.Update{
		FriendlyName:   req.FriendlyName,
		DepartmentName: req.DepartmentName,
		IsActive:       req.IsActive,
	}
	if err := h.Numbers.Modify(c.Request.Context(), c.Param("id"), upd); err != nil {
		if errors.Is(err, numbers.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

func (h Handlers) SetPrimaryNumber(c *gin.Context) {
	if err := h.Numbers.SetPrimary(c.Request.Context(), c.Param("id")); err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "primary set"})
}

func (h Handlers) DeleteNumber(c *gin.Context) {
	if err := h.Numbers.Remove(c.Request.Context(), c.Param("id")); err != nil {
		h.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// --- helpers ---

func parseWindow(c *gin.Context) (time.Time, time.Time, bool) {
	from, err1 := time.Parse(time.RFC3339, c.Query("from"))
	to, err2 := time.Parse(time.RFC3339, c.Query("to"))
	if err1 != nil || err2 != nil || !to.After(from) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC3339 with to > from"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// providerError maps outbound-path failures: missing credentials and
// exhausted retries are availability problems, provider rejections pass
// through their status.
func (h Handlers) providerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, exotel.ErrMissingCredentials):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "provider credentials not configured"})
	case errors.Is(err, exotel.ErrRetriesExhausted):
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "provider throttling, retries exhausted"})
	default:
		var apiErr *exotel.APIError
		if errors.As(err, &apiErr) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider rejected request", "provider_status": apiErr.StatusCode})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider request failed"})
	}
}

func (h Handlers) storageError(c *gin.Context, err error) {
	if errors.Is(err, callbacks.ErrNotFound) || errors.Is(err, numbers.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
}
