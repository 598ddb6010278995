package web

import (
	"context"
	"errors"
	"net/http"

	"filemanager/internal/api"
	"filemanager/internal/notify"
	"filemanager/internal/verification"

	"github.com/gin-gonic/gin"
)

// flowContext keeps the request values but lets a backend call outlive a
// dropped client. The api client timeout still bounds it.
func flowContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// OpenVerification handles GET /verify-email?token=. It opens a visit and
// runs the automatic confirmation once, for the token in the link.
func (h *Handler) OpenVerification(c *gin.Context) {
	visit := h.visits.Open()
	visit.Flow.RunAutoVerify(flowContext(c), c.Query("token"))

	c.Header("Location", "/verify-email/"+visit.ID)
	c.JSON(http.StatusCreated, visitView(visit))
}

// GetVerification handles GET /verify-email/:visit
func (h *Handler) GetVerification(c *gin.Context) {
	visit, ok := h.lookupVisit(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, visitView(visit))
}

// VerifyNow handles POST /verify-email/:visit/verify
func (h *Handler) VerifyNow(c *gin.Context) {
	visit, ok := h.lookupVisit(c)
	if !ok {
		return
	}

	var req VerifyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	token := req.Token
	if token == "" {
		token = visit.Flow.Token()
	}

	err := visit.Flow.VerifyNow(flowContext(c), token)
	c.JSON(verificationStatus(err), visitView(visit))
}

// ResendVerification handles POST /verify-email/:visit/resend
func (h *Handler) ResendVerification(c *gin.Context) {
	visit, ok := h.lookupVisit(c)
	if !ok {
		return
	}

	var req ResendRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	err := visit.Flow.Resend(flowContext(c), req.Email)
	c.JSON(verificationStatus(err), visitView(visit))
}

func (h *Handler) lookupVisit(c *gin.Context) (*Visit, bool) {
	visit, ok := h.visits.Get(c.Param("visit"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":    "verification visit not found or expired",
			"redirect": "/verify-email",
		})
		return nil, false
	}
	return visit, true
}

// visitView renders a visit and hands over the notices raised since the
// last view.
func visitView(v *Visit) VisitResponse {
	base := "/verify-email/" + v.ID
	notices := v.Notices.Drain()
	if notices == nil {
		notices = []notify.Notice{}
	}
	return VisitResponse{
		Visit:        v.ID,
		State:        v.Flow.State(),
		TokenPresent: v.Flow.Token() != "",
		Busy:         v.Flow.Busy(),
		Notices:      notices,
		Redirect:     v.Redirect(),
		Links: map[string]string{
			"self":   base,
			"verify": base + "/verify",
			"resend": base + "/resend",
			"login":  verification.LoginPath,
		},
	}
}

// verificationStatus maps a flow result to an HTTP status
func verificationStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, verification.ErrTokenRequired), errors.Is(err, verification.ErrEmailRequired):
		return http.StatusBadRequest
	case errors.Is(err, verification.ErrAlreadyVerified), errors.Is(err, verification.ErrBusy):
		return http.StatusConflict
	}

	// a 405 here means both request shapes were refused
	if status := api.StatusCode(err); status >= 400 && status < 500 && status != http.StatusMethodNotAllowed {
		return status
	}
	return http.StatusBadGateway
}
