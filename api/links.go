package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/auth"
	"github.com/xiaot623/hitl-relay/config"
	"github.com/xiaot623/hitl-relay/linkcode"
)

// LinkCompleteRequest binds a previously issued code to an internal user.
type LinkCompleteRequest struct {
	Code   string `json:"code"`
	UserID string `json:"user_id"`
}

// CompleteLink completes the out-of-band linking flow: the code surfaced in
// chat is exchanged for a directory mapping. Codes are single use.
// POST /v1/links
func (h *Handler) CompleteLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req LinkCompleteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "code is required"})
	}
	if req.UserID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_id is required"})
	}

	// Same MVP rule as question intake: a caller may only link itself.
	if h.config.Mode == config.ModeMulti && auth.Principal(c) != req.UserID {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "not authorized for target user"})
	}

	channelID, err := h.codes.Redeem(ctx, req.Code)
	if errors.Is(err, linkcode.ErrCodeNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "link code not found or expired"})
	}
	if err != nil {
		log.Printf("ERROR: failed to redeem link code: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to redeem link code"})
	}

	if err := h.directory.Link(ctx, channelID, req.UserID); err != nil {
		log.Printf("ERROR: failed to link %s to %s: %v", channelID, req.UserID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to link user"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":         true,
		"user_id":    req.UserID,
		"channel_id": channelID,
	})
}
