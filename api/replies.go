package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/hitl-relay/domain"
)

const (
	defaultWaitSec = 25
	maxWaitSec     = 60

	// pollTick bounds how long a waiter sleeps between store re-checks even
	// without a wake signal.
	pollTick = time.Second
)

// PollRepliesResponse is the long-poll response. An empty reply list is a
// normal, successful outcome.
type PollRepliesResponse struct {
	SessionID string               `json:"session_id"`
	Status    domain.SessionStatus `json:"status"`
	Replies   []domain.Reply       `json:"replies"`
}

// PollReplies waits up to wait_sec for replies newer than since.
// GET /v1/sessions/:session_id/replies?since=&wait_sec=
func (h *Handler) PollReplies(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")
	since := c.QueryParam("since")
	wait := parseWaitSec(c.QueryParam("wait_sec"))

	sess, err := h.store.GetOrCreateSession(ctx, sessionID, domain.StatusIdle, "")
	if err != nil {
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}

	// Subscribe before the first visibility check so an append between check
	// and wait is never missed.
	wake, cancel := h.notifier.Subscribe(sessionID)
	defer cancel()

	deadline := time.Now().Add(wait)
	for {
		visible := repliesSince(sess.Replies, since)
		remaining := time.Until(deadline)
		if len(visible) > 0 || remaining <= 0 {
			return c.JSON(http.StatusOK, PollRepliesResponse{
				SessionID: sess.SessionID,
				Status:    sess.Status,
				Replies:   visible,
			})
		}

		tick := remaining
		if tick > pollTick {
			tick = pollTick
		}
		timer := time.NewTimer(tick)
		select {
		case <-ctx.Done():
			// Caller abandoned the connection; nothing more to do.
			timer.Stop()
			return nil
		case <-wake:
			timer.Stop()
		case <-timer.C:
		}

		sess, err = h.store.GetSession(ctx, sessionID)
		if err != nil {
			log.Printf("ERROR: failed to get session: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
		}
		if sess == nil {
			// The session existed moments ago; treat disappearance as empty.
			sess = &domain.Session{SessionID: sessionID, Status: domain.StatusIdle, Replies: []domain.Reply{}}
		}
	}
}

// parseWaitSec applies the default and clamps to [0, maxWaitSec]. Malformed
// values fall back to the default; polling never fails on input.
func parseWaitSec(raw string) time.Duration {
	sec := defaultWaitSec
	if raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			sec = parsed
		}
	}
	if sec < 0 {
		sec = 0
	}
	if sec > maxWaitSec {
		sec = maxWaitSec
	}
	return time.Duration(sec) * time.Second
}

// repliesSince returns the replies strictly after the given reply id in
// insertion order. An empty or unknown id is stale and yields the full list.
func repliesSince(replies []domain.Reply, since string) []domain.Reply {
	if since != "" {
		for i, r := range replies {
			if r.ReplyID == since {
				return append([]domain.Reply{}, replies[i+1:]...)
			}
		}
	}
	if replies == nil {
		return []domain.Reply{}
	}
	return replies
}
