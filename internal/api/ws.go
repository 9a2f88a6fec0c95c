package api

import (
	"errors"
	"net/http"
	"net/url"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"vetter/internal/chat"
)

const wsIdleTimeout = 10 * time.Minute

type wsEvent struct {
	Text string `json:"text"`
}

func (h *Handler) upgrader() websocket.Upgrader {
	up := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(h.origins) > 0 {
		up.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || slices.Contains(h.origins, origin) {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		}
	}
	return up
}

// serveWS treats every inbound frame as one UI event and answers with the
// rendered transcript.
func (h *Handler) serveWS(c *gin.Context) {
	id, _ := c.Cookie(sessionCookieName)
	sess, created := h.sessions.Ensure(id)
	header := http.Header{}
	if created {
		header.Add("Set-Cookie", sessionCookie(sess.ID, h.secureCookie(c)).String())
	}

	up := h.upgrader()
	conn, err := up.Upgrade(c.Writer, c.Request, header)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxBodyBytes)
	h.logger.Infow("websocket connected", "session_id", sess.ID, "created", created)

	ctx := c.Request.Context()
	notice := h.interact(ctx, sess, "")
	if err := conn.WriteJSON(sess.Snapshot().Transcript(h.title, notice)); err != nil {
		h.logger.Warnw("websocket write failed", "session_id", sess.ID, "error", err)
		return
	}

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsIdleTimeout))
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) || errors.Is(err, websocket.ErrCloseSent) {
				h.logger.Infow("websocket closed", "session_id", sess.ID)
			} else {
				h.logger.Warnw("websocket read failed", "session_id", sess.ID, "error", err)
			}
			return
		}
		notice := tooLongNotice
		if utf8.RuneCountInString(ev.Text) <= chat.MaxInputChars {
			notice = h.interact(ctx, sess, ev.Text)
		}
		if err := conn.WriteJSON(sess.Snapshot().Transcript(h.title, notice)); err != nil {
			h.logger.Warnw("websocket write failed", "session_id", sess.ID, "error", err)
			return
		}
	}
}
