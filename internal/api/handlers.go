package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vetter/internal/chat"
	"vetter/internal/history"
	"vetter/internal/session"
)

const (
	sessionCookieName = "vetter_session"
	tooLongNotice     = "Message too long."
)

// maxBodyBytes bounds request bodies and websocket frames.
const maxBodyBytes = 64 << 10

// Options tune the HTTP surface.
type Options struct {
	Title          string
	AllowedOrigins []string
	// SecureCookies marks cookies Secure even when the request itself is
	// plain HTTP, for deployments behind a TLS-terminating proxy.
	SecureCookies bool
	Logger        *zap.SugaredLogger
}

// Handler wires HTTP routes to the chat service and the session store.
type Handler struct {
	chat     chat.Querier
	sessions *session.Store
	title    string
	origins  []string
	secure   bool
	logger   *zap.SugaredLogger
}

// NewHandler constructs a Handler instance.
func NewHandler(querier chat.Querier, sessions *session.Store, opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	title := strings.TrimSpace(opts.Title)
	if title == "" {
		title = "Candidate Vetter"
	}
	return &Handler{
		chat:     querier,
		sessions: sessions,
		title:    title,
		origins:  opts.AllowedOrigins,
		secure:   opts.SecureCookies,
		logger:   logger,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	if len(h.origins) > 0 {
		// preflight requests have no matching route, so this cannot live on the group
		headers := cors.DefaultConfig()
		headers.AllowOrigins = h.origins
		headers.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		headers.AllowHeaders = []string{"Origin", "Content-Type", "Accept", csrfHeaderName}
		headers.ExposeHeaders = []string{"Content-Length", csrfHeaderName}
		headers.AllowCredentials = true
		router.Use(cors.New(headers))
	}
	router.SetHTMLTemplate(loadTemplates())
	router.GET("/healthz", h.healthz)
	router.GET("/", h.index)
	router.POST("/", limitBody(maxBodyBytes), csrfMiddleware(), h.submitForm)
	router.GET("/ws", h.serveWS)

	api := router.Group("/api")
	api.Use(limitBody(maxBodyBytes), csrfMiddleware())
	api.GET("/transcript", h.getTranscript)
	api.POST("/messages", h.postMessage)
	api.DELETE("/session", h.deleteSession)
}

// currentSession resolves the session cookie, starting a session when the
// cookie is missing or stale.
func (h *Handler) currentSession(c *gin.Context) *session.Session {
	id, _ := c.Cookie(sessionCookieName)
	sess, created := h.sessions.Ensure(id)
	if created {
		setCookie(c, sessionCookie(sess.ID, h.secureCookie(c)))
		h.logger.Infow("session started", "session_id", sess.ID, "client_ip", c.ClientIP())
	}
	return sess
}

// secureCookie reports whether cookies set on this response need the Secure
// attribute.
func (h *Handler) secureCookie(c *gin.Context) bool {
	return h.secure || c.Request.TLS != nil
}

func sessionCookie(id string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     sessionCookieName,
		Value:    id,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// interact runs one UI event against the session under its lock and returns
// the notice to show.
func (h *Handler) interact(ctx context.Context, sess *session.Session, text string) string {
	var notice string
	sess.Do(func(hist *history.History) {
		notice = chat.Turn(ctx, h.chat, hist, text)
	})
	if notice != "" {
		h.logger.Debugw("event notice", "session_id", sess.ID, "notice", notice)
	}
	return notice
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	})
}

func (h *Handler) index(c *gin.Context) {
	token, err := h.ensureCSRFToken(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	sess := h.currentSession(c)
	// a flash means the redirected post already ran this event
	notice := sess.TakeFlash()
	if notice == "" {
		notice = h.interact(c.Request.Context(), sess, "")
	}
	c.HTML(http.StatusOK, "index.html", pageData{
		Transcript: sess.Snapshot().Transcript(h.title, notice),
		CSRFToken:  token,
		CSRFField:  csrfFormField,
	})
}

func (h *Handler) submitForm(c *gin.Context) {
	sess := h.currentSession(c)
	text := c.PostForm("message")
	if utf8.RuneCountInString(text) > chat.MaxInputChars {
		sess.SetFlash(tooLongNotice)
	} else if notice := h.interact(c.Request.Context(), sess, text); notice != "" {
		sess.SetFlash(notice)
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) getTranscript(c *gin.Context) {
	token, err := h.ensureCSRFToken(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	c.Header(csrfHeaderName, token)
	sess := h.currentSession(c)
	notice := h.interact(c.Request.Context(), sess, "")
	c.JSON(http.StatusOK, sess.Snapshot().Transcript(h.title, notice))
}

type messageRequest struct {
	Text string `json:"text"`
}

func (h *Handler) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if utf8.RuneCountInString(req.Text) > chat.MaxInputChars {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "message too long"})
		return
	}
	sess := h.currentSession(c)
	notice := h.interact(c.Request.Context(), sess, req.Text)
	c.JSON(http.StatusOK, sess.Snapshot().Transcript(h.title, notice))
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, err := c.Cookie(sessionCookieName)
	if err != nil || id == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	clearCookie(c, sessionCookieName, h.secureCookie(c))
	if !h.sessions.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.logger.Infow("session ended", "session_id", id)
	c.Status(http.StatusNoContent)
}

func clearCookie(c *gin.Context, name string, secure bool) {
	setCookie(c, &http.Cookie{
		Name:     name,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}

func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
