package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	csrfCookieName = "vetter_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
)

// csrfMiddleware enforces double-submit CSRF protection: the token from the
// form field or header must match the cookie.
func csrfMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requiresCSRFCheck(c.Request.Method) {
			c.Next()
			return
		}
		submitted := c.GetHeader(csrfHeaderName)
		if submitted == "" {
			submitted = c.PostForm(csrfFormField)
		}
		cookieToken, err := c.Cookie(csrfCookieName)
		if err != nil || submitted == "" || cookieToken == "" ||
			subtle.ConstantTimeCompare([]byte(submitted), []byte(cookieToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid csrf token"})
			return
		}
		c.Next()
	}
}

func requiresCSRFCheck(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// ensureCSRFToken returns the request's token, issuing a cookie when absent.
func (h *Handler) ensureCSRFToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(csrfCookieName); err == nil && token != "" {
		return token, nil
	}
	token, err := newCSRFToken()
	if err != nil {
		return "", err
	}
	setCookie(c, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Secure:   h.secureCookie(c),
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
	return token, nil
}
