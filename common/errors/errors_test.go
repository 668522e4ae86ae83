package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromKeepsAppErrors(t *testing.T) {
	nf := NotFound("Product not found")
	wrapped := stderrors.Join(stderrors.New("context"), nf)
	assert.Same(t, nf, From(wrapped))
}

func TestFromWrapsUnknownErrorsWithoutSharing(t *testing.T) {
	a := From(stderrors.New("dial tcp: refused"))
	b := From(stderrors.New("other"))
	assert.Equal(t, http.StatusInternalServerError, a.Code)
	assert.Equal(t, "dial tcp: refused", a.Detail)
	assert.Equal(t, "other", b.Detail)
}

func TestRespondShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/bad", func(c *gin.Context) {
		Respond(c, BadRequest("Invalid WhatsApp number"))
	})
	r.GET("/down", func(c *gin.Context) {
		Respond(c, stderrors.New("connection refused"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(400), body["code"])
	assert.Equal(t, "Invalid WhatsApp number", body["message"])
	_, hasDetail := body["error"]
	assert.False(t, hasDetail)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/down", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body = nil
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["message"])
	assert.Equal(t, "connection refused", body["error"])
}

func TestErrorMiddlewareRendersAttachedError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		_ = c.Error(stderrors.New("exploded"))
	})
	r.GET("/ok", func(c *gin.Context) {
		_ = c.Error(stderrors.New("logged only"))
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"exploded"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
