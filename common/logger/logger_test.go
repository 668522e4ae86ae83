package logger

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRequestIDFromContexts(t *testing.T) {
	assert.Equal(t, "unknown", RequestID(context.Background()))
	assert.Equal(t, "abc", RequestID(WithRequestID(context.Background(), "abc")))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil).WithContext(WithRequestID(context.Background(), "from-request"))
	assert.Equal(t, "from-request", RequestID(c))

	c.Set(RequestIDKey, "from-gin")
	assert.Equal(t, "from-gin", RequestID(c))
}

func TestInitializeWithWriterTeesToExtraSink(t *testing.T) {
	prev := Log
	defer func() {
		Log = prev
		zap.ReplaceGlobals(prev)
	}()

	var buf bytes.Buffer
	l, err := InitializeWithWriter("production", &buf)
	require.NoError(t, err)
	Info(WithRequestID(context.Background(), "r-1"), "listing created", zap.String("id", "42"))
	_ = l.Sync()

	out := buf.String()
	assert.Contains(t, out, `"msg":"listing created"`)
	assert.Contains(t, out, `"request_id":"r-1"`)
	assert.Contains(t, out, `"id":"42"`)
}
