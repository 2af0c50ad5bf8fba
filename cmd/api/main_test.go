package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-photobook-orderflow/internal/aws"
	"github.com/imrishuroy/go-photobook-orderflow/internal/config"
)

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("PRICING_MODE", "itemized")
	t.Setenv("ORDERS_QUEUE_URL", "https://sqs.us-east-1.amazonaws.com/123/orders")

	cfg, err := config.Load()
	require.NoError(t, err)

	r, err := setupRouter(cfg, &aws.AWSClients{}, zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	routes := map[string]bool{}
	for _, rt := range r.Routes() {
		routes[rt.Method+" "+rt.Path] = true
	}
	for _, want := range []string{
		"POST /orders",
		"GET /orders",
		"GET /orders/:orderId",
		"PATCH /orders/:orderId/status",
		"POST /orders/:orderId/process",
		"POST /uploads/presign",
	} {
		assert.True(t, routes[want], want)
	}
}
