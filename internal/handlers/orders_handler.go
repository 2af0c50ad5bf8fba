package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-photobook-orderflow/internal/orders"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

type listResponse struct {
	Orders     []orders.Order `json:"orders"`
	NextCursor *string        `json:"nextCursor"`
	Count      int            `json:"count"`
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	log := cfg.Logger

	r.POST("/orders", func(c *gin.Context) {
		var req validation.CreateOrderRequest
		if err := validation.BindJSON(c, &req); err != nil {
			respondError(c, log, err)
			return
		}

		key := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
		res, err := cfg.Orders.Create(c.Request.Context(), req, key)
		if err != nil {
			respondError(c, log, err)
			return
		}

		if res.Replayed {
			c.Header("Idempotent-Replayed", "true")
			c.JSON(http.StatusOK, res.Order)
			return
		}
		c.Header("Location", "/orders/"+res.Order.OrderID)
		c.JSON(http.StatusCreated, res.Order)
	})

	r.GET("/orders/:orderId", func(c *gin.Context) {
		order, err := cfg.Orders.Get(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.PATCH("/orders/:orderId/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindJSON(c, &req); err != nil {
			respondError(c, log, err)
			return
		}

		order, err := cfg.Orders.UpdateStatus(c.Request.Context(), c.Param("orderId"), req)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	r.GET("/orders", func(c *gin.Context) {
		req := validation.ListOrdersRequest{
			CustomerEmail: c.Query("customerEmail"),
			Status:        c.Query("status"),
			Type:          c.Query("type"),
			Cursor:        c.Query("cursor"),
		}
		if raw, ok := c.GetQuery("limit"); ok {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				respondError(c, log, validation.Errors{{Field: "limit", Message: "limit must be an integer", Rule: "type"}})
				return
			}
			req.Limit = &limit
		}

		res, err := cfg.Orders.List(c.Request.Context(), req)
		if err != nil {
			respondError(c, log, err)
			return
		}

		out := listResponse{Orders: res.Orders, Count: len(res.Orders)}
		if out.Orders == nil {
			out.Orders = []orders.Order{}
		}
		if res.NextCursor != "" {
			out.NextCursor = &res.NextCursor
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/orders/:orderId/process", func(c *gin.Context) {
		res, err := cfg.Processor.Process(c.Request.Context(), c.Param("orderId"))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
