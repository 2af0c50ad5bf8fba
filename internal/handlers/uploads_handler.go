package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imrishuroy/go-photobook-orderflow/internal/uploads"
	"github.com/imrishuroy/go-photobook-orderflow/internal/validation"
)

// RegisterUploadRoutes registers the presigned upload endpoint.
func RegisterUploadRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.POST("/uploads/presign", func(c *gin.Context) {
		var req uploads.PresignRequest
		if err := validation.BindJSON(c, &req); err != nil {
			respondError(c, cfg.Logger, err)
			return
		}
		// anonymous uploads get a fresh owner the client must reuse
		if req.OwnerID == "" {
			req.OwnerID = uuid.NewString()
		}

		res, err := cfg.Uploads.Presign(c.Request.Context(), req)
		if err != nil {
			respondError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, res)
	})
}
