package api

import (
	"github.com/gin-gonic/gin"

	"smokewatch-backend/internal/alert"
	"smokewatch-backend/internal/apperr"
	"smokewatch-backend/internal/mw"
	"smokewatch-backend/internal/reconcile"
	"smokewatch-backend/internal/store"
	"smokewatch-backend/internal/vendorapi"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	reconciler   *reconcile.Reconciler
	store        store.Store
	vendor       *vendorapi.Client
	dispatcher   *alert.Dispatcher
	ingestSecret string
}

// NewHandler creates a new API handler.
func NewHandler(r *reconcile.Reconciler, s store.Store, v *vendorapi.Client, d *alert.Dispatcher, ingestSecret string) *Handler {
	return &Handler{
		reconciler:   r,
		store:        s,
		vendor:       v,
		dispatcher:   d,
		ingestSecret: ingestSecret,
	}
}

// userID returns the caller identity placed in the context by the mw.UserID
// middleware.
func userID(c *gin.Context) string {
	return c.GetString(mw.UserIDKey)
}

// abortWithError writes the error taxonomy mapping for err and stops the
// chain.
func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"detail": apperr.Detail(err)})
}
