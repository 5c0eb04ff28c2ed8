package handlers

import (
	"net/http"

	"resto_platform_backend/internal/middleware"
	"resto_platform_backend/internal/models"
	"resto_platform_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// pathID parses one int64 path parameter, responding with 400 on failure.
// The bool result reports whether the handler should continue.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := utils.StrToInt64(c.Param(name))
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeBadRequest, "Invalid "+name+" parameter", c.Param(name)))
		return 0, false
	}
	return id, true
}

// principal extracts the authenticated principal, responding with 401 when
// the middleware did not run.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Authentication required", ""))
		return models.Principal{}, false
	}
	return p, true
}
