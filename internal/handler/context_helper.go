package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/middleware"
	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// schoolScope is the school a request operates on. Tokens bound to a school
// always win; unbound admin tokens may pick one with ?school_id=.
func schoolScope(c *gin.Context) string {
	claims := claimsFromContext(c)
	if claims != nil && claims.SchoolID != "" {
		return claims.SchoolID
	}
	return strings.TrimSpace(c.Query("school_id"))
}

// resolveSchool reconciles a school named in a payload with the caller's scope.
func resolveSchool(c *gin.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	claims := claimsFromContext(c)
	if claims == nil || claims.SchoolID == "" {
		return requested, nil
	}
	if requested != "" && requested != claims.SchoolID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "school outside token scope")
	}
	return claims.SchoolID, nil
}

func logFilterFromQuery(c *gin.Context) models.BehaviorLogFilter {
	return models.BehaviorLogFilter{
		SchoolID:  schoolScope(c),
		Severity:  strings.TrimSpace(c.Query("severity")),
		Category:  strings.TrimSpace(c.Query("category")),
		StudentID: strings.TrimSpace(c.Query("student_id")),
		ClassID:   strings.TrimSpace(c.Query("class_id")),
	}
}

func queryLimit(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
