package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/behavior-tracker-api/internal/models"
	appErrors "github.com/noah-isme/behavior-tracker-api/pkg/errors"
)

const testSchool = "school-1"

// tokenTable accepts bearer tokens named after a role, e.g. "ADMIN".
type tokenTable struct{}

func (tokenTable) ValidateToken(token string) (*models.JWTClaims, error) {
	role := models.UserRole(strings.ToUpper(token))
	switch role {
	case models.RoleAdmin, models.RoleStaff, models.RoleTeacher:
		return &models.JWTClaims{UserID: "user-" + strings.ToLower(token), Role: role, SchoolID: testSchool}, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []*models.AuditLog
}

func (r *recordingAudit) Create(_ context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, log)
	return nil
}

func buildRouter(h Handlers, audit *recordingAudit) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	cfg := RouterConfig{APIPrefix: "/api/v1", Auth: tokenTable{}}
	if audit != nil {
		cfg.Audit = audit
	}
	RegisterRoutes(router, cfg, h)
	return router
}

func newRequest(method, path, token, body string) *http.Request {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
