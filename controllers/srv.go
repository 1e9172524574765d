package controllers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"scilems/lending"
	"scilems/models"
	"scilems/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Srv carries what the handlers need. Each controller embeds it.
type Srv struct {
	Lending      *lending.Service
	Repos        store.Repos
	Log          *zap.Logger
	Loc          *time.Location
	SecureCookie bool
}

func NewSrv(svc *lending.Service, repos store.Repos, loc *time.Location, log *zap.Logger) *Srv {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Srv{Lending: svc, Repos: repos, Log: log, Loc: loc}
}

// --- helpers ---

// clientID is the authenticated account id set by AuthMiddleware.
func clientID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString("clientID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return primitive.NilObjectID, false
	}
	return id, true
}

func isAdmin(c *gin.Context) bool {
	return c.GetString("role") == models.RoleAdmin
}

func objectIDParam(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name, "code": lending.ErrCodeValidation})
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates, the
// latter read in the service time zone. Empty input yields nil.
func (s *Srv) parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.Loc)
	if err != nil {
		return nil, lending.NewValidationError("invalid date " + v)
	}
	return &t, nil
}

// bindOptional binds a JSON body when one was sent. An empty body is fine.
func bindOptional(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": lending.ErrCodeValidation})
		return false
	}
	return true
}
