package middleware

import (
	"net/http"

	"github.com/drims/backend/internal/domain/relief"
	"github.com/drims/backend/internal/infrastructure/logger"
	"github.com/drims/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Context keys and headers for the acting user. Authentication happens
// upstream; these headers are trusted as given.
const (
	ActorKey         = "actor"
	UserIDKey        = "user_id"
	UserIDHeader     = "X-User-ID"
	UserNameHeader   = "X-User-Name"
	UserEmailHeader  = "X-User-Email"
	maxHeaderNameLen = 200
)

// Actor reads the acting user from the request headers and stores it on the
// gin context and the request logger. Requests without a valid user ID pass
// through anonymously; RequireActor rejects them where a user is needed.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.Next()
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.Next()
			return
		}

		holder := relief.LockHolder{
			UserID: userID,
			Name:   truncate(c.GetHeader(UserNameHeader)),
			Email:  truncate(c.GetHeader(UserEmailHeader)),
		}
		c.Set(ActorKey, holder)
		c.Set(UserIDKey, userID.String())

		ctx := logger.WithUserID(c.Request.Context(), userID.String())
		reqLogger := logger.GetGinLogger(c).With(zap.String("user_id", userID.String()))
		c.Set("logger", reqLogger)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		c.Next()
	}
}

// RequireActor aborts with 401 unless Actor found a user.
func RequireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetActor(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnauthorized,
				"A valid "+UserIDHeader+" header is required",
				getRequestID(c),
			))
			return
		}
		c.Next()
	}
}

// GetActor returns the user stored by Actor.
func GetActor(c *gin.Context) (relief.LockHolder, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return relief.LockHolder{}, false
	}
	holder, ok := v.(relief.LockHolder)
	return holder, ok
}

func truncate(s string) string {
	if len(s) > maxHeaderNameLen {
		return s[:maxHeaderNameLen]
	}
	return s
}
