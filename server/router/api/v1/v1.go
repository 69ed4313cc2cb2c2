// Package v1 exposes the drill review flow over a JSON HTTP API.
//
// Authentication lives with an external collaborator; handlers scope by the
// user id the caller supplies and never enforce identity themselves.
package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/bordercore/drill/internal/profile"
	"github.com/bordercore/drill/server/middleware"
	"github.com/bordercore/drill/server/service/review"
	"github.com/bordercore/drill/store"
)

type APIV1Service struct {
	Profile *profile.Profile
	Store   *store.Store
	Review  review.Service
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, reviewService review.Service) *APIV1Service {
	return &APIV1Service{
		Profile: profile,
		Store:   store,
		Review:  reviewService,
	}
}

// Register mounts all v1 routes on the given Echo instance.
func (s *APIV1Service) Register(echoServer *echo.Echo) {
	limiter := middleware.NewRateLimiter()

	apiGroup := echoServer.Group("/api/v1")
	apiGroup.Use(echomw.CORS())
	apiGroup.Use(rateLimitMiddleware(limiter))

	apiGroup.POST("/sessions", s.StartSession)
	apiGroup.POST("/sessions/:key/advance", s.AdvanceSession)
	apiGroup.GET("/sessions/:key", s.GetSession)
	apiGroup.POST("/questions", s.CreateQuestion)
	apiGroup.POST("/questions/:uid/response", s.RecordResponse)
	apiGroup.GET("/progress/:tag", s.GetTagProgress)
	apiGroup.POST("/users", s.CreateUser)
	apiGroup.PUT("/users/:id/settings", s.UpdateUserSettings)
}

func rateLimitMiddleware(limiter *middleware.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow(c.RealIP()) {
				return c.JSON(http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
			}
			return next(c)
		}
	}
}

// queryUserID reads the ?user=<id> query parameter.
func queryUserID(c echo.Context) (int32, error) {
	raw := c.QueryParam("user")
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "missing user parameter")
	}
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user parameter")
	}
	return int32(id), nil
}
