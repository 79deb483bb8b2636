package routes

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"vibelink/handlers"
	"vibelink/middleware"
	"vibelink/ratelimit"
	"vibelink/response"
)

const maxBodyBytes = 10 << 20

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Users       *handlers.UserHandler
	Rooms       *handlers.RoomHandler
	Games       *handlers.GameHandler
	Matches     *handlers.MatchHandler
	Leaderboard *handlers.LeaderboardHandler
	Health      *handlers.HealthHandler
	WS          *handlers.WSHandler
}

type Options struct {
	Tokens     middleware.AccessValidator
	Origins    *middleware.OriginPolicy
	Limiter    ratelimit.Limiter
	Production bool
	Logger     *slog.Logger
}

// SetupRoutes installs the middleware chain and every route. ErrorHandler
// sits inside the request logger so logged statuses include rendered errors.
func SetupRoutes(router *gin.Engine, h Handlers, opts Options) {
	handlers.RegisterValidation()

	router.Use(
		middleware.Recovery(opts.Logger),
		middleware.RequestID(),
		middleware.RequestLogger(opts.Logger),
		middleware.ErrorHandler(opts.Logger),
		middleware.SecurityHeaders(opts.Production),
		middleware.CORS(opts.Origins),
		middleware.BodyLimit(maxBodyBytes),
	)
	if opts.Limiter != nil {
		router.Use(middleware.RateLimit(opts.Limiter, opts.Logger))
	}

	router.GET("/health", h.Health.Health)
	router.GET("/ws", h.WS.Serve)

	requireAuth := middleware.Auth(opts.Tokens)
	optionalAuth := middleware.OptionalAuth(opts.Tokens)

	api := router.Group("/api")
	{
		api.GET("/health", h.Health.Health)

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
		}

		users := api.Group("/users")
		{
			users.GET("", optionalAuth, h.Users.List)
			users.GET("/search", optionalAuth, h.Users.Search)
			users.GET("/me", requireAuth, h.Users.Me)
			users.GET("/:userId", optionalAuth, h.Users.Get)
			users.PATCH("/:userId", requireAuth, h.Users.Update)
			users.DELETE("/:userId", requireAuth, h.Users.Delete)
			users.GET("/:userId/connections", optionalAuth, h.Users.Connections)
			users.POST("/:userId/follow", requireAuth, h.Users.Follow)
			users.DELETE("/:userId/follow", requireAuth, h.Users.Unfollow)
			users.GET("/:userId/stats", requireAuth, h.Users.Stats)
		}

		rooms := api.Group("/rooms", requireAuth)
		{
			rooms.GET("", h.Rooms.List)
			rooms.POST("", h.Rooms.Create)
			rooms.GET("/:roomId", h.Rooms.Get)
			rooms.POST("/:roomId/join", h.Rooms.Join)
			rooms.POST("/:roomId/leave", h.Rooms.Leave)
			rooms.DELETE("/:roomId", h.Rooms.Close)
			rooms.GET("/:roomId/qr", h.Rooms.QRCode)
		}

		games := api.Group("/games", requireAuth)
		{
			games.POST("/session", h.Games.CreateSession)
			games.GET("/session/:sessionId", h.Games.GetSession)
			games.GET("/session/:sessionId/results", h.Games.Results)
			games.POST("/session/:sessionId/advance", h.Games.Advance)
			games.POST("/session/:sessionId/abandon", h.Games.Abandon)
			games.POST("/response", h.Games.SubmitResponse)
		}

		matches := api.Group("/matches", requireAuth)
		{
			matches.POST("", h.Matches.Create)
			matches.GET("", h.Matches.List)
			matches.GET("/:matchId", h.Matches.Get)
		}

		api.GET("/leaderboard", requireAuth, h.Leaderboard.Top)
	}

	router.NoRoute(func(c *gin.Context) {
		response.Fail(c, http.StatusNotFound, response.ErrorBody{
			Message: "Route not found",
			Path:    c.Request.URL.Path,
		})
	})
}
