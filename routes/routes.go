package routes

import (
	"time"

	"nutrilens/controllers"
	"nutrilens/middlewares"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps collects everything the router needs; main wires it up.
type Deps struct {
	JWTSecret   string
	CORSOrigins []string

	Auth      *controllers.AuthController
	Meals     *controllers.MealController
	Nutrition *controllers.NutritionController
	Realtime  *controllers.RealtimeController
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.Default()

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(deps.CORSOrigins) == 1 && deps.CORSOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = deps.CORSOrigins
	}
	r.Use(cors.New(corsCfg))

	// Public auth routes
	auth := r.Group("/auth")
	{
		auth.POST("/register", deps.Auth.Register)
		auth.POST("/login", deps.Auth.Login)
		auth.POST("/refresh", deps.Auth.Refresh)
	}

	authed := r.Group("/")
	authed.Use(middlewares.AuthMiddleware(deps.JWTSecret))
	{
		authed.GET("/auth/me", deps.Auth.Me)

		meals := authed.Group("/meals")
		{
			meals.POST("/upload", deps.Meals.Upload)
			meals.POST("", deps.Meals.Create)
			meals.GET("", deps.Meals.List)
			meals.GET("/:id", deps.Meals.Get)
			meals.DELETE("/:id", deps.Meals.Delete)
		}

		nutrition := authed.Group("/nutrition")
		{
			nutrition.GET("/daily", deps.Nutrition.Daily)
			nutrition.GET("/summary", deps.Nutrition.Summary)
			nutrition.GET("/insights", deps.Nutrition.Insights)
		}

		authed.GET("/ws/events", deps.Realtime.EventsWS)
	}

	return r
}
