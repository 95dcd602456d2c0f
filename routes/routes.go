package routes

import (
    "backend/config"
    "backend/controllers"
    "backend/middlewares"
    "backend/services"

    "github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
    r := gin.Default()

    r.GET("/health", func(c *gin.Context) {
        c.JSON(200, gin.H{"status": "ok"})
    })

    // Public auth routes
    auth := r.Group("/auth")
    {
        auth.POST("/register", controllers.Register)
        auth.POST("/login", controllers.Login)
    }

    // Protected meal routes
    resolver := services.NewTokenIdentityResolver(config.DB)
    meals := r.Group("/meals")
    meals.Use(middlewares.AuthMiddleware(resolver))
    {
        meals.POST("", controllers.SubmitMeal)
        meals.GET("", controllers.ListMealLogs)
        meals.GET("/:id", controllers.GetMealLog)
    }

    return r
}
