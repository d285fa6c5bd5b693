package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"peer-review-api/config"
	"peer-review-api/controllers"
	"peer-review-api/middleware"
	"peer-review-api/routes"
	"peer-review-api/services"
	"peer-review-api/storage/backend"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	settings := config.Load()
	logFile, _ := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	if settings.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	// Initialize storage
	store, closeStore, err := backend.Open(context.Background(), settings)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open storage")
	}
	defer closeStore()

	notifications := services.NewNotificationService(store, config.NewMailer(settings), settings.AppBaseURL)
	defer notifications.Wait()
	workflow := services.NewReviewWorkflowService(store, notifications, settings.DefaultReviewDays)
	users := services.NewUserService(store)

	// Set Gin mode
	if settings.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	gin.DefaultWriter = config.LogWriter

	// Create Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORSMiddleware(settings.CORSOrigins))

	routes.SetupRoutes(router, routes.Handlers{
		Auth:          controllers.NewAuthController(users, settings.JWTSecret, settings.JWTExpireHours),
		Papers:        controllers.NewPaperController(workflow),
		Deadlines:     controllers.NewDeadlineController(services.NewDeadlineService(store, notifications)),
		Notifications: controllers.NewNotificationController(notifications),
		Hubs:          controllers.NewHubController(services.NewHubService(store, workflow)),
	}, settings.JWTSecret, store)

	entry := logrus.WithFields(logrus.Fields{
		"port":    settings.ServerPort,
		"storage": settings.StorageDriver,
		"mail":    settings.MailProvider,
	})
	if settings.IsProduction() {
		entry.Info("server starting in production mode")
	} else {
		entry.Info("server starting in development mode")
	}

	if err := router.Run(":" + settings.ServerPort); err != nil {
		logrus.WithError(err).Error("failed to start server")
		os.Exit(1)
	}
}
