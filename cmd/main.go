package main

import (
	"context"
	"log"

	"nutrilens/config"
	"nutrilens/controllers"
	"nutrilens/routes"
	"nutrilens/services"
	"nutrilens/utils"
)

func main() {
	cfg := config.Load()

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	var archiver *utils.S3Archiver
	if cfg.S3Bucket != "" {
		archiver, err = utils.NewS3Archiver(context.Background(), cfg.S3Bucket)
		if err != nil {
			log.Printf("S3 archival disabled: %v", err)
			archiver = nil
		}
	}

	hub := services.NewEventHub()
	ocr := services.NewOCRService(cfg.OCREngine)
	llm := services.NewLLMService(cfg.OllamaBaseURL, cfg.OllamaModel)
	nutrition := services.NewNutritionService(
		services.NewOpenFoodFactsClient(),
		services.NewUSDAClient(cfg.USDAAPIKey),
	)
	meals := services.NewMealService(db, ocr, llm, nutrition, cfg.UploadDir, archiver, hub)
	summaries := services.NewSummaryService(db, llm)

	r := routes.SetupRouter(routes.Deps{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Auth:        controllers.NewAuthController(db, cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		Meals:       controllers.NewMealController(meals),
		Nutrition:   controllers.NewNutritionController(summaries),
		Realtime:    controllers.NewRealtimeController(hub),
	})

	if err := r.Run(":" + cfg.ServerPort); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
