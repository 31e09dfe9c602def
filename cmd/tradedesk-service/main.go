package main

import (
	"fmt"
	"os"

	"github.com/krasl809/tradedesk/internal/auth"
	"github.com/krasl809/tradedesk/internal/config"
	"github.com/krasl809/tradedesk/internal/db"
	"github.com/krasl809/tradedesk/internal/excel"
	httphandler "github.com/krasl809/tradedesk/internal/http"
	"github.com/krasl809/tradedesk/internal/http/middleware"
	"github.com/krasl809/tradedesk/internal/logger"
	"github.com/krasl809/tradedesk/internal/pdf"
	"github.com/krasl809/tradedesk/internal/repository"
	"github.com/krasl809/tradedesk/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	contractService := service.NewContractService(contractRepo, excel.NewGenerator(), pdf.NewGenerator(), log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	hub := httphandler.NewPresenceHub(log)
	handler := httphandler.NewHandler(contractService, hub, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting tradedesk service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
