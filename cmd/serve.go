package main

import (
	"context"
	"fmt"
	"net/http"

	"lm-go/internal/config"
	"lm-go/internal/controller"
	"lm-go/internal/handler"
	"lm-go/internal/service"
	"lm-go/pkg/mcp"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func (c *CLI) newServeCommand() *cobra.Command {
	var (
		appConfigPath    string
		sourceConfigPath string
		workDir          string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve trained models over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := c.logger

			cfg, err := config.LoadConfig(appConfigPath, sourceConfigPath)
			if err != nil {
				logger.Fatal("Failed to load configuration", zap.Error(err))
			}

			// Override workdir from command line if provided
			if workDir != "" {
				cfg.App.WorkDir = workDir
			}
			if !c.verbose {
				level, err := zapcore.ParseLevel(cfg.App.LogLevel)
				if err != nil {
					logger.Warn("Invalid log level, keeping info", zap.String("log_level", cfg.App.LogLevel))
				} else {
					c.logLevel.SetLevel(level)
				}
			}

			logger.Info("Configuration loaded successfully", zap.Any("config", cfg))

			lmService, err := service.NewLMServiceFromConfig(cfg, logger)
			if err != nil {
				logger.Fatal("Failed to initialize language model service", zap.Error(err))
			}
			logger.Info("Language model service initialized successfully",
				zap.String("model_dir", cfg.ResolvedModelDir()),
				zap.Int("corpora", len(cfg.Source.Corpora)))

			if cfg.App.TrainOnStart {
				// Start building corpus models in a goroutine
				go func() {
					logger.Info("Starting corpus training thread")
					models := lmService.TrainCorpora(context.Background(), cfg, false)
					logger.Info("Corpus training thread completed", zap.Int("models", len(models)))
				}()
			}

			lmController := controller.NewLMController(lmService, cfg, logger)

			var mcpServer *mcp.LMServer
			if cfg.Mcp.Enabled {
				mcpServer = mcp.NewLMServer(lmService, cfg, logger)
			} else {
				logger.Info("MCP server disabled in the configuration")
			}

			router := handler.SetupRouter(lmController, mcpServer, logger)

			logger.Info("Starting server", zap.Int("port", cfg.App.Port))
			if err := http.ListenAndServe(fmt.Sprintf(":%d", cfg.App.Port), router); err != nil {
				logger.Fatal("Failed to start server", zap.Error(err))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceConfigPath, "source", "source.yaml", "Path to source configuration file")
	cmd.Flags().StringVar(&appConfigPath, "app", "app.yaml", "Path to app configuration file")
	cmd.Flags().StringVar(&workDir, "workdir", "", "Working directory to store files")
	return cmd
}
