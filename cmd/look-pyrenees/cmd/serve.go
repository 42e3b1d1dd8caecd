package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/look-pyrenees/internal/api/http"
	"github.com/i474232898/look-pyrenees/internal/pipeline"
	"github.com/i474232898/look-pyrenees/internal/scheduler"
	"github.com/i474232898/look-pyrenees/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline on a schedule and serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		zoneArg, _ := cmd.Flags().GetString("zone")

		svc, err := newService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		zones, err := svc.ResolveZones(zoneArg)
		if err != nil {
			return err
		}

		// In-memory run history with configured retention.
		runs := store.NewRunStore[pipeline.Report](cfg.RunHistory, cfg.RunMaxAge)
		runner := pipeline.NewRunner(svc, runs, cfg.RunTimeout)

		sched := scheduler.New(zones, cfg.ScheduleCron, runner, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()

		app := newApp()
		httpapi.RegisterRoutes(app, runner, svc.Local())

		go func() {
			if err := app.Listen(":" + cfg.Port); err != nil {
				log.Error("fiber server stopped", "error", err)
			}
		}()
		log.Info("serving", "port", cfg.Port, "cron", cfg.ScheduleCron, "zones", zones)

		// Wait for termination signal
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
		runner.Wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringP("zone", "z", pipeline.AllZones, "zones processed by scheduled runs")
	rootCmd.AddCommand(serveCmd)
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "look-pyrenees",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          time.Minute,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())
	return app
}
