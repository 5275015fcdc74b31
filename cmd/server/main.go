// @title           Insurance Claims API
// @version         1.0
// @description     Claim submission, document attachment and staff review for an insurance claims portal.
// @BasePath        /api
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in              header
// @name            Authorization
// @description     Format: Bearer <token>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/aldoetobex/claims-backend/internal/config"
	"github.com/aldoetobex/claims-backend/pkg/database"

	// Docs
	_ "github.com/aldoetobex/claims-backend/docs"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "claims-server",
	Short: "Insurance claims API",
	Long: `Claims API server and maintenance commands.

Configuration comes from the environment (and a .env file when present):
DATABASE_URL, PORT, JWT_SECRET, REDIS_URL, STORAGE_BACKEND and friends.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, createStaffCmd, upsertPolicyCmd)
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDev() {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// setup loads config, installs the default logger and opens the database.
func setup() (*config.Config, *slog.Logger, *gorm.DB, error) {
	cfg := config.LoadConfig()
	log := newLogger(cfg)
	slog.SetDefault(log)

	db, err := database.Init(cfg.Database.URL, database.Options{
		MaxOpenConns: cfg.Database.MaxConns,
		MaxIdleConns: cfg.Database.MaxIdle,
		LogQueries:   cfg.Database.LogQueries,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, log, db, nil
}
