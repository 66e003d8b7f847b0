package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:          "analysis-portal",
		Short:        "Analysis request portal API server",
		SilenceUsage: true,
		RunE:         cmdServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		RunE:  cmdServe,
	}
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE:  cmdMigrate,
	}
	seedAdminCmd = &cobra.Command{
		Use:   "seed-admin",
		Short: "Create the configured reviewer account if it does not exist",
		RunE:  cmdSeedAdmin,
	}

	confDir string
	address string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&confDir, "config-dir", ".", "directory containing config.yaml")
	flags.StringVar(&address, "address", ":8080", "listen address")
	_ = viper.BindPFlag("config_dir", flags.Lookup("config-dir"))
	_ = viper.BindPFlag("server.address", flags.Lookup("address"))
	_ = viper.BindEnv("config_dir", "CONFIG_DIR")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedAdminCmd)
}

// @title Analysis Portal API
// @version 1.0
// @description Submit files for analysis and receive results from reviewers.
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
