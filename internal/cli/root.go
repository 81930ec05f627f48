// Package cli provides the command-line interface for the scalper.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"option-scalper/internal/config"
	"option-scalper/internal/logging"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "scalper",
		Short: "Touch-trading assistant for NSE/NFO option scalping",
		Long: `Scalper is a discretionary trading assistant for the Indian market.

It resolves option strikes from the spot price, slices entries into
child orders, manages bracket/OCO exits engine-side and enforces
day-wise PnL discipline with an automatic trailing square-off.

Use 'scalper run' to start a trading session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/option-scalper)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newInstrumentsCmd(app))
	rootCmd.AddCommand(newRunCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("Option Scalper v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("✓ Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Trading Configuration")
	output.Printf("  Mode:            %s\n", cfg.Trading.Mode)
	output.Printf("  Product:         %s\n", cfg.Trading.Product)
	output.Printf("  Square-off Time: %s IST\n", cfg.Trading.SquareOffTime)
	output.Printf("  Expiry Cutover:  %s IST\n", cfg.Trading.ExpiryCutover)
	output.Println()

	output.Bold("Risk Configuration")
	output.Printf("  Day Stop-Loss:   %s\n", FormatIndianCurrency(cfg.Risk.StopLoss))
	output.Printf("  Day Target:      %s\n", FormatIndianCurrency(cfg.Risk.Target))
	output.Printf("  Move to Cost:    %s\n", FormatIndianCurrency(cfg.Risk.MoveToCost))
	output.Printf("  Trail After:     %s\n", FormatIndianCurrency(cfg.Risk.TrailAfter))
	output.Printf("  Trail By:        %s\n", FormatIndianCurrency(cfg.Risk.TrailBy))
	output.Println()

	output.Bold("Instruments")
	for _, ic := range cfg.Instruments {
		output.Printf("  %-10s %s %s  qty %d x %d legs  %s\n",
			ic.Underlying, ic.Exchange, ic.Symbol, ic.Quantity, ic.Legs, ic.OrderStyle)
	}
	output.Println()

	output.Bold("Broker Credentials")
	if cfg.Credentials.APIKey == "" {
		output.Printf("  API Key:         (not set)\n")
	} else {
		output.Printf("  API Key:         %s\n", logging.MaskSecret(cfg.Credentials.APIKey))
	}
	if cfg.Credentials.AccessToken == "" {
		output.Printf("  Access Token:    (not set)\n")
	} else {
		output.Printf("  Access Token:    %s\n", logging.MaskSecret(cfg.Credentials.AccessToken))
	}
	return nil
}
