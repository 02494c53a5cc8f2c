package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/casevault/internal/client"
	"github.com/TheMichaelB/casevault/internal/config"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/models"
)

var (
	cfgFile        string
	jsonOutput     bool
	passphrase     string
	passphraseFile string

	cfg       *config.Config
	logger    *events.Logger
	apiClient *client.Client
)

var rootCmd = &cobra.Command{
	Use:   "casevault",
	Short: "Encrypted student case files",
	Long: `casevault keeps student records (Core) and documents (Vault) in two
passphrase-encrypted SQLite databases persisted to a blob store.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Config file (default: ./casevault.yaml or ~/.config/casevault/casevault.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false,
		"Print machine-readable JSON")
	rootCmd.PersistentFlags().StringVar(&passphrase, "passphrase", "",
		"Store passphrase (default: $CASEVAULT_PASSPHRASE, else prompt)")
	rootCmd.PersistentFlags().StringVar(&passphraseFile, "passphrase-file", "",
		"Read the passphrase from a file only the owner can access")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	logger, err = events.NewLogger(&cfg.Log)
	if err != nil {
		return err
	}
	events.SetDefault(logger)

	apiClient, err = client.New(cmd.Context(), cfg, logger)
	return err
}

// withStores unlocks both stores for the duration of fn.
func withStores(ctx context.Context, fn func(ctx context.Context) error) error {
	pass, err := resolvePassphrase(false)
	if err != nil {
		return err
	}
	if err := apiClient.OpenAll(ctx, pass); err != nil {
		return err
	}
	defer apiClient.CloseAll()

	return fn(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if apiClient != nil {
		if cerr := apiClient.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		if jsonOutput {
			printJSON(map[string]interface{}{
				"success": false,
				"code":    models.Code(err),
				"error":   err.Error(),
			})
		} else {
			printError("%v", err)
		}
		stop()
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch models.Code(err) {
	case models.ErrCodeAuth:
		return 3
	case models.ErrCodeThrottled:
		return 4
	case models.ErrCodeValidation, models.ErrCodeNotFound:
		return 2
	default:
		return 1
	}
}

func requireArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}
