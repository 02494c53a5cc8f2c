package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TheMichaelB/casevault/internal/models"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the encrypted Core and Vault stores",
	Long: `Init generates the shared salt and writes empty Core and Vault stores
encrypted under the given passphrase.`,
	Example: `  casevault init
  CASEVAULT_PASSPHRASE=... casevault init --json`,
	Args: requireArgs(0),
	RunE: runInit,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which stores exist in the configured backend",
	Args:  requireArgs(0),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	st, err := apiClient.Status(ctx)
	if err != nil {
		return err
	}
	if st.Initialized() {
		return models.NewStoreError(models.ErrCodeState, "client", "init",
			errors.New("stores already exist; use status or an unlocking command"))
	}

	pass, err := resolvePassphrase(true)
	if err != nil {
		return err
	}
	if err := apiClient.OpenAll(ctx, pass); err != nil {
		return err
	}
	if err := apiClient.CloseAll(); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"success": true,
			"backend": cfg.Store.Backend,
		})
		return nil
	}
	printSuccess("Created encrypted stores in %s backend", cfg.Store.Backend)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, err := apiClient.Status(cmd.Context())
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{
			"backend":     cfg.Store.Backend,
			"namespace":   cfg.Store.Namespace,
			"initialized": st.Initialized(),
			"stores":      st,
		})
		return nil
	}

	printHeader("casevault status")
	fmt.Printf("  Backend:   %s\n", cfg.Store.Backend)
	if cfg.Store.Namespace != "" {
		fmt.Printf("  Namespace: %s\n", cfg.Store.Namespace)
	}
	fmt.Printf("  Salt:      %s\n", present(st.SaltPresent))
	fmt.Printf("  Core:      %s\n", present(st.CoreExists))
	fmt.Printf("  Vault:     %s\n", present(st.VaultExists))
	if !st.Initialized() {
		printInfo("Run 'casevault init' to create the stores.")
	}
	return nil
}

func present(ok bool) string {
	if ok {
		return "present"
	}
	return "missing"
}

var destroyYes bool

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete both encrypted stores and the salt",
	Long: `Destroy removes the Core and Vault blobs and the shared salt from the
backend. The data cannot be recovered afterwards.`,
	Args: requireArgs(0),
	RunE: runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().BoolVar(&destroyYes, "yes", false, "Confirm deletion")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	if !destroyYes {
		return models.NewStoreError(models.ErrCodeValidation, "client", "destroy",
			errors.New("refusing to delete stores without --yes"))
	}
	if err := apiClient.Destroy(cmd.Context()); err != nil {
		return err
	}

	if jsonOutput {
		printJSON(map[string]interface{}{"success": true})
		return nil
	}
	printWarning("Deleted Core, Vault and salt from %s backend", cfg.Store.Backend)
	return nil
}
