// Command keeper is the CLI front end for the secrets vault: store, read,
// update, delete, list, clear, reset-password, and agent lifecycle control.
// Grounded on cuemby-warren's cmd/warren/main.go root-command/PersistentFlags
// idiom: one cobra.Command tree, package-level var per command, wired up in
// init().
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arcbound/keeper/internal/config"
	"github.com/arcbound/keeper/internal/keeperd"
	"github.com/arcbound/keeper/internal/metrics"
	"github.com/arcbound/keeper/internal/promptutil"
	"github.com/arcbound/keeper/internal/secrets"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "keeper",
	Short: "Encrypted, device-bound secrets vault",
	Long: `keeper stores credentials in an AES-256-GCM encrypted vault keyed by
a master password and a per-device identity. A companion agent (keeperd)
can hold the unlocked password in memory so repeated commands don't
re-prompt.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("base-dir", "", "override the base directory holding the vault (defaults to ~/.keeper)")

	storeCmd.Flags().StringP("group", "g", "general", "credential group")
	storeCmd.Flags().String("value", "", "secret value (prompted if omitted)")
	storeCmd.Flags().Bool("force", false, "overwrite an existing entry (otherwise an existing entry is an error)")

	readCmd.Flags().StringP("group", "g", "general", "credential group")

	updateCmd.Flags().StringP("group", "g", "general", "credential group")
	updateCmd.Flags().String("value", "", "new secret value (prompted if omitted)")
	updateCmd.Flags().Bool("force", false, "skip the overwrite confirmation")

	deleteCmd.Flags().StringP("group", "g", "general", "credential group")
	deleteCmd.Flags().Bool("force", false, "skip the delete confirmation")

	listCmd.Flags().StringP("group", "g", "", "limit to a single group")
	listCmd.Flags().Bool("keys", false, "show every group/name pair instead of per-group counts")

	clearCmd.Flags().Bool("force", false, "skip the clear confirmation")

	resetPasswordCmd.Flags().Bool("force", false, "skip the reset confirmation")

	rootCmd.AddCommand(storeCmd, readCmd, updateCmd, deleteCmd, listCmd, clearCmd, resetPasswordCmd, agentCmd)
	agentCmd.AddCommand(agentStartCmd, agentStatusCmd, agentStopCmd, agentRestartCmd)
}

// loadConfig applies config.Load()'s environment defaults, then the
// --base-dir flag override if the operator supplied one.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if base, _ := cmd.Flags().GetString("base-dir"); base != "" {
		cfg.BaseDir = base
	}
	return cfg, nil
}

// keeperdBinary locates the keeperd binary alongside the running keeper
// executable, falling back to PATH lookup.
func keeperdBinary() string {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), "keeperd")
		if _, err := os.Stat(sibling); err == nil {
			return sibling
		}
	}
	return "keeperd"
}

func newService(cmd *cobra.Command) (*secrets.Service, config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, err
	}
	svc := secrets.New(cfg, keeperdBinary()).WithMetrics(metrics.New())
	return svc, cfg, nil
}

// banner prints an operator-facing confirmation to stdout, suppressed when
// cfg.QuietBanners is set (invoked as a subprocess, or KEEPER_QUIET is set).
func banner(cfg config.Config, format string, args ...any) {
	if cfg.QuietBanners {
		return
	}
	fmt.Printf(format+"\n", args...)
}

// exitErr maps a secrets sentinel error to a short stderr message and exit
// code 1: print and os.Exit(1), never a stack trace.
func exitErr(err error) error {
	switch {
	case errors.Is(err, secrets.ErrNotFound):
		return fmt.Errorf("not found")
	case errors.Is(err, secrets.ErrAlreadyExists):
		return fmt.Errorf("already exists (use --force to overwrite)")
	case errors.Is(err, secrets.ErrDecryptionFailed):
		return fmt.Errorf("invalid master password or corrupted data")
	case errors.Is(err, secrets.ErrFormat):
		return fmt.Errorf("vault file is unparseable or has an unrecognized version")
	case errors.Is(err, secrets.ErrEmptyInput):
		return fmt.Errorf("empty or invalid input, or operation cancelled")
	default:
		return err
	}
}

var storeCmd = &cobra.Command{
	Use:   "store <name>",
	Short: "Add or replace a credential",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")
		value, _ := cmd.Flags().GetString("value")
		force, _ := cmd.Flags().GetBool("force")

		if value == "" {
			value, err = promptValue()
			if err != nil {
				return err
			}
		}

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		if err := svc.Store(password, group, args[0], value, force); err != nil {
			return exitErr(err)
		}
		banner(cfg, "✓ Stored secret: %s/%s", group, args[0])
		return nil
	},
}

var readCmd = &cobra.Command{
	Use:   "read <name>",
	Short: "Print a credential's value to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		value, err := svc.Read(password, group, args[0])
		if err != nil {
			return exitErr(err)
		}
		fmt.Println(value)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <name>",
	Short: "Replace an existing credential's value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")
		value, _ := cmd.Flags().GetString("value")
		force, _ := cmd.Flags().GetBool("force")

		if value == "" {
			value, err = promptValue()
			if err != nil {
				return err
			}
		}

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		if err := svc.Update(password, group, args[0], value, force); err != nil {
			return exitErr(err)
		}
		banner(cfg, "✓ Updated secret: %s/%s", group, args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove a single credential, or an entire group if name is omitted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")
		force, _ := cmd.Flags().GetBool("force")
		name := ""
		if len(args) == 1 {
			name = args[0]
		}

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		if err := svc.Delete(password, group, name, force); err != nil {
			return exitErr(err)
		}
		if name == "" {
			banner(cfg, "✓ Deleted group: %s", group)
		} else {
			banner(cfg, "✓ Deleted secret: %s/%s", group, name)
		}
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List groups (and, with --keys, every name within them)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		group, _ := cmd.Flags().GetString("group")
		showNames, _ := cmd.Flags().GetBool("keys")

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		counts, entries, err := svc.List(password, group, showNames)
		if err != nil {
			return exitErr(err)
		}
		if showNames {
			for _, e := range entries {
				fmt.Printf("%s/%s\n", e.Group, e.Name)
			}
			return nil
		}
		for _, c := range counts {
			fmt.Printf("%s (%d)\n", c.Group, c.Count)
		}
		banner(cfg, "\nuse --keys to see individual secret names")
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Replace the entire vault with an empty one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		if err := svc.Clear(password, force); err != nil {
			return exitErr(err)
		}
		banner(cfg, "✓ vault cleared")
		return nil
	},
}

var resetPasswordCmd = &cobra.Command{
	Use:   "reset-password",
	Short: "Re-encrypt the vault under a new master password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, cfg, err := newService(cmd)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")

		password, err := svc.AcquirePassword(cfg.MasterPassword)
		if err != nil {
			return err
		}
		if err := svc.ResetPassword(password, force); err != nil {
			return exitErr(err)
		}
		banner(cfg, "✓ master password reset successfully")
		banner(cfg, "please restart the agent for the new password to take effect")
		return nil
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Control the keeperd unlock agent",
}

var agentStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the agent if it isn't already running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return keeperd.Start(cfg.Paths(), keeperdBinary())
	},
}

var agentStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the agent is running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		status, err := keeperd.Status(cfg.Paths())
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}

var agentStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return keeperd.Stop(cfg.Paths())
	},
}

var agentRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the agent",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return keeperd.Restart(cfg.Paths(), keeperdBinary())
	},
}

// promptValue reads a secret value from the terminal without echoing it,
// the same masked-input path used for the master password itself.
func promptValue() (string, error) {
	return promptutil.Password("Value: ")
}
