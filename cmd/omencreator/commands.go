package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pydea-rs/omen-creator-panel/internal/app"
	"github.com/pydea-rs/omen-creator-panel/internal/config"
	"github.com/pydea-rs/omen-creator-panel/internal/domain"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the interactive market form (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd.Context(), "tui")
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the headless HTTP and websocket API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMode(cmd.Context(), "serve")
	},
}

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List the known deployments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		active, _ := cfg.Endpoint()
		for _, ep := range domain.KnownEndpoints {
			marker := " "
			if ep == active {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-24s %s\n", marker, ep.Name, ep.BaseURL)
		}
		return nil
	},
}

var (
	loginUser string
	loginPass string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the selected endpoint and keep the session",
	Long: `Log in to the selected endpoint. The password is read from --password,
then OMENCREATOR_PASSWORD, then prompted for.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, pass, err := credentials(cmd)
		if err != nil {
			return err
		}
		return exec(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			if err := app.Login(ctx, deps, user, pass); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in to %s\n", deps.Workspace.Endpoint().Name)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session of the selected endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exec(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			if err := app.Logout(ctx, deps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged out of %s\n", deps.Workspace.Endpoint().Name)
			return nil
		})
	},
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Print the category tree; only leaves can be chosen",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exec(cmd.Context(), func(_ context.Context, deps *app.Dependencies) error {
			return app.PrintCategories(cmd.OutOrStdout(), deps)
		})
	},
}

var oraclesCmd = &cobra.Command{
	Use:   "oracles",
	Short: "List the available oracles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exec(cmd.Context(), func(_ context.Context, deps *app.Dependencies) error {
			return app.PrintOracles(cmd.OutOrStdout(), deps)
		})
	},
}

var (
	createDraft string
	createImage string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a market from a TOML draft file",
	Example: `  omencreator create --draft derby.toml

  # derby.toml
  title    = "Who wins the derby?"
  category = 112
  deadline = 2030-05-01T18:00:00Z
  outcomes = ["Home", "Away", "Draw"]
  image    = "derby.png"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		df, err := app.LoadDraft(createDraft)
		if err != nil {
			return err
		}
		if createImage != "" {
			df.Image, err = filepath.Abs(createImage)
			if err != nil {
				return err
			}
		}
		return exec(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			res, err := app.Create(ctx, deps, df)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, m := range res.Messages {
				fmt.Fprintln(out, m)
			}
			if !res.Success {
				return fmt.Errorf("market was not created (submission %s)", res.ID)
			}
			fmt.Fprintf(out, "submission %s\n", res.ID)
			return nil
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration with secrets redacted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := config.RedactedConfig(cfg)
		return toml.NewEncoder(cmd.OutOrStdout()).Encode(redacted)
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently finished submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return exec(cmd.Context(), func(ctx context.Context, deps *app.Dependencies) error {
			return app.PrintHistory(ctx, cmd.OutOrStdout(), deps, historyLimit)
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "username", "u", "", "account username")
	loginCmd.Flags().StringVarP(&loginPass, "password", "p", "", "account password")

	createCmd.Flags().StringVarP(&createDraft, "draft", "d", "", "path to the draft TOML file")
	createCmd.Flags().StringVarP(&createImage, "image", "i", "", "image file (overrides the draft's image)")
	_ = createCmd.MarkFlagRequired("draft")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
}

// credentials resolves the login flags, prompting on a terminal for what is
// missing.
func credentials(cmd *cobra.Command) (string, string, error) {
	user, pass := loginUser, loginPass
	if pass == "" {
		pass = os.Getenv("OMENCREATOR_PASSWORD")
	}
	in := bufio.NewReader(cmd.InOrStdin())
	if user == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		user = strings.TrimSpace(line)
	}
	if pass == "" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return "", "", fmt.Errorf("no password: use --password or OMENCREATOR_PASSWORD")
		}
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", "", fmt.Errorf("read password: %w", err)
		}
		pass = string(b)
	}
	return user, pass, nil
}
