package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/white/crm-backend/pkg/crmclient"
	"github.com/white/crm-backend/pkg/logger"
)

const defaultServer = "http://localhost:8080"

// NewRootCmd builds the crmctl command tree. When app is nil the persistent
// pre-run builds one from flags, environment and the session store.
func NewRootCmd(app *App) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("CRMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.SetDefault("server", defaultServer)

	cmd := &cobra.Command{
		Use:           "crmctl",
		Short:         "Command-line client for the CRM",
		Long:          "crmctl manages activities, contacts, deals and the email inbox of a CRM server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" {
				return nil
			}
			if v.GetBool("verbose") {
				if _, err := logger.New("development", "crmctl"); err != nil {
					return err
				}
			}

			a := app
			if a == nil {
				dir, err := sessionDir()
				if err != nil {
					return err
				}
				client := crmclient.New(v.GetString("server"), crmclient.NewKeyringStore(dir))
				a = NewApp(client, os.Stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
			}
			a.JSON = v.GetBool("json")
			cmd.SetContext(WithApp(cmd.Context(), a))
			return nil
		},
	}

	cmd.PersistentFlags().String("server", defaultServer, "CRM server URL (env CRMCTL_SERVER)")
	cmd.PersistentFlags().Bool("json", false, "Output as JSON")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log requests and retries")
	_ = v.BindPFlag("server", cmd.PersistentFlags().Lookup("server"))
	_ = v.BindPFlag("json", cmd.PersistentFlags().Lookup("json"))
	_ = v.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newActivitiesCmd(),
		newInboxCmd(),
		newEmailCmd(),
		newContactsCmd(),
		newDealsCmd(),
		newUsersCmd(),
		newDashboardCmd(),
	)
	return cmd
}

func sessionDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config dir: %w", err)
	}
	return filepath.Join(base, "crmctl"), nil
}

// Execute runs crmctl and exits non-zero on failure.
func Execute() {
	cmd := NewRootCmd(nil)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(exitCode(err))
	}
}

// describe turns client errors into the message a user should see.
func describe(err error) string {
	switch {
	case errors.Is(err, crmclient.ErrUnauthorized), errors.Is(err, crmclient.ErrNoSession):
		return "not logged in, run `crmctl login`"
	}
	var apiErr *crmclient.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return "something went wrong on the server, try again later"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return err.Error()
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, crmclient.ErrUnauthorized), errors.Is(err, crmclient.ErrNoSession):
		return 3
	case errors.Is(err, errAborted):
		return 2
	}
	if _, ok := crmclient.AsRateLimit(err); ok {
		return 4
	}
	return 1
}
