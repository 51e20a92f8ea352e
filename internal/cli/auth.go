package cli

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/white/crm-backend/pkg/crmclient"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the CRM server",
		Long: "Log in and keep the session in the system keyring. After too many failed " +
			"attempts the server locks the account for a while; login waits out the " +
			"lockout and then asks again.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if email == "" {
				if email, err = app.readLine("Email: "); err != nil {
					return err
				}
			}
			prompted := password == ""

			for {
				if prompted {
					if password, err = app.readLine("Password: "); err != nil {
						return err
					}
				}
				if email == "" || password == "" {
					return errors.New("email and password are required")
				}

				sess, err := app.Client.Login(ctx, email, password)
				if err == nil {
					if app.JSON {
						return app.printJSON(sess.User)
					}
					fmt.Fprintf(app.Out, "Logged in as %s (%s)\n", sess.User.Name, sess.User.Email)
					return nil
				}

				rl, limited := crmclient.AsRateLimit(err)
				if !limited {
					return err
				}
				if err := countdown(ctx, app, rl); err != nil {
					return err
				}
				if !prompted {
					return fmt.Errorf("login was locked: %w", rl)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

// countdown blocks until the lockout in rl has passed, rewriting the remaining
// seconds on one line every tick.
func countdown(ctx context.Context, app *App, rl *crmclient.RateLimitError) error {
	msg := rl.Message
	if msg == "" {
		msg = "Too many login attempts"
	}
	if rl.Limit > 0 {
		msg = fmt.Sprintf("%s (%d of %d)", msg, rl.Current, rl.Limit)
	}

	ticker := time.NewTicker(app.Tick)
	defer ticker.Stop()

	for {
		left := rl.Remaining(app.Now())
		if left <= 0 {
			fmt.Fprintf(app.Err, "\r%s. You can try again now.   \n", msg)
			return nil
		}
		fmt.Fprintf(app.Err, "\r%s. Try again in %ds ", msg, int(math.Ceil(left.Seconds())))

		select {
		case <-ctx.Done():
			fmt.Fprintln(app.Err)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the stored tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.Client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(app.Out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := app.Client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(profile)
			}
			fmt.Fprintf(app.Out, "%s <%s>\nrole: %s\ntenant: %s\n",
				profile.Name, profile.Email, profile.Role, profile.TenantID)
			return nil
		},
	}
}
