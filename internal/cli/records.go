package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/white/crm-backend/internal/models"
)

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "contacts",
		Aliases: []string{"contact"},
		Short:   "List and manage contacts",
	}
	cmd.AddCommand(newContactsListCmd(), newContactsAddCmd(), newContactsDeleteCmd())
	return cmd
}

func newContactsListCmd() *cobra.Command {
	var (
		page, limit int
		search      string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List contacts a page at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			res, err := app.Client.ListContacts(cmd.Context(), page, limit, search)
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(res)
			}

			tw := app.table()
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCOMPANY")
			for _, c := range res.Contacts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.FullName(), c.Email, c.Company)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			p := res.Pagination
			fmt.Fprintf(app.Out, "page %d of %d, %d contacts\n", p.Page, p.TotalPages, p.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Page size")
	cmd.Flags().StringVar(&search, "search", "", "Match name, email or company")
	return cmd
}

func newContactsAddCmd() *cobra.Command {
	var c models.Contact

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a contact",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			created, err := app.Client.CreateContact(cmd.Context(), &c)
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(created)
			}
			fmt.Fprintf(app.Out, "Created contact %s\n", created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&c.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&c.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&c.Phone, "phone", "", "Phone number")
	cmd.Flags().StringVar(&c.Company, "company", "", "Company")
	cmd.Flags().StringVar(&c.JobTitle, "job-title", "", "Job title")
	return cmd
}

func newContactsDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a contact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.confirm(yes, "Delete contact "+args[0]); err != nil {
				return err
			}
			if err := app.Client.DeleteContact(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	return cmd
}

func newDealsCmd() *cobra.Command {
	var f struct {
		pipeline, stage, status string
	}

	cmd := &cobra.Command{
		Use:     "deals",
		Aliases: []string{"deal"},
		Short:   "List deals",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			deals, err := app.Client.ListDeals(cmd.Context(), models.DealFilter{
				PipelineID: f.pipeline,
				StageID:    f.stage,
				Status:     models.DealStatus(f.status),
			})
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(deals)
			}

			tw := app.table()
			fmt.Fprintln(tw, "ID\tTITLE\tSTAGE\tVALUE\tPROBABILITY\tSTATUS")
			for _, d := range deals {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f %s\t%s\t%s\n",
					d.ID, d.Title, d.StageID, d.Value, d.Currency, progress(d.Probability), d.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&f.pipeline, "pipeline", "", "Pipeline id")
	cmd.Flags().StringVar(&f.stage, "stage", "", "Stage id")
	cmd.Flags().StringVar(&f.status, "status", "", "open, won or lost")
	cmd.AddCommand(newPipelinesCmd())
	return cmd
}

func newPipelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pipelines",
		Short: "List pipelines and their stages",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			pipelines, err := app.Client.ListPipelines(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(pipelines)
			}
			for _, p := range pipelines {
				def := ""
				if p.IsDefault {
					def = " (default)"
				}
				fmt.Fprintf(app.Out, "%s  %s%s\n", p.ID, p.Name, def)
				for _, s := range p.Stages {
					fmt.Fprintf(app.Out, "  %s  %s  %d%%\n", s.ID, s.Name, s.Probability)
				}
			}
			return nil
		},
	}
}

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			users, err := app.Client.ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(users)
			}
			tw := app.table()
			fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
			}
			return tw.Flush()
		},
	}
	cmd.AddCommand(newUsersDeleteCmd())
	return cmd
}

func newUsersDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove a team member (admin only)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.confirm(yes, "Remove user "+args[0]); err != nil {
				return err
			}
			if err := app.Client.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Removed %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show the landing page summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			d, err := app.Client.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(d)
			}
			fmt.Fprintf(app.Out, "contacts:     %d\n", d.Contacts)
			if d.Deals != nil {
				fmt.Fprintf(app.Out, "open deals:   %d (%.2f, weighted %.2f), %d won\n",
					d.Deals.Open, d.Deals.PipelineValue, d.Deals.WeightedValue, d.Deals.Won)
			}
			if s := d.Activities; s != nil {
				fmt.Fprintf(app.Out, "tasks:        %d/%d done, %d overdue\n", s.Tasks.Completed, s.Tasks.Total, s.Tasks.Overdue)
				fmt.Fprintf(app.Out, "today:        %d meetings, %d calls\n", s.Meetings.Today, s.Calls.Today)
				fmt.Fprintf(app.Out, "tickets:      %d open, %d past SLA\n", s.Tickets.Open, s.Tickets.SLABreach)
			}
			fmt.Fprintf(app.Out, "unread email: %d\n", d.UnreadEmail)
			return nil
		},
	}
}
