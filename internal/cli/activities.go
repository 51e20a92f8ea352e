package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/white/crm-backend/internal/activityform"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/crmclient"
)

func newActivitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "activities",
		Aliases: []string{"activity", "act"},
		Short:   "List and manage activities",
	}
	cmd.AddCommand(
		newActivitiesListCmd(),
		newActivitiesShowCmd(),
		newActivitiesStatsCmd(),
		newActivitiesCreateCmd(),
		newActivitiesEditCmd(),
		newActivitiesCompleteCmd(),
		newActivitiesCheckCmd(),
		newActivitiesEscalateCmd(),
		newActivitiesSnoozeCmd(),
		newActivitiesDeleteCmd(),
	)
	return cmd
}

func newActivitiesListCmd() *cobra.Command {
	var (
		typ        string
		open, done bool
		assignedTo string
		contactID  string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if open && done {
				return errors.New("--open and --done are mutually exclusive")
			}

			opts := crmclient.ActivityListOptions{
				Type:       models.ActivityType(typ),
				AssignedTo: assignedTo,
				ContactID:  contactID,
				Limit:      limit,
			}
			if open || done {
				completed := done
				opts.IsCompleted = &completed
			}

			activities, err := app.Client.ListActivities(cmd.Context(), opts)
			if err != nil {
				return err
			}

			now := app.Now()
			views := make([]models.ActivityView, 0, len(activities))
			for _, a := range activities {
				views = append(views, models.BuildView(a, now))
			}
			if app.JSON {
				return app.printJSON(views)
			}
			if len(views) == 0 {
				fmt.Fprintln(app.Out, "No activities")
				return nil
			}

			tw := app.table()
			fmt.Fprintln(tw, "ID\tSUBJECT\tWHEN\tPROGRESS\tBADGES")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					v.Activity.ID,
					v.Activity.Subject,
					app.formatTime(when(v.Activity)),
					progress(v.Progress),
					strings.Join(v.Badges, ","))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&typ, "type", "t", "", "Only this activity type")
	cmd.Flags().BoolVar(&open, "open", false, "Only open activities")
	cmd.Flags().BoolVar(&done, "done", false, "Only completed activities")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "Only activities assigned to this user id")
	cmd.Flags().StringVar(&contactID, "contact", "", "Only activities for this contact id")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of activities")
	return cmd
}

func when(a *models.Activity) *time.Time {
	if a.DueDate != nil {
		return a.DueDate
	}
	return a.ScheduledAt
}

func progress(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *p)
}

func newActivitiesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := app.Client.GetActivity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printActivity(app, a)
		},
	}
}

func printActivity(app *App, a *models.Activity) error {
	view := models.BuildView(a, app.Now())
	if app.JSON {
		return app.printJSON(view)
	}

	fmt.Fprintf(app.Out, "%s  %s\n", a.ID, a.Subject)
	fmt.Fprintf(app.Out, "  badges:   %s\n", strings.Join(view.Badges, ", "))
	fmt.Fprintf(app.Out, "  when:     %s\n", app.formatTime(when(a)))
	if view.Progress != nil {
		fmt.Fprintf(app.Out, "  progress: %d%%\n", *view.Progress)
	}
	if view.Duration != "" {
		fmt.Fprintf(app.Out, "  duration: %s\n", view.Duration)
	}
	if a.Description != "" {
		fmt.Fprintf(app.Out, "  %s\n", a.Description)
	}
	if task := a.Task(); task != nil {
		for _, item := range task.Checklist {
			mark := " "
			if item.Completed {
				mark = "x"
			}
			fmt.Fprintf(app.Out, "  [%s] %s  (%s)\n", mark, item.Text, item.ID)
		}
	}
	if meeting := a.Meeting(); meeting != nil {
		for _, att := range meeting.Attendees {
			fmt.Fprintf(app.Out, "  attendee: %s %s\n", att.Email, att.Status)
		}
	}
	return nil
}

func newActivitiesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show activity counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			stats, err := app.Client.ActivityStats(cmd.Context())
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(stats)
			}
			fmt.Fprintf(app.Out, "tasks:    %d/%d done (%.0f%%), %d overdue\n",
				stats.Tasks.Completed, stats.Tasks.Total, stats.Tasks.CompletionRate, stats.Tasks.Overdue)
			fmt.Fprintf(app.Out, "meetings: %d today\n", stats.Meetings.Today)
			fmt.Fprintf(app.Out, "calls:    %d today\n", stats.Calls.Today)
			fmt.Fprintf(app.Out, "tickets:  %d open, %d past SLA\n", stats.Tickets.Open, stats.Tickets.SLABreach)
			return nil
		},
	}
}

// draftFlags are the inputs shared by create and edit.
type draftFlags struct {
	typ       string
	subject   string
	sets      []string
	checks    []string
	attendees []string
}

func (d *draftFlags) register(cmd *cobra.Command, withType bool) {
	if withType {
		cmd.Flags().StringVarP(&d.typ, "type", "t", "", "Activity type (task, call, meeting, ...)")
	}
	cmd.Flags().StringVarP(&d.subject, "subject", "s", "", "Subject")
	cmd.Flags().StringArrayVar(&d.sets, "set", nil, "Field value as key=value, date-times as 2006-01-02T15:04 (repeatable)")
	cmd.Flags().StringArrayVar(&d.checks, "check", nil, "Add a checklist item to a task (repeatable)")
	cmd.Flags().StringArrayVar(&d.attendees, "attendee", nil, "Add a meeting attendee as email or email:name (repeatable)")
}

func (d *draftFlags) apply(f *activityform.Form) error {
	if d.typ != "" {
		if err := f.SetType(models.ActivityType(d.typ)); err != nil {
			return err
		}
	}
	if d.subject != "" {
		if err := f.Set("subject", d.subject); err != nil {
			return err
		}
	}
	for _, kv := range d.sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		if err := f.Set(strings.TrimSpace(key), value); err != nil {
			return err
		}
	}
	for _, text := range d.checks {
		if _, err := f.AddChecklistItem(text); err != nil {
			return err
		}
	}
	for _, att := range d.attendees {
		email, name, _ := strings.Cut(att, ":")
		if _, err := f.AddAttendee(email, name); err != nil {
			return err
		}
	}
	return nil
}

// submit runs one form submission through send. The form keeps the draft
// when send fails.
func submit(ctx context.Context, f *activityform.Form, send func(context.Context, map[string]interface{}) (*models.Activity, error)) (*models.Activity, error) {
	body, err := f.Body()
	if err != nil {
		return nil, err
	}
	if err := f.BeginSubmit(); err != nil {
		return nil, err
	}
	a, err := send(ctx, body)
	f.Finish(err)
	return a, err
}

func newActivitiesCreateCmd() *cobra.Command {
	var d draftFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an activity",
		Example: `  crmctl activities create -t task -s "Send proposal" --set due_date=2026-05-02T17:00 --check "draft" --check "review"
  crmctl activities create -t meeting -s "Kickoff" --set scheduled_at=2026-05-04T10:00 --attendee ana@example.com:Ana`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}

			f := activityform.New(app.Loc)
			if err := f.Open(); err != nil {
				return err
			}
			if err := d.apply(f); err != nil {
				return err
			}

			a, err := submit(cmd.Context(), f, func(ctx context.Context, body map[string]interface{}) (*models.Activity, error) {
				return app.Client.CreateActivity(ctx, body)
			})
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(a)
			}
			fmt.Fprintf(app.Out, "Created %s %s\n", a.Type, a.ID)
			return nil
		},
	}
	d.register(cmd, true)
	return cmd
}

func newActivitiesEditCmd() *cobra.Command {
	var d draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}

			current, err := app.Client.GetActivity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f := activityform.New(app.Loc)
			if err := f.Edit(current); err != nil {
				return err
			}
			if err := d.apply(f); err != nil {
				return err
			}

			a, err := submit(cmd.Context(), f, func(ctx context.Context, body map[string]interface{}) (*models.Activity, error) {
				return app.Client.UpdateActivity(ctx, f.ActivityID(), body)
			})
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(a)
			}
			fmt.Fprintf(app.Out, "Updated %s\n", a.ID)
			return nil
		},
	}
	d.register(cmd, false)
	return cmd
}

func newActivitiesCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "complete <id>",
		Aliases: []string{"done"},
		Short:   "Mark an activity as completed",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, next, err := app.Client.CompleteActivity(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(map[string]interface{}{"activity": a, "next_activity_id": next})
			}
			fmt.Fprintf(app.Out, "Completed %s\n", a.ID)
			if next != "" {
				fmt.Fprintf(app.Out, "Next occurrence: %s\n", next)
			}
			return nil
		},
	}
}

func newActivitiesCheckCmd() *cobra.Command {
	var undo bool

	cmd := &cobra.Command{
		Use:   "check <id> <item-id>",
		Short: "Tick or untick a checklist item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := app.Client.ToggleChecklistItem(cmd.Context(), args[0], args[1], !undo)
			if err != nil {
				return err
			}
			return printActivity(app, a)
		},
	}
	cmd.Flags().BoolVar(&undo, "undo", false, "Untick the item instead")
	return cmd
}

func newActivitiesEscalateCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "escalate <id>",
		Short: "Escalate a ticket, or raise another activity to urgent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			a, err := app.Client.EscalateActivity(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}
			return printActivity(app, a)
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "Why it is escalated")
	return cmd
}

func newActivitiesSnoozeCmd() *cobra.Command {
	var (
		until string
		delay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "snooze <id>",
		Short: "Push an activity's due date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}

			var t time.Time
			switch {
			case until != "" && delay != 0:
				return errors.New("--until and --for are mutually exclusive")
			case until != "":
				if t, err = time.ParseInLocation(activityform.LocalLayout, until, app.Loc); err != nil {
					return fmt.Errorf("invalid --until, want %s", activityform.LocalLayout)
				}
			case delay > 0:
				t = app.Now().Add(delay)
			default:
				return errors.New("one of --until or --for is required")
			}

			a, err := app.Client.SnoozeActivity(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(a)
			}
			fmt.Fprintf(app.Out, "Snoozed %s until %s\n", a.ID, app.formatTime(when(a)))
			return nil
		},
	}
	cmd.Flags().StringVar(&until, "until", "", "New due date-time, 2006-01-02T15:04")
	cmd.Flags().DurationVar(&delay, "for", 0, "Snooze for a duration, e.g. 2h")
	return cmd
}

func newActivitiesDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an activity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.confirm(yes, "Delete activity "+args[0]); err != nil {
				return err
			}
			if err := app.Client.DeleteActivity(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	return cmd
}
