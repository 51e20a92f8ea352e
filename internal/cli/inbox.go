package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/white/crm-backend/internal/inbox"
	"github.com/white/crm-backend/internal/models"
	"github.com/white/crm-backend/pkg/crmclient"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Browse email conversations",
		Long:  "Without a subcommand, lists conversations newest first with their unread counts.",
		RunE:  runInboxList,
	}
	cmd.AddCommand(newInboxShowCmd())
	return cmd
}

func runInboxList(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd.Context())
	if err != nil {
		return err
	}
	convs, err := app.Client.Conversations(cmd.Context())
	if err != nil {
		return err
	}
	if app.JSON {
		return app.printJSON(convs)
	}
	if len(convs) == 0 {
		fmt.Fprintln(app.Out, "Inbox is empty")
		return nil
	}

	tw := app.table()
	fmt.Fprintln(tw, "CONVERSATION\tMESSAGES\tUNREAD\tLAST")
	for _, c := range convs {
		last := "-"
		if c.LastMessage != nil {
			last = c.LastMessage.Subject
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", conversationLabel(c), c.Total, c.Unread, last)
	}
	return tw.Flush()
}

func conversationLabel(c inbox.Conversation) string {
	if c.IsBulk {
		return c.Name
	}
	if c.Name != "" && !strings.EqualFold(c.Name, c.Email) {
		return fmt.Sprintf("%s <%s>", c.Name, c.Email)
	}
	return c.Email
}

func newInboxShowCmd() *cobra.Command {
	var markRead bool

	cmd := &cobra.Command{
		Use:   "show <email>",
		Short: "Show the messages exchanged with one address",
		Long:  `Show a conversation by counterpart address, or "bulk" for bulk sends.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			convs, err := app.Client.Conversations(cmd.Context())
			if err != nil {
				return err
			}

			want := models.NormalizeAddress(args[0])
			if strings.EqualFold(args[0], "bulk") {
				want = inbox.BulkKey
			}
			var conv *inbox.Conversation
			for i := range convs {
				if convs[i].Key == want {
					conv = &convs[i]
					break
				}
			}
			if conv == nil {
				return fmt.Errorf("no conversation with %s", args[0])
			}

			if markRead {
				for _, m := range conv.Messages {
					if !m.IsUnread() {
						continue
					}
					if err := app.Client.MarkEmailRead(cmd.Context(), m.ID); err != nil {
						return err
					}
					m.MarkAsRead(app.Now())
				}
			}

			if app.JSON {
				return app.printJSON(conv)
			}
			fmt.Fprintf(app.Out, "%s  (%d messages)\n\n", conversationLabel(*conv), conv.Total)
			for _, m := range conv.Messages {
				arrow := "->"
				if m.Direction == models.EmailDirectionReceive {
					arrow = "<-"
				}
				unread := ""
				if m.IsUnread() {
					unread = " [unread]"
				}
				fmt.Fprintf(app.Out, "%s %s  %s%s  (%s)\n", arrow, app.formatTime(&m.CreatedAt), m.Subject, unread, m.ID)
				fmt.Fprintf(app.Out, "   %s\n\n", strings.ReplaceAll(strings.TrimSpace(m.Message), "\n", "\n   "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "Mark received messages as read")
	return cmd
}

func newEmailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "email",
		Short: "Send, reply to and delete emails",
	}
	cmd.AddCommand(
		newEmailSendCmd(),
		newEmailReplyCmd(false),
		newEmailReplyCmd(true),
		newEmailDeleteCmd(),
	)
	return cmd
}

func splitAddresses(s string) models.AddressList {
	var out models.AddressList
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func newEmailSendCmd() *cobra.Command {
	var to, cc, subject, message, contactID string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send an email; several --to addresses make a bulk send",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			req := crmclient.SendEmail{
				To:        splitAddresses(to),
				CC:        splitAddresses(cc),
				Subject:   subject,
				Message:   message,
				ContactID: contactID,
			}
			if len(req.To) == 0 {
				return errors.New("--to is required")
			}

			record, err := app.Client.SendEmail(cmd.Context(), req)
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(record)
			}
			fmt.Fprintf(app.Out, "Email %s %s\n", record.ID, record.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Recipients, comma separated")
	cmd.Flags().StringVar(&cc, "cc", "", "Copy recipients, comma separated")
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Body")
	cmd.Flags().StringVar(&contactID, "contact", "", "Contact id to file the email under")
	return cmd
}

func newEmailReplyCmd(all bool) *cobra.Command {
	var message string

	use, short := "reply <id>", "Reply to the sender of an email"
	if all {
		use, short = "reply-all <id>", "Reply to the sender and every other recipient"
	}

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if strings.TrimSpace(message) == "" {
				return errors.New("--message is required")
			}

			var record *models.EmailRecord
			if all {
				record, err = app.Client.ReplyAll(cmd.Context(), args[0], message)
			} else {
				record, err = app.Client.Reply(cmd.Context(), args[0], message)
			}
			if err != nil {
				return err
			}
			if app.JSON {
				return app.printJSON(record)
			}
			fmt.Fprintf(app.Out, "Reply %s %s\n", record.ID, record.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "Body")
	return cmd
}

func newEmailDeleteCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := appFrom(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.confirm(yes, "Delete email "+args[0]); err != nil {
				return err
			}
			if err := app.Client.DeleteEmail(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Deleted %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation")
	return cmd
}
