// Package cli implements the crmctl commands on top of pkg/crmclient.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/white/crm-backend/pkg/crmclient"
)

type contextKey string

const appKey contextKey = "app"

// App holds what every command needs: the API client, the streams it talks
// on and the clock it renders against.
type App struct {
	Client *crmclient.Client
	In     *bufio.Reader
	Out    io.Writer
	Err    io.Writer
	JSON   bool

	Now  func() time.Time
	Loc  *time.Location
	Tick time.Duration
}

// NewApp wires an App with the real clock and the local time zone.
func NewApp(client *crmclient.Client, in io.Reader, out, errOut io.Writer) *App {
	return &App{
		Client: client,
		In:     bufio.NewReader(in),
		Out:    out,
		Err:    errOut,
		Now:    time.Now,
		Loc:    time.Local,
		Tick:   time.Second,
	}
}

// WithApp stores app in ctx.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext returns the App stored by WithApp, or nil.
func FromContext(ctx context.Context) *App {
	app, _ := ctx.Value(appKey).(*App)
	return app
}

func appFrom(ctx context.Context) (*App, error) {
	app := FromContext(ctx)
	if app == nil {
		return nil, errors.New("app not initialized")
	}
	return app, nil
}

// printJSON writes v as indented JSON.
func (a *App) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// table returns a tab-aligned writer over Out. Callers must Flush it.
func (a *App) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.Out, 0, 0, 2, ' ', 0)
}

// readLine prompts and reads one line. io.EOF yields an empty answer.
func (a *App) readLine(prompt string) (string, error) {
	fmt.Fprint(a.Err, prompt)
	line, err := a.In.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks before a destructive action unless yes is already set.
func (a *App) confirm(yes bool, what string) error {
	if yes {
		return nil
	}
	answer, err := a.readLine(fmt.Sprintf("%s? [y/N] ", what))
	if err != nil {
		return err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return nil
	}
	return errAborted
}

var errAborted = errors.New("aborted, pass --yes to skip the confirmation")

func (a *App) formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.In(a.Loc).Format("2006-01-02 15:04")
}
