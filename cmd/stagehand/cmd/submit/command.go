// Package submit implements the submit command, which sends the staged
// changes of a session to its backend in a single request.
package submit

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/stagehand/internal/appcontext"
	"github.com/agentstation/stagehand/internal/cmd/cmdutil"
	"github.com/agentstation/stagehand/internal/cmd/output"
	"github.com/agentstation/stagehand/internal/transport"
	"github.com/agentstation/stagehand/pkg/errors"
	"github.com/agentstation/stagehand/pkg/logging"
	"github.com/agentstation/stagehand/pkg/record"
	"github.com/agentstation/stagehand/pkg/submit"
)

type flags struct {
	endpoint string
	token    string
	auth     string
	method   string
	timeout  time.Duration
	dryRun   bool
}

// NewCommand creates the submit command.
func NewCommand(app appcontext.Interface) *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:     "submit SESSION",
		GroupID: "staging",
		Short:   "Send staged changes to the backend",
		Long: `Submit sends the session payload to the backend as one JSON request:

  {"add": [...], "update": [{"id": ..., ...}], "remove": [{"id": ...}]}

On success the session is rebased on the list returned by the backend, or
simply cleared when the response carries no list. On failure the staged
changes are kept, so running submit again sends the same payload.`,
		Example: `  stagehand submit orders
  stagehand submit orders --endpoint https://api.example.com/orders --token $TOKEN
  stagehand submit orders --auth header:X-API-Key --token $KEY --method PATCH
  stagehand submit orders --dry-run -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, app, args[0], f)
		},
	}

	cmd.Flags().StringVar(&f.endpoint, "endpoint", "", "backend URL (default: the session endpoint)")
	cmd.Flags().StringVar(&f.token, "token", "", "credential sent with the request")
	cmd.Flags().StringVar(&f.auth, "auth", "", "auth scheme: bearer, basic, none, header:NAME, query:PARAM")
	cmd.Flags().StringVarP(&f.method, "method", "X", http.MethodPost, "HTTP method")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "request timeout (default from config)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the payload without sending it")
	return cmd
}

func run(cmd *cobra.Command, app appcontext.Interface, name string, f *flags) error {
	ctx := cmd.Context()
	ws, err := cmdutil.Open(ctx, app, name)
	if err != nil {
		return err
	}

	if f.dryRun {
		payload := ws.Engine.Payload()
		return output.Print(cmd.OutOrStdout(), app.OutputFormat(), payload, func() output.Data {
			return output.Payload(payload)
		})
	}
	if !ws.Engine.IsDirty() {
		app.Alerts().Info("Nothing staged in %s", name)
		return nil
	}

	backend, endpoint, err := newBackend(app, ws.Session.Endpoint, f)
	if err != nil {
		return err
	}

	timeout := f.timeout
	if timeout == 0 {
		timeout = app.Remote().Timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx = logging.WithEndpoint(logging.WithSession(logging.WithLogger(ctx, app.Logger()), name), endpoint)
	sent, submitErr := submit.New[string, record.Record](backend, submit.WithLogger(logging.FromContext(ctx))).Submit(ctx, ws.Engine)

	var submitFailed *errors.SubmitError
	if errors.As(submitErr, &submitFailed) {
		// nothing landed, the session keeps its staged changes
		return submitErr
	}

	if ws.Session.Endpoint == "" {
		ws.Session.Endpoint = endpoint
	}
	// save with a fresh context, the request deadline may be spent
	if err := ws.Save(context.WithoutCancel(cmd.Context())); err != nil {
		return err
	}
	if submitErr != nil {
		return submitErr
	}

	app.Alerts().Success("Submitted %s", strings.TrimPrefix(sent.String(), "Payload: "))
	return nil
}

func newBackend(app appcontext.Interface, sessionEndpoint string, f *flags) (*submit.HTTPBackend[string, record.Record], string, error) {
	remote := app.Remote()

	endpoint := firstNonEmpty(f.endpoint, sessionEndpoint, remote.Endpoint)
	if endpoint == "" {
		return nil, "", errors.NewConfigError("submit", "no endpoint: pass --endpoint or set STAGEHAND_ENDPOINT", nil)
	}
	scheme := firstNonEmpty(f.auth, remote.AuthScheme)
	token := firstNonEmpty(f.token, remote.Token)

	opts := []submit.HTTPOption{
		submit.WithMethod(strings.ToUpper(f.method)),
		submit.WithHTTPLogger(app.Logger()),
	}
	if token != "" {
		auth, err := transport.ParseScheme(scheme)
		if err != nil {
			return nil, "", err
		}
		opts = append(opts, submit.WithAuth(auth, token))
	}
	return submit.NewHTTPBackend[string, record.Record](endpoint, opts...), endpoint, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
