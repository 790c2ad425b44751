package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wjszlachta/ig-rest-client/internal/api"
	"github.com/wjszlachta/ig-rest-client/internal/auth"
	"github.com/wjszlachta/ig-rest-client/internal/config"
	"github.com/wjszlachta/ig-rest-client/internal/logging"
	"github.com/wjszlachta/ig-rest-client/internal/transport"
)

var (
	version = "0.1.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "igrest",
		Short: "Call the IG REST trading API with an authenticated session",
		Long: `A CLI for the IG REST trading API.

Logs in on first use, switches to the configured account and keeps the
session credentials fresh for every call.`,
		Version:       version,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // We handle error output ourselves
	}

	config.SetupFlags(rootCmd, v)

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete} {
		rootCmd.AddCommand(newVerbCommand(v, method))
	}
	rootCmd.AddCommand(
		newSessionCommand(v),
		newSwitchAccountCommand(v),
		newLogOutCommand(v),
	)

	return rootCmd
}

// session bundles a client with the resources that must be released after use
type session struct {
	client *api.Client
	close  func()
}

func openSession(v *viper.Viper) (*session, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	var logger logging.Logger = logging.Nop()
	closeLog := func() {}
	switch {
	case cfg.LogFile != "":
		fileLogger, err := logging.Open(cfg.LogFile, cfg.Verbose)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger = fileLogger
		closeLog = func() { fileLogger.Close() }
	case cfg.Verbose:
		logger = logging.New(os.Stderr, true)
	}

	tr, err := transport.New(&http.Client{Timeout: cfg.Timeout}, cfg.APIURL, cfg.APIKey, cfg.Timeout)
	if err != nil {
		closeLog()
		return nil, err
	}

	// Create authenticator based on the configured login protocol
	var authenticator auth.Authenticator
	if cfg.UseOAuth() {
		authenticator = auth.NewOAuthAuthenticator(tr, cfg.Username, cfg.Password, auth.WithLogger(logger))
	} else {
		authenticator = auth.NewCSTAuthenticator(tr, cfg.Username, cfg.Password, auth.WithLogger(logger))
	}
	logger.Info("configuration loaded: url=%s account=%s auth=%s", cfg.APIURL, cfg.AccountID, authenticator.Name())

	return &session{
		client: api.NewClient(tr, authenticator, cfg.AccountID, api.WithLogger(logger)),
		close:  closeLog,
	}, nil
}

// withSession runs fn with a fresh session, cancelled on SIGINT/SIGTERM
func withSession(v *viper.Viper, fn func(ctx context.Context, client *api.Client) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	s, err := openSession(v)
	if err != nil {
		return err
	}
	defer s.close()

	return fn(ctx, s.client)
}

func newVerbCommand(v *viper.Viper, method string) *cobra.Command {
	var (
		endpointVersion string
		data            string
		params          []string
		headers         []string
	)

	cmd := &cobra.Command{
		Use:   strings.ToLower(method) + " <endpoint>",
		Short: fmt.Sprintf("Send an authenticated %s request to an endpoint", method),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := requestOptions(endpointVersion, data, params, headers)
			if err != nil {
				return err
			}

			return withSession(v, func(ctx context.Context, client *api.Client) error {
				var result api.Result
				var err error
				switch method {
				case http.MethodGet:
					result, err = client.Get(ctx, args[0], opts...)
				case http.MethodPost:
					result, err = client.Post(ctx, args[0], opts...)
				case http.MethodPut:
					result, err = client.Put(ctx, args[0], opts...)
				case http.MethodDelete:
					result, err = client.Delete(ctx, args[0], opts...)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	cmd.Flags().StringVar(&endpointVersion, "api-version", "", "Endpoint version sent in the Version header")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header as key=value (repeatable)")

	return cmd
}

// requestOptions converts verb command flags into request options
func requestOptions(endpointVersion, data string, params, headers []string) ([]api.RequestOption, error) {
	var opts []api.RequestOption

	if endpointVersion != "" {
		opts = append(opts, api.WithVersion(endpointVersion))
	}

	if data != "" {
		var body any
		if err := json.Unmarshal([]byte(data), &body); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
		opts = append(opts, api.WithBody(body))
	}

	if len(params) > 0 {
		values := make(url.Values)
		for _, p := range params {
			k, val, ok := strings.Cut(p, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid --param %q: expected key=value", p)
			}
			values.Add(k, val)
		}
		opts = append(opts, api.WithParams(values))
	}

	for _, h := range headers {
		k, val, ok := strings.Cut(h, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --header %q: expected key=value", h)
		}
		opts = append(opts, api.WithHeader(k, val))
	}

	return opts, nil
}

func newSessionCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show session details and verify the active account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, client *api.Client) error {
				details, err := client.SessionDetails(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), details)
			})
		},
	}
}

func newSwitchAccountCommand(v *viper.Viper) *cobra.Command {
	var makeDefault bool

	cmd := &cobra.Command{
		Use:   "switch-account <account-id>",
		Short: "Switch the session to another account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, client *api.Client) error {
				result, err := client.SwitchAccount(ctx, args[0], makeDefault)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Also make the account the default for future logins")

	return cmd
}

func newLogOutCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log in and immediately close the session on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(v, func(ctx context.Context, client *api.Client) error {
				return client.LogOut(ctx)
			})
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
