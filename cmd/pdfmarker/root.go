package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pdfmarker/pdfmarker/internal/annotation"
	"github.com/pdfmarker/pdfmarker/internal/annotation/client"
	"github.com/pdfmarker/pdfmarker/internal/annotation/store"
	"github.com/pdfmarker/pdfmarker/internal/config"
	"github.com/pdfmarker/pdfmarker/internal/credentials"
	"github.com/pdfmarker/pdfmarker/internal/document/service"
	"github.com/pdfmarker/pdfmarker/pkg/logger"
	"github.com/spf13/cobra"
)

// cliOptions holds the persistent flags; flag values override PDFMARKER_* settings.
type cliOptions struct {
	apiURL   string
	authMode string
	token    string
	offline  bool
	verbose  bool
	jsonOut  bool
}

// session is what commands work against: a document view, a comment store and the
// identity they run as.
type session struct {
	mode  string
	docs  client.Documents
	store *store.Store
	creds credentials.Provider
	users credentials.UserProvider
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}
	var sess *session

	root := &cobra.Command{
		Use:   "pdfmarker",
		Short: "Create, resolve and list PDF annotations",
		Long: `pdfmarker talks to a pdfmarker-api server (PDFMARKER_API_URL) and manages
comments and page markers on its documents.

With --offline it runs against an in-process service seeded with a sample
document; changes last for a single invocation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger.SetOutput(cmd.ErrOrStderr())
			if opts.verbose {
				logger.Init("debug")
			} else {
				logger.Init("warn")
			}
			if cmd.Annotations["session"] != "true" {
				return nil
			}
			s, err := openSession(cmd.Context(), opts)
			if err != nil {
				return err
			}
			sess = s
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.apiURL, "api-url", "", "API base URL (default $PDFMARKER_API_URL)")
	pf.StringVar(&opts.authMode, "auth-mode", "", "none | token | oauth2 (default $PDFMARKER_AUTH_MODE)")
	pf.StringVar(&opts.token, "token", "", "bearer token for --auth-mode=token (default $PDFMARKER_TOKEN)")
	pf.BoolVar(&opts.offline, "offline", false, "use an in-process service instead of the API")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.jsonOut, "json", false, "print JSON")

	current := func() *session { return sess }
	root.AddCommand(
		newDocumentsCmd(opts, current),
		newCommentsCmd(opts, current),
		newWhoamiCmd(opts, current),
		newTokenCmd(),
	)
	return root
}

func needsSession(cmd *cobra.Command) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations["session"] = "true"
	return cmd
}

func openSession(ctx context.Context, opts *cliOptions) (*session, error) {
	cfg, err := config.LoadClientConfig()
	if err != nil {
		return nil, err
	}
	if opts.apiURL != "" {
		cfg.APIURL = opts.apiURL
	}
	if opts.authMode != "" {
		cfg.AuthMode = opts.authMode
	}
	if opts.token != "" {
		cfg.Token = opts.token
	}

	if opts.offline {
		local := client.NewLocal(offlineService(ctx))
		users := credentials.StaticUser{ID: cfg.UserID}
		return &session{
			mode:  "offline",
			docs:  local,
			store: store.New(local, store.WithUserProvider(users)),
			creds: credentials.None{},
			users: users,
		}, nil
	}

	creds, users, err := buildCredentials(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c, err := client.New(client.Config{BaseURL: cfg.APIURL, Timeout: cfg.Timeout}, creds)
	if err != nil {
		return nil, err
	}
	logger.Debugf("api=%s auth=%s", cfg.APIURL, cfg.AuthMode)
	return &session{
		mode:  cfg.AuthMode,
		docs:  c,
		store: store.New(c, store.WithUserProvider(users)),
		creds: creds,
		users: users,
	}, nil
}

// buildCredentials selects the credential variant for cfg.AuthMode.
func buildCredentials(ctx context.Context, cfg *config.ClientConfig) (credentials.Provider, credentials.UserProvider, error) {
	fallbackUser := credentials.StaticUser{ID: cfg.UserID}
	switch cfg.AuthMode {
	case "", "none":
		return credentials.None{}, fallbackUser, nil
	case "token":
		if cfg.Token == "" {
			return nil, nil, fmt.Errorf("auth mode token needs PDFMARKER_TOKEN or --token")
		}
		st, err := credentials.NewJWTStore(cfg.Token)
		if err != nil {
			return nil, nil, err
		}
		return st, st, nil
	case "oauth2":
		p, err := credentials.NewClientCredentials(ctx, credentials.ClientCredentialsConfig{
			TokenURL:     cfg.OAuth.TokenURL,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			Audience:     cfg.OAuth.Audience,
			Scopes:       cfg.OAuth.Scopes,
		})
		if err != nil {
			return nil, nil, err
		}
		return p, fallbackUser, nil
	default:
		return nil, nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

const offlineDocumentID = "sample"

func offlineService(ctx context.Context) service.Service {
	svc := service.NewMemoryService()
	_, _ = svc.CreateDocument(ctx, &annotation.Document{
		ID:       offlineDocumentID,
		Title:    "Sample contract",
		Filename: "sample.pdf",
		Status:   annotation.StatusPending,
	})
	return svc
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
