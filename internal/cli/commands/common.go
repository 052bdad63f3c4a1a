package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/bodhini-dev/mediadmin/internal/cli/client"
	"github.com/bodhini-dev/mediadmin/internal/cli/config"
	"github.com/bodhini-dev/mediadmin/internal/cli/media"
	"github.com/bodhini-dev/mediadmin/internal/cli/notify"
	"github.com/bodhini-dev/mediadmin/internal/cli/serverselect"
	"github.com/bodhini-dev/mediadmin/internal/cli/session"
)

// SessionStoreEnv selects the session store: "keyring" (default), "file" or "memory"
const SessionStoreEnv = "MEDIADMIN_SESSION_STORE"

var logger = zerolog.Nop()

// SetLogger sets the debug logger used by every command
func SetLogger(l zerolog.Logger) {
	logger = l
}

// options carries the dependencies a command run needs. Tests inject them;
// the cobra commands leave them empty and get the real ones.
type options struct {
	serverAlias string
	server      *config.Server
	store       session.Store
	out         io.Writer
	prompter    prompter
}

// Option configures a command run
type Option func(*options)

// WithServer skips server resolution
func WithServer(server *config.Server) Option {
	return func(o *options) {
		o.server = server
	}
}

// WithServerAlias resolves the server by alias or URL
func WithServerAlias(alias string) Option {
	return func(o *options) {
		o.serverAlias = alias
	}
}

// WithStore replaces the persisted session store
func WithStore(store session.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithOutput redirects command output
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.out = w
	}
}

// WithPrompter replaces the interactive terminal prompts
func WithPrompter(p prompter) Option {
	return func(o *options) {
		o.prompter = p
	}
}

func buildOptions(opts []Option) *options {
	o := &options{out: os.Stdout, prompter: terminalPrompter{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// runtime is everything a command needs to talk to one server
type runtime struct {
	server   *config.Server
	api      *client.Client
	sessions *session.Manager
	media    *media.Client
	notifier *notify.Notifier
	out      io.Writer
	prompter prompter
}

// newRuntime resolves the server, restores its session and wires the
// clients. The restored session is in rt.sessions.
func newRuntime(opts ...Option) (*runtime, error) {
	o := buildOptions(opts)

	server := o.server
	if server == nil {
		var err error
		server, err = getSelectedServer(o.serverAlias)
		if err != nil {
			return nil, err
		}
	}

	clientOpts := []client.Option{client.WithLogger(logger)}
	if server.Insecure {
		clientOpts = append(clientOpts, client.WithInsecureTLS())
	}
	api, err := client.New(server.URL, clientOpts...)
	if err != nil {
		return nil, err
	}

	store := o.store
	if store == nil {
		store, err = defaultStore(server.URL)
		if err != nil {
			return nil, err
		}
	}

	sessions := session.NewManager(store, api, session.WithLogger(logger))
	if _, err := sessions.Restore(); err != nil {
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	return &runtime{
		server:   server,
		api:      api,
		sessions: sessions,
		media:    media.New(api, sessions, logger),
		notifier: notify.New(o.out),
		out:      o.out,
		prompter: o.prompter,
	}, nil
}

// defaultStore picks the session store from the environment
func defaultStore(serverURL string) (session.Store, error) {
	switch os.Getenv(SessionStoreEnv) {
	case "", "keyring":
		return session.NewKeyringStore(serverURL), nil
	case "file":
		path, err := session.DefaultFilePath()
		if err != nil {
			return nil, err
		}
		return session.NewFileStore(path, serverURL), nil
	case "memory":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown %s %q (use keyring, file or memory)", SessionStoreEnv, os.Getenv(SessionStoreEnv))
	}
}

// getSelectedServer loads the config and returns the selected server.
func getSelectedServer(serverAlias string) (*config.Server, error) {
	cfg, err := config.LoadFromCurrentDir()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\nRun 'mediadmin init <url>' to create a configuration file", err)
	}

	server, err := serverselect.ResolveServer(cfg, serverAlias)
	if err != nil {
		return nil, err
	}

	if server.URL == "" {
		return nil, fmt.Errorf("server URL is empty. Please edit %s and add a valid URL", config.ConfigFileName)
	}

	return server, nil
}
