package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tphummel/lab_inventory/internal/authclient"
	"github.com/tphummel/lab_inventory/internal/config"
	"github.com/tphummel/lab_inventory/internal/listctl"
	"github.com/tphummel/lab_inventory/internal/models"
	"github.com/tphummel/lab_inventory/internal/resource"
	"github.com/tphummel/lab_inventory/internal/session"
)

const (
	envEndpoint    = "INVENTORY_ENDPOINT"
	envSessionFile = "INVENTORY_SESSION_FILE"
)

// app carries the global flags and lazily built clients for one run.
type app struct {
	endpoint    string
	sessionFile string
	retries     uint64
	verbose     bool
	jsonOut     bool

	logger *slog.Logger
	auth   *authclient.Client
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "invctl",
		Short:         "Inventory admin client",
		Long:          "invctl manages IT-asset inventory records (brands, models, processors, RAM, storage, video cards, installs and inventory) on a lab_inventory server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.endpoint, "endpoint", "", "Server base URL (env "+envEndpoint+")")
	pf.StringVar(&a.sessionFile, "session-file", "", "Session file path (env "+envSessionFile+")")
	pf.Uint64Var(&a.retries, "retries", 0, "Retry list/show this many times on network errors")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Debug logging to stderr")
	pf.BoolVar(&a.jsonOut, "json", false, "Print JSON instead of tables")

	root.AddCommand(
		newLoginCmd(a),
		newRegisterCmd(a),
		newLogoutCmd(a),
		newKindsCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newAddCmd(a),
		newEditCmd(a),
		newDeleteCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	a.endpoint, a.sessionFile = config.ResolveClient(a.endpoint, a.sessionFile,
		os.Getenv(envEndpoint), os.Getenv(envSessionFile))
	if a.sessionFile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w (set --session-file)", err)
		}
		a.sessionFile = filepath.Join(dir, "invctl", "session.yaml")
	}
	return nil
}

// authClient opens the session file and returns the auth client.
func (a *app) authClient() (*authclient.Client, error) {
	if a.auth != nil {
		return a.auth, nil
	}
	if a.endpoint == "" {
		return nil, fmt.Errorf("no server endpoint: pass --endpoint or set %s", envEndpoint)
	}
	store, err := session.Open(a.sessionFile)
	if err != nil {
		return nil, err
	}
	c, err := authclient.New(a.endpoint, store, authclient.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.auth = c
	return c, nil
}

// resourceClient returns an authenticated client for the kind named slug.
func (a *app) resourceClient(slug string) (*resource.Client, error) {
	k, ok := models.LookupKind(slug)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q (see 'invctl kinds')", slug)
	}
	auth, err := a.authClient()
	if err != nil {
		return nil, err
	}
	if !auth.Store().Authenticated() {
		return nil, fmt.Errorf("not logged in: run 'invctl login'")
	}
	opts := []resource.Option{
		resource.WithHTTPClient(auth.HTTPClient()),
		resource.WithLogger(a.logger),
	}
	if a.retries > 0 {
		opts = append(opts, resource.WithReadRetry(resource.ExponentialReadRetry(a.retries)))
	}
	return resource.New(a.endpoint, k, opts...)
}

// controller returns a loaded list controller for slug.
func (a *app) controller(cmd *cobra.Command, slug string) (*listctl.Controller, error) {
	rc, err := a.resourceClient(slug)
	if err != nil {
		return nil, err
	}
	c := listctl.New(rc, a.logger)
	if err := c.Load(cmd.Context()); err != nil {
		return nil, fmt.Errorf("load %s: %s", rc.Kind().Slug, listctl.Message(err))
	}
	return c, nil
}

// parseSets turns repeated --set name=value flags into a map.
func parseSets(k models.Kind, sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: want name=value", s)
		}
		if !k.HasField(name) {
			if canonical, aliased := k.Aliases[name]; aliased {
				name = canonical
			} else {
				return nil, fmt.Errorf("unknown field %q for %s (fields: %s)", name, k.Slug, strings.Join(k.Fields, ", "))
			}
		}
		out[name] = value
	}
	return out, nil
}
