// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/localmart/localmart/internal/cart"
	"github.com/localmart/localmart/internal/client"
	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app is shared by every command. It is filled in before any command runs.
type app struct {
	configPath string
	statePath  string
	verbose    bool

	cfg      *config.Config
	api      *client.Client
	store    *session.Store
	sessions *session.Manager
	calc     pricing.Calculator
	logger   *slog.Logger
	out      io.Writer

	// httpClient overrides the transport, for tests.
	httpClient *http.Client
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "localmart",
		Short:         "Shop neighborhood stores from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&a.statePath, "state", "", "session state file (default: <session_dir>/state.json)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		loginCmd(a),
		signupCmd(a),
		magicLinkCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		profileCmd(a),
		storesCmd(a),
		searchCmd(a),
		flagsCmd(a),
		cartCmd(a),
		cardsCmd(a),
		quoteCmd(a),
		checkoutCmd(a),
		ordersCmd(a),
		storeAdminCmd(a),
		adminCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Parse(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	hc := a.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Client.Timeout}
	}
	a.api = client.New(cfg.Client.APIURL,
		client.WithHTTPClient(hc),
		client.WithSearchURL(cfg.Client.SearchURL),
	)

	path := a.statePath
	if path == "" {
		path = filepath.Join(cfg.Client.SessionDir, "state.json")
	}
	a.store, err = session.OpenStore(path)
	if err != nil {
		return err
	}
	a.sessions = session.NewManager(a.store, a.api, a.logger)
	a.calc = pricing.NewCalculator(cfg.Pricing)
	return nil
}

// token returns the saved access token or a hint to log in.
func (a *app) token() (string, error) {
	s, err := a.sessions.Load()
	if errors.Is(err, session.ErrNotLoggedIn) {
		return "", fmt.Errorf("not logged in, run `localmart login` first")
	}
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

func (a *app) cart() (*cart.Cart, error) {
	return cart.Load(a.store)
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
