// Package cli implements the docadmin command-line tool. Every admin RPC has
// a command; commands that start long-running operations wait for them with a
// progress spinner unless --async is given.
//
//	docadmin --project demo databases create orders --location eur3
//	docadmin --project demo indexes create --collection cities --field name:asc --field pop:desc
//	docadmin --project demo documents export --output-uri-prefix gs://backups/nightly
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

// Globals are the persistent flags shared by every command.
type Globals struct {
	ConfigPath string
	Endpoint   string
	Transport  string
	Project    string
	Database   string
	Output     string
	Timeout    time.Duration
	APIKey     string
	Debug      bool
}

// Deps are the collaborators of the command tree. The zero value writes to
// the process's standard streams and keeps API keys in the OS keyring.
type Deps struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
	// Credentials keeps API keys per endpoint. Nil opens the OS keyring on
	// first use.
	Credentials CredentialStore
	// ClientOptions are appended to the options of every admin client.
	ClientOptions []admin.Option
	// EventReader replaces the Kafka reader of operations watch.
	EventReader kafka.MessageReader
	// Interactive enables spinners on Err.
	Interactive bool
}

type cli struct {
	deps Deps
	g    Globals
}

// NewRootCommand builds the docadmin command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.In == nil {
		deps.In = os.Stdin
	}
	if deps.Out == nil {
		deps.Out = os.Stdout
	}
	if deps.Err == nil {
		deps.Err = os.Stderr
	}
	c := &cli{deps: deps}

	root := &cobra.Command{
		Use:           "docadmin",
		Short:         "Administer document databases, indexes, fields and operations",
		Long:          `docadmin calls the document database admin API over gRPC or REST.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if c.g.Debug {
				level = "debug"
			}
			slog.SetDefault(logger.New(c.deps.Err, level, "text"))
			switch c.g.Output {
			case outputTable, outputJSON:
			default:
				return fmt.Errorf("--output must be %s or %s, got %q", outputTable, outputJSON, c.g.Output)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetIn(deps.In)
	root.SetOut(deps.Out)
	root.SetErr(deps.Err)

	flags := root.PersistentFlags()
	flags.StringVar(&c.g.ConfigPath, "config", "", "config file; the client section supplies defaults")
	flags.StringVar(&c.g.Endpoint, "endpoint", "", "admin API address (host:port or URL)")
	flags.StringVar(&c.g.Transport, "transport", "", "transport: grpc or rest")
	flags.StringVarP(&c.g.Project, "project", "p", os.Getenv("DA_PROJECT"), "project ID")
	flags.StringVarP(&c.g.Database, "database", "d", resource.DefaultDatabase, "database ID")
	flags.StringVarP(&c.g.Output, "output", "o", outputTable, "output format: table or json")
	flags.DurationVar(&c.g.Timeout, "timeout", 0, "per-call timeout")
	flags.StringVar(&c.g.APIKey, "api-key", "", "API key; overrides the key saved by login")
	flags.BoolVar(&c.g.Debug, "debug", false, "log client activity to stderr")

	root.AddCommand(
		c.databasesCommand(),
		c.indexesCommand(),
		c.fieldsCommand(),
		c.documentsCommand(),
		c.operationsCommand(),
		c.locationsCommand(),
		c.loginCommand(),
		c.logoutCommand(),
		c.versionCommand(),
	)
	return root
}

// Execute runs the command tree with os.Args and returns the process exit
// code.
func Execute(ctx context.Context) int {
	root := NewRootCommand(Deps{Interactive: term.IsTerminal(int(os.Stderr.Fd()))})
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// clientConfig merges the config file, environment overrides and flags.
func (c *cli) clientConfig() (config.ClientConfig, error) {
	cfg, err := config.Load(c.g.ConfigPath)
	if err != nil {
		return config.ClientConfig{}, err
	}
	cc := cfg.Client
	if c.g.Endpoint != "" {
		cc.Endpoint = c.g.Endpoint
	}
	if c.g.Transport != "" {
		cc.Transport = strings.ToLower(c.g.Transport)
	}
	if c.g.Timeout > 0 {
		cc.Timeout = c.g.Timeout
	}
	if c.g.APIKey != "" {
		cc.APIKey = c.g.APIKey
	}
	if cc.Transport != admin.TransportGRPC && cc.Transport != admin.TransportREST {
		return config.ClientConfig{}, fmt.Errorf("--transport must be grpc or rest, got %q", cc.Transport)
	}
	return cc, nil
}

// client builds an admin client. Without an explicit key it falls back to
// the key saved for the endpoint by login.
func (c *cli) client() (*admin.Client, error) {
	cc, err := c.clientConfig()
	if err != nil {
		return nil, err
	}
	if cc.APIKey == "" {
		if store, err := c.credentials(); err == nil {
			if key, err := store.APIKey(cc.Endpoint); err == nil {
				cc.APIKey = key
			}
		} else {
			slog.Debug("credential store unavailable", "error", err)
		}
	}
	return admin.NewClientFromConfig(cc, c.deps.ClientOptions...)
}

// withClient runs fn with a fresh client and closes it afterwards.
func (c *cli) withClient(fn func(*admin.Client) error) error {
	client, err := c.client()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *cli) credentials() (CredentialStore, error) {
	if c.deps.Credentials != nil {
		return c.deps.Credentials, nil
	}
	store, err := OpenKeyring()
	if err != nil {
		return nil, err
	}
	c.deps.Credentials = store
	return store, nil
}

func (c *cli) project() (string, error) {
	if c.g.Project == "" {
		return "", fmt.Errorf("--project is required (or set DA_PROJECT)")
	}
	return c.g.Project, nil
}

func (c *cli) databaseName() (string, error) {
	project, err := c.project()
	if err != nil {
		return "", err
	}
	return resource.DatabasePath(project, c.g.Database), nil
}

func (c *cli) printer() *printer {
	return &printer{out: c.deps.Out, format: c.g.Output}
}
