package cli

import (
	"bufio"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (c *cli) loginCommand() *cobra.Command {
	var skipVerify bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save an API key for the endpoint in the OS keyring",
		Long: `login stores the API key given with --api-key, or read from the first line
of standard input, in the OS keyring under the current endpoint. Later
commands against the same endpoint send it automatically.

Unless --skip-verify is given the key is checked by listing the project's
locations first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.clientConfig()
			if err != nil {
				return err
			}
			key := c.g.APIKey
			if key == "" {
				line, err := bufio.NewReader(c.deps.In).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no API key: pass --api-key or pipe it on stdin")
				}
				key = strings.TrimSpace(line)
			}
			if key == "" {
				return errors.New("empty API key")
			}

			if !skipVerify {
				project, err := c.project()
				if err != nil {
					return err
				}
				cc.APIKey = key
				client, err := admin.NewClientFromConfig(cc, c.deps.ClientOptions...)
				if err != nil {
					return err
				}
				_, err = client.ListLocations(cmd.Context(), &proto.ListLocationsRequest{Name: resource.ProjectPath(project)})
				client.Close()
				if err != nil {
					return fmt.Errorf("verifying API key: %w", err)
				}
			}

			store, err := c.credentials()
			if err != nil {
				if runtime.GOOS == "linux" {
					return fmt.Errorf("%w (install gnome-keyring, kwallet or pass)", err)
				}
				return err
			}
			if err := store.SaveAPIKey(cc.Endpoint, key); err != nil {
				return fmt.Errorf("saving API key: %w", err)
			}
			return c.printer().message(cc.Endpoint, "API key saved for %s", cc.Endpoint)
		},
	}
	cmd.Flags().BoolVar(&skipVerify, "skip-verify", false, "save the key without calling the API")
	return cmd
}

func (c *cli) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the API key saved for the endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := c.clientConfig()
			if err != nil {
				return err
			}
			store, err := c.credentials()
			if err != nil {
				return err
			}
			err = store.DeleteAPIKey(cc.Endpoint)
			if errors.Is(err, ErrNoCredentials) {
				return c.printer().message(cc.Endpoint, "No API key saved for %s", cc.Endpoint)
			}
			if err != nil {
				return err
			}
			return c.printer().message(cc.Endpoint, "API key for %s removed", cc.Endpoint)
		},
	}
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docadmin version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.g.Output == outputJSON {
				return c.printer().json(map[string]string{"version": Version, "go": runtime.Version()})
			}
			_, err := fmt.Fprintf(c.deps.Out, "docadmin %s (%s)\n", Version, runtime.Version())
			return err
		},
	}
}
