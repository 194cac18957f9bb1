package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (c *cli) locationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "locations",
		Aliases: []string{"location"},
		Short:   "Show the locations databases can be created in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(c.locationsListCommand(), c.locationsGetCommand())
	return cmd
}

var locationHeader = []string{"ID", "DISPLAY NAME", "LABELS"}

func locationRow(l *proto.Location) []string {
	return []string{l.LocationID, l.DisplayName, formatLabels(l.Labels)}
}

func (c *cli) locationsListCommand() *cobra.Command {
	var filter string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				var (
					locations []*proto.Location
					rows      [][]string
				)
				req := &proto.ListLocationsRequest{Name: resource.ProjectPath(project), Filter: filter}
				for l, err := range client.ListLocationsAll(cmd.Context(), req) {
					if err != nil {
						return err
					}
					locations = append(locations, l)
					rows = append(rows, locationRow(l))
				}
				return c.printer().table(locations, locationHeader, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "server-side filter")
	return cmd
}

func (c *cli) locationsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <location-id>",
		Short: "Show a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !strings.HasPrefix(name, "projects/") {
				project, err := c.project()
				if err != nil {
					return err
				}
				name = resource.LocationPath(project, name)
			}
			return c.withClient(func(client *admin.Client) error {
				l, err := client.GetLocation(cmd.Context(), &proto.GetLocationRequest{Name: name})
				if err != nil {
					return err
				}
				return c.printer().table(l, locationHeader, [][]string{locationRow(l)})
			})
		},
	}
}
