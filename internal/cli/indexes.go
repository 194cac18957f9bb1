package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (c *cli) indexesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "indexes",
		Aliases: []string{"index"},
		Short:   "Manage composite indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		c.indexesCreateCommand(),
		c.indexesGetCommand(),
		c.indexesListCommand(),
		c.indexesDeleteCommand(),
	)
	return cmd
}

// parseIndexField parses "path:mode" where mode is asc, desc, contains or
// vector=<dimension>. A bare path means ascending.
func parseIndexField(spec string) (*proto.IndexField, error) {
	path, mode, _ := strings.Cut(spec, ":")
	if path == "" {
		return nil, fmt.Errorf("index field %q: empty field path", spec)
	}
	f := &proto.IndexField{FieldPath: path}
	switch m := strings.ToLower(mode); {
	case m == "" || m == "asc" || m == "ascending":
		f.Order = proto.OrderAscending
	case m == "desc" || m == "descending":
		f.Order = proto.OrderDescending
	case m == "contains" || m == "array-contains":
		f.ArrayConfig = proto.ArrayConfigContains
	case strings.HasPrefix(m, "vector="):
		dim, err := strconv.ParseInt(strings.TrimPrefix(m, "vector="), 10, 32)
		if err != nil || dim <= 0 {
			return nil, fmt.Errorf("index field %q: vector dimension must be a positive integer", spec)
		}
		f.VectorConfig = &proto.VectorConfig{Dimension: int32(dim), Flat: &proto.FlatIndex{}}
	default:
		return nil, fmt.Errorf("index field %q: unknown mode %q", spec, mode)
	}
	return f, nil
}

func parseQueryScope(s string) (proto.QueryScope, error) {
	switch strings.ToLower(s) {
	case "collection":
		return proto.QueryScopeCollection, nil
	case "collection-group", "collection_group":
		return proto.QueryScopeCollectionGroup, nil
	}
	return proto.ParseQueryScope(strings.ToUpper(s))
}

func indexRow(idx *proto.Index) []string {
	return []string{idx.Name, idx.QueryScope.String(), idx.Summary(), idx.State.String()}
}

var indexHeader = []string{"NAME", "SCOPE", "FIELDS", "STATE"}

func (c *cli) printIndex(idx *proto.Index) error {
	return c.printer().table(idx, indexHeader, [][]string{indexRow(idx)})
}

// indexName resolves an index ID or full index name.
func (c *cli) indexName(arg, collection string) (string, error) {
	if strings.HasPrefix(arg, "projects/") {
		return arg, nil
	}
	project, err := c.project()
	if err != nil {
		return "", err
	}
	if collection == "" {
		collection = resource.WildcardCollection
	}
	return resource.IndexPath(project, c.g.Database, collection, arg), nil
}

func (c *cli) indexesCreateCommand() *cobra.Command {
	var (
		collection string
		fields     []string
		scope      string
		async      bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a composite index",
		Example: `  docadmin indexes create --collection cities --field country --field population:desc
  docadmin indexes create --collection posts --scope collection-group --field tags:contains --field created:desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			idx := &proto.Index{}
			if idx.QueryScope, err = parseQueryScope(scope); err != nil {
				return fmt.Errorf("--scope: %w", err)
			}
			for _, spec := range fields {
				f, err := parseIndexField(spec)
				if err != nil {
					return err
				}
				idx.Fields = append(idx.Fields, f)
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.CreateIndex(cmd.Context(), &proto.CreateIndexRequest{
					Parent: resource.CollectionGroupPath(project, c.g.Database, collection),
					Index:  idx,
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				built, err := wait(cmd.Context(), c, op, "Building index on "+collection)
				if err != nil {
					return err
				}
				return c.printIndex(built)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group ID")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "indexed field as path[:asc|desc|contains|vector=N], repeatable")
	cmd.Flags().StringVar(&scope, "scope", "collection", "query scope: collection or collection-group")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	_ = cmd.MarkFlagRequired("collection")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}

func (c *cli) indexesGetCommand() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "get <index-id|index-name>",
		Short: "Show an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.indexName(args[0], collection)
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				idx, err := client.GetIndex(cmd.Context(), &proto.GetIndexRequest{Name: name})
				if err != nil {
					return err
				}
				return c.printIndex(idx)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group ID (default: any)")
	return cmd
}

func (c *cli) indexesListCommand() *cobra.Command {
	var (
		collection string
		filter     string
		pageSize   int32
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List composite indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			if collection == "" {
				collection = resource.WildcardCollection
			}
			return c.withClient(func(client *admin.Client) error {
				var (
					indexes []*proto.Index
					rows    [][]string
				)
				req := &proto.ListIndexesRequest{
					Parent:   resource.CollectionGroupPath(project, c.g.Database, collection),
					Filter:   filter,
					PageSize: pageSize,
				}
				for idx, err := range client.ListIndexesAll(cmd.Context(), req) {
					if err != nil {
						return err
					}
					indexes = append(indexes, idx)
					rows = append(rows, indexRow(idx))
				}
				return c.printer().table(indexes, indexHeader, rows)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group ID (default: all)")
	cmd.Flags().StringVar(&filter, "filter", "", "server-side filter")
	cmd.Flags().Int32Var(&pageSize, "page-size", 0, "results per request")
	return cmd
}

func (c *cli) indexesDeleteCommand() *cobra.Command {
	var collection string
	cmd := &cobra.Command{
		Use:   "delete <index-id|index-name>",
		Short: "Delete an index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.indexName(args[0], collection)
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				if err := client.DeleteIndex(cmd.Context(), &proto.DeleteIndexRequest{Name: name}); err != nil {
					return err
				}
				return c.printer().message(name, "Deleted index %s", name)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group ID (default: any)")
	return cmd
}
