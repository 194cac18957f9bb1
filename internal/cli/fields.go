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

// Filters accepted by ListFields.
const (
	explicitIndexesFilter = "indexConfig.usesAncestorConfig:false"
	ttlFilter             = "ttlConfig:*"
)

func (c *cli) fieldsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fields",
		Aliases: []string{"field"},
		Short:   "Manage single-field index and TTL settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		c.fieldsGetCommand(),
		c.fieldsUpdateCommand(),
		c.fieldsListCommand(),
	)
	return cmd
}

func (c *cli) fieldName(collection, field string) (string, error) {
	project, err := c.project()
	if err != nil {
		return "", err
	}
	return resource.FieldPath(project, c.g.Database, collection, field), nil
}

func fieldRow(f *proto.Field) []string {
	var (
		indexes   []string
		inherited bool
	)
	if f.IndexConfig != nil {
		inherited = f.IndexConfig.UsesAncestorConfig
		for _, idx := range f.IndexConfig.Indexes {
			indexes = append(indexes, idx.Summary()+" "+idx.State.String())
		}
	}
	ttl := ""
	if f.TtlConfig != nil {
		ttl = f.TtlConfig.State.String()
	}
	return []string{f.Name, strings.Join(indexes, "; "), strconv.FormatBool(inherited), ttl}
}

var fieldHeader = []string{"NAME", "INDEXES", "INHERITED", "TTL"}

func (c *cli) fieldsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <field>",
		Short: "Show the effective settings of a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.fieldName(args[0], args[1])
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				f, err := client.GetField(cmd.Context(), &proto.GetFieldRequest{Name: name})
				if err != nil {
					return err
				}
				return c.printer().table(f, fieldHeader, [][]string{fieldRow(f)})
			})
		},
	}
}

func (c *cli) fieldsUpdateCommand() *cobra.Command {
	var (
		ttl          bool
		indexes      []string
		scope        string
		clearIndexes bool
		revert       bool
		async        bool
	)
	cmd := &cobra.Command{
		Use:   "update <collection> <field>",
		Short: "Change single-field indexes or the TTL policy of a field",
		Example: `  docadmin fields update events expireAt --ttl
  docadmin fields update cities description --clear-indexes
  docadmin fields update cities tags --index contains --index asc
  docadmin fields update cities tags --revert`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.fieldName(args[0], args[1])
			if err != nil {
				return err
			}
			field := &proto.Field{Name: name}
			var paths []string

			if cmd.Flags().Changed("ttl") {
				paths = append(paths, "ttlConfig")
				if ttl {
					field.TtlConfig = &proto.TtlConfig{}
				}
			}

			modes := 0
			for _, set := range []bool{len(indexes) > 0, clearIndexes, revert} {
				if set {
					modes++
				}
			}
			if modes > 1 {
				return fmt.Errorf("--index, --clear-indexes and --revert are mutually exclusive")
			}
			if modes == 1 {
				paths = append(paths, "indexConfig")
			}
			if len(indexes) > 0 || clearIndexes {
				qs, err := parseQueryScope(scope)
				if err != nil {
					return fmt.Errorf("--scope: %w", err)
				}
				field.IndexConfig = &proto.IndexConfig{Indexes: []*proto.Index{}}
				for _, mode := range indexes {
					f, err := parseIndexField(args[1] + ":" + mode)
					if err != nil {
						return err
					}
					field.IndexConfig.Indexes = append(field.IndexConfig.Indexes,
						&proto.Index{QueryScope: qs, Fields: []*proto.IndexField{f}})
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("nothing to update: give --ttl, --index, --clear-indexes or --revert")
			}

			return c.withClient(func(client *admin.Client) error {
				op, err := client.UpdateField(cmd.Context(), &proto.UpdateFieldRequest{
					Field:      field,
					UpdateMask: proto.NewFieldMask(paths...),
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				updated, err := wait(cmd.Context(), c, op, "Updating field "+args[1])
				if err != nil {
					return err
				}
				return c.printer().table(updated, fieldHeader, [][]string{fieldRow(updated)})
			})
		},
	}
	cmd.Flags().BoolVar(&ttl, "ttl", false, "enable (--ttl) or disable (--ttl=false) the TTL policy")
	cmd.Flags().StringArrayVar(&indexes, "index", nil, "single-field index mode (asc, desc, contains), repeatable")
	cmd.Flags().StringVar(&scope, "scope", "collection", "query scope of --index: collection or collection-group")
	cmd.Flags().BoolVar(&clearIndexes, "clear-indexes", false, "exempt the field from single-field indexing")
	cmd.Flags().BoolVar(&revert, "revert", false, "revert to the database default index settings")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	return cmd
}

func (c *cli) fieldsListCommand() *cobra.Command {
	var (
		collection string
		filter     string
		withTTL    bool
		explicit   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List fields with non-default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			switch {
			case withTTL && explicit:
				return fmt.Errorf("--ttl and --explicit are mutually exclusive")
			case withTTL:
				filter = ttlFilter
			case explicit:
				filter = explicitIndexesFilter
			}
			if collection == "" {
				collection = resource.WildcardCollection
			}
			return c.withClient(func(client *admin.Client) error {
				var (
					fields []*proto.Field
					rows   [][]string
				)
				req := &proto.ListFieldsRequest{
					Parent: resource.CollectionGroupPath(project, c.g.Database, collection),
					Filter: filter,
				}
				for f, err := range client.ListFieldsAll(cmd.Context(), req) {
					if err != nil {
						return err
					}
					fields = append(fields, f)
					rows = append(rows, fieldRow(f))
				}
				return c.printer().table(fields, fieldHeader, rows)
			})
		},
	}
	cmd.Flags().StringVar(&collection, "collection", "", "collection group ID (default: all)")
	cmd.Flags().StringVar(&filter, "filter", "", "server-side filter")
	cmd.Flags().BoolVar(&withTTL, "ttl", false, "only fields with a TTL policy")
	cmd.Flags().BoolVar(&explicit, "explicit", false, "only fields with explicit index settings")
	return cmd
}
