package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
)

func (c *cli) documentsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "documents",
		Aliases: []string{"docs"},
		Short:   "Export, import and bulk-delete documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		c.documentsExportCommand(),
		c.documentsImportCommand(),
		c.documentsBulkDeleteCommand(),
	)
	return cmd
}

// scopeFlags are the collection and namespace selectors shared by the
// document commands.
type scopeFlags struct {
	collections []string
	namespaces  []string
}

func (s *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&s.collections, "collections", nil, "collection IDs (default: all)")
	cmd.Flags().StringSliceVar(&s.namespaces, "namespaces", nil, "namespace IDs (default: all)")
}

func (c *cli) documentsExportCommand() *cobra.Command {
	var (
		scope    scopeFlags
		prefix   string
		snapshot string
		async    bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export documents to storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseName()
			if err != nil {
				return err
			}
			req := &proto.ExportDocumentsRequest{
				Name:            name,
				CollectionIDs:   scope.collections,
				NamespaceIDs:    scope.namespaces,
				OutputURIPrefix: prefix,
			}
			if snapshot != "" {
				t, err := time.Parse(time.RFC3339, snapshot)
				if err != nil {
					return err
				}
				req.SnapshotTime = &t
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.ExportDocuments(cmd.Context(), req)
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				resp, err := wait(cmd.Context(), c, op, "Exporting "+name)
				if err != nil {
					return err
				}
				return c.printer().record(resp, [][2]string{
					{"operation", op.Name()},
					{"outputUriPrefix", resp.OutputURIPrefix},
				})
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&prefix, "output-uri-prefix", "", "destination prefix, e.g. gs://backups/2024-01 or a file:// path inside the export root (default: server chosen)")
	cmd.Flags().StringVar(&snapshot, "snapshot-time", "", "RFC 3339 time of the version to export")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	return cmd
}

func (c *cli) documentsImportCommand() *cobra.Command {
	var (
		scope  scopeFlags
		prefix string
		async  bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import documents from a previous export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseName()
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.ImportDocuments(cmd.Context(), &proto.ImportDocumentsRequest{
					Name:           name,
					CollectionIDs:  scope.collections,
					NamespaceIDs:   scope.namespaces,
					InputURIPrefix: prefix,
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				if _, err := wait(cmd.Context(), c, op, "Importing into "+name); err != nil {
					return err
				}
				return c.printer().message(op.Name(), "Imported %s into %s", prefix, name)
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().StringVar(&prefix, "input-uri-prefix", "", "location of the export")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	_ = cmd.MarkFlagRequired("input-uri-prefix")
	return cmd
}

func (c *cli) documentsBulkDeleteCommand() *cobra.Command {
	var (
		scope scopeFlags
		async bool
	)
	cmd := &cobra.Command{
		Use:   "bulk-delete",
		Short: "Delete all documents of the selected collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseName()
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.BulkDeleteDocuments(cmd.Context(), &proto.BulkDeleteDocumentsRequest{
					Name:          name,
					CollectionIDs: scope.collections,
					NamespaceIDs:  scope.namespaces,
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				if _, err := wait(cmd.Context(), c, op, "Deleting documents in "+name); err != nil {
					return err
				}
				return c.printer().message(op.Name(), "Deleted documents in %s", name)
			})
		},
	}
	scope.register(cmd)
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	return cmd
}
