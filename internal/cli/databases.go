package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (c *cli) databasesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "databases",
		Aliases: []string{"database", "db"},
		Short:   "Manage databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		c.databasesCreateCommand(),
		c.databasesGetCommand(),
		c.databasesListCommand(),
		c.databasesUpdateCommand(),
		c.databasesDeleteCommand(),
	)
	return cmd
}

func databaseRow(db *proto.Database) []string {
	return []string{db.Name, db.LocationID, db.Type.String(), db.ConcurrencyMode.String(),
		db.DeleteProtectionState.String(), formatTime(db.CreateTime)}
}

func (c *cli) printDatabase(db *proto.Database) error {
	return c.printer().record(db, [][2]string{
		{"name", db.Name},
		{"uid", db.UID},
		{"location", db.LocationID},
		{"type", db.Type.String()},
		{"concurrencyMode", db.ConcurrencyMode.String()},
		{"pointInTimeRecovery", db.PointInTimeRecoveryEnablement.String()},
		{"appEngineIntegration", db.AppEngineIntegrationMode.String()},
		{"deleteProtection", db.DeleteProtectionState.String()},
		{"created", formatTime(db.CreateTime)},
		{"updated", formatTime(db.UpdateTime)},
		{"etag", db.Etag},
	})
}

// databaseSettings holds the flags shared by create and update.
type databaseSettings struct {
	dbType           string
	concurrencyMode  string
	pitr             string
	appEngine        string
	deleteProtection string
}

func (s *databaseSettings) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.dbType, "type", "", "FIRESTORE_NATIVE or DATASTORE_MODE")
	cmd.Flags().StringVar(&s.concurrencyMode, "concurrency-mode", "", "OPTIMISTIC, PESSIMISTIC or OPTIMISTIC_WITH_ENTITY_GROUPS")
	cmd.Flags().StringVar(&s.pitr, "pitr", "", "POINT_IN_TIME_RECOVERY_ENABLED or POINT_IN_TIME_RECOVERY_DISABLED")
	cmd.Flags().StringVar(&s.appEngine, "app-engine-integration", "", "ENABLED or DISABLED")
	cmd.Flags().StringVar(&s.deleteProtection, "delete-protection", "", "DELETE_PROTECTION_ENABLED or DELETE_PROTECTION_DISABLED")
}

// apply sets the flags that were given on db and returns their mask paths.
func (s *databaseSettings) apply(cmd *cobra.Command, db *proto.Database) ([]string, error) {
	var paths []string
	set := func(flag, path string, parse func(string) error) error {
		if !cmd.Flags().Changed(flag) {
			return nil
		}
		v, _ := cmd.Flags().GetString(flag)
		if err := parse(strings.ToUpper(v)); err != nil {
			return fmt.Errorf("--%s: %w", flag, err)
		}
		paths = append(paths, path)
		return nil
	}
	err := set("type", "type", func(v string) (err error) {
		db.Type, err = proto.ParseDatabaseType(v)
		return err
	})
	if err == nil {
		err = set("concurrency-mode", "concurrencyMode", func(v string) (err error) {
			db.ConcurrencyMode, err = proto.ParseConcurrencyMode(v)
			return err
		})
	}
	if err == nil {
		err = set("pitr", "pointInTimeRecoveryEnablement", func(v string) (err error) {
			db.PointInTimeRecoveryEnablement, err = proto.ParsePointInTimeRecoveryEnablement(v)
			return err
		})
	}
	if err == nil {
		err = set("app-engine-integration", "appEngineIntegrationMode", func(v string) (err error) {
			db.AppEngineIntegrationMode, err = proto.ParseAppEngineIntegrationMode(v)
			return err
		})
	}
	if err == nil {
		err = set("delete-protection", "deleteProtectionState", func(v string) (err error) {
			db.DeleteProtectionState, err = proto.ParseDeleteProtectionState(v)
			return err
		})
	}
	return paths, err
}

func (c *cli) databasesCreateCommand() *cobra.Command {
	var (
		location string
		async    bool
		settings databaseSettings
	)
	cmd := &cobra.Command{
		Use:   "create <database-id>",
		Short: "Create a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			db := &proto.Database{LocationID: location, Type: proto.DatabaseTypeFirestoreNative}
			if _, err := settings.apply(cmd, db); err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.CreateDatabase(cmd.Context(), &proto.CreateDatabaseRequest{
					Parent:     resource.ProjectPath(project),
					DatabaseID: args[0],
					Database:   db,
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				created, err := wait(cmd.Context(), c, op, "Creating database "+args[0])
				if err != nil {
					return err
				}
				return c.printDatabase(created)
			})
		},
	}
	cmd.Flags().StringVar(&location, "location", "", "location ID, e.g. nam5 (default: the server's default location)")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	settings.register(cmd)
	return cmd
}

func (c *cli) databasesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get [database-id]",
		Short: "Show a database (default: --database)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseArg(args)
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				db, err := client.GetDatabase(cmd.Context(), &proto.GetDatabaseRequest{Name: name})
				if err != nil {
					return err
				}
				return c.printDatabase(db)
			})
		},
	}
}

func (c *cli) databasesListCommand() *cobra.Command {
	var showDeleted bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the databases of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.project()
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				resp, err := client.ListDatabases(cmd.Context(), &proto.ListDatabasesRequest{
					Parent:      resource.ProjectPath(project),
					ShowDeleted: showDeleted,
				})
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(resp.Databases))
				for _, db := range resp.Databases {
					rows = append(rows, databaseRow(db))
				}
				return c.printer().table(resp, []string{"NAME", "LOCATION", "TYPE", "CONCURRENCY", "DELETE PROTECTION", "CREATED"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&showDeleted, "show-deleted", false, "include deleted databases")
	return cmd
}

func (c *cli) databasesUpdateCommand() *cobra.Command {
	var (
		async    bool
		settings databaseSettings
	)
	cmd := &cobra.Command{
		Use:   "update [database-id]",
		Short: "Change database settings given as flags",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseArg(args)
			if err != nil {
				return err
			}
			db := &proto.Database{Name: name}
			paths, err := settings.apply(cmd, db)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("nothing to update: give at least one setting flag")
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.UpdateDatabase(cmd.Context(), &proto.UpdateDatabaseRequest{
					Database:   db,
					UpdateMask: proto.NewFieldMask(paths...),
				})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				updated, err := wait(cmd.Context(), c, op, "Updating "+name)
				if err != nil {
					return err
				}
				return c.printDatabase(updated)
			})
		},
	}
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	settings.register(cmd)
	return cmd
}

func (c *cli) databasesDeleteCommand() *cobra.Command {
	var (
		etag  string
		async bool
	)
	cmd := &cobra.Command{
		Use:   "delete <database-id>",
		Short: "Delete a database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseArg(args)
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.DeleteDatabase(cmd.Context(), &proto.DeleteDatabaseRequest{Name: name, Etag: etag})
				if err != nil {
					return err
				}
				if async {
					return c.printer().started(op)
				}
				if _, err := wait(cmd.Context(), c, op, "Deleting "+name); err != nil {
					return err
				}
				return c.printer().message(name, "Deleted database %s", name)
			})
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "only delete if the database's etag matches")
	cmd.Flags().BoolVar(&async, "async", false, "return once the operation has started")
	return cmd
}

// databaseArg resolves an optional database ID argument, falling back to
// --database.
func (c *cli) databaseArg(args []string) (string, error) {
	project, err := c.project()
	if err != nil {
		return "", err
	}
	id := c.g.Database
	if len(args) > 0 {
		id = args[0]
	}
	return resource.DatabasePath(project, id), nil
}
