package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	apperrors "github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resource"
)

func (c *cli) operationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"operation", "ops"},
		Short:   "Inspect and control long-running operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		c.operationsListCommand(),
		c.operationsGetCommand(),
		c.operationsCancelCommand(),
		c.operationsDeleteCommand(),
		c.operationsWaitCommand(),
		c.operationsWatchCommand(),
	)
	return cmd
}

// operationName resolves an operation ID or full operation name.
func (c *cli) operationName(arg string) (string, error) {
	if strings.HasPrefix(arg, "projects/") {
		return arg, nil
	}
	project, err := c.project()
	if err != nil {
		return "", err
	}
	return resource.OperationPath(project, c.g.Database, arg), nil
}

func (c *cli) printOperation(op *proto.Operation) error {
	return c.printer().table(op, operationHeader, [][]string{operationRow(op)})
}

func (c *cli) operationsListCommand() *cobra.Command {
	var (
		filter  string
		done    bool
		running bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the operations of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.databaseName()
			if err != nil {
				return err
			}
			switch {
			case done && running:
				return fmt.Errorf("--done and --running are mutually exclusive")
			case done:
				filter = "done=true"
			case running:
				filter = "done=false"
			}
			return c.withClient(func(client *admin.Client) error {
				var (
					ops  []*proto.Operation
					rows [][]string
				)
				req := &proto.ListOperationsRequest{Name: name, Filter: filter}
				for op, err := range client.ListOperationsAll(cmd.Context(), req) {
					if err != nil {
						return err
					}
					ops = append(ops, op)
					rows = append(rows, operationRow(op))
				}
				return c.printer().table(ops, operationHeader, rows)
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "server-side filter, e.g. done=false")
	cmd.Flags().BoolVar(&done, "done", false, "only finished operations")
	cmd.Flags().BoolVar(&running, "running", false, "only unfinished operations")
	return cmd
}

func (c *cli) operationsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <operation-id|operation-name>",
		Short: "Show an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.operationName(args[0])
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := client.GetOperation(cmd.Context(), &proto.GetOperationRequest{Name: name})
				if err != nil {
					return err
				}
				return c.printOperation(op)
			})
		},
	}
}

func (c *cli) operationsCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <operation-id|operation-name>",
		Short: "Ask the server to stop an operation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.operationName(args[0])
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				if err := client.CancelOperation(cmd.Context(), &proto.CancelOperationRequest{Name: name}); err != nil {
					return err
				}
				return c.printer().message(name, "Cancellation requested for %s", name)
			})
		},
	}
}

func (c *cli) operationsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <operation-id|operation-name>",
		Short: "Forget an operation record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.operationName(args[0])
			if err != nil {
				return err
			}
			return c.withClient(func(client *admin.Client) error {
				if err := client.DeleteOperation(cmd.Context(), &proto.DeleteOperationRequest{Name: name}); err != nil {
					return err
				}
				return c.printer().message(name, "Deleted operation %s", name)
			})
		},
	}
}

func (c *cli) operationsWaitCommand() *cobra.Command {
	var maxWait time.Duration
	cmd := &cobra.Command{
		Use:   "wait <operation-id|operation-name>",
		Short: "Wait for an operation to finish and show its outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := c.operationName(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if maxWait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, maxWait)
				defer cancel()
			}
			return c.withClient(func(client *admin.Client) error {
				op, err := c.pollOperation(ctx, client, name)
				if err != nil {
					return err
				}
				if err := c.printOperation(op); err != nil {
					return err
				}
				if op.Error != nil {
					return apperrors.FromRPCStatus(op.Error)
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&maxWait, "max-wait", 0, "give up after this long")
	return cmd
}

// pollOperation fetches name until it is done. Unlike admin.Operation it
// needs no knowledge of the response type.
func (c *cli) pollOperation(ctx context.Context, client *admin.Client, name string) (*proto.Operation, error) {
	var spinner *pterm.SpinnerPrinter
	if c.deps.Interactive {
		spinner, _ = pterm.DefaultSpinner.WithWriter(c.deps.Err).Start("Waiting for " + name)
	}
	backoff := resilience.Backoff{Initial: 500 * time.Millisecond, Max: 5 * time.Second, Multiplier: 1.5}
	for {
		op, err := client.GetOperation(ctx, &proto.GetOperationRequest{Name: name})
		if err != nil {
			if spinner != nil {
				spinner.Fail(err.Error())
			}
			return nil, err
		}
		_, state, progress := describeOperation(op)
		if op.Done {
			if spinner != nil {
				spinner.Success(name + ": " + state)
			}
			return op, nil
		}
		if spinner != nil {
			spinner.UpdateText(fmt.Sprintf("Waiting for %s (%s %s)", name, state, progress))
		}
		if err := backoff.Sleep(ctx); err != nil {
			if spinner != nil {
				spinner.Fail(err.Error())
			}
			return nil, err
		}
	}
}
