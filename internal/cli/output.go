package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pterm/pterm"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/admin"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/resilience"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

type printer struct {
	out    io.Writer
	format string
}

// table prints v as indented JSON, or header and rows as a table.
func (p *printer) table(v any, header []string, rows [][]string) error {
	if p.format == outputJSON {
		return p.json(v)
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(p.out, "No results")
		return err
	}
	data := append(pterm.TableData{header}, rows...)
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out, s)
	return err
}

// record prints v as JSON or as a two-column key/value table.
func (p *printer) record(v any, pairs [][2]string) error {
	rows := make([][]string, 0, len(pairs))
	for _, kv := range pairs {
		rows = append(rows, []string{kv[0], kv[1]})
	}
	return p.table(v, []string{"FIELD", "VALUE"}, rows)
}

func (p *printer) json(v any) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// message prints a confirmation line in table mode and {"name": ...} in JSON
// mode.
func (p *printer) message(name, format string, args ...any) error {
	if p.format == outputJSON {
		return p.json(map[string]string{"name": name})
	}
	_, err := fmt.Fprintf(p.out, format+"\n", args...)
	return err
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ",")
}

// jobStatus is the part of every job metadata message the CLI displays.
type jobStatus struct {
	State             proto.OperationState `json:"state"`
	OperationState    proto.OperationState `json:"operationState"`
	ProgressDocuments *proto.Progress      `json:"progressDocuments"`
	ProgressBytes     *proto.Progress      `json:"progressBytes"`
}

// describeOperation returns the metadata kind, state and document progress
// of op.
func describeOperation(op *proto.Operation) (kind, state, progress string) {
	if op.Metadata == nil {
		if op.Done {
			return "", doneState(op), ""
		}
		return "", "RUNNING", ""
	}
	kind = strings.TrimSuffix(strings.TrimPrefix(op.Metadata.MessageName(), "google.firestore.admin.v1."), "Metadata")
	var js jobStatus
	if err := json.Unmarshal(op.Metadata.Value, &js); err != nil {
		return kind, "UNKNOWN", ""
	}
	s := js.State
	if s == proto.OperationStateUnspecified {
		s = js.OperationState
	}
	switch {
	case s != proto.OperationStateUnspecified:
		state = s.String()
	case op.Done:
		state = doneState(op)
	default:
		state = "RUNNING"
	}
	if p := js.ProgressDocuments; p != nil && (p.EstimatedWork > 0 || p.CompletedWork > 0) {
		progress = strconv.FormatInt(p.CompletedWork, 10) + "/" + strconv.FormatInt(p.EstimatedWork, 10) + " docs"
	}
	return kind, state, progress
}

func doneState(op *proto.Operation) string {
	if op.Error != nil {
		return "FAILED"
	}
	return "SUCCESSFUL"
}

func operationRow(op *proto.Operation) []string {
	kind, state, progress := describeOperation(op)
	errMsg := ""
	if op.Error != nil {
		errMsg = op.Error.Message
	}
	return []string{op.Name, kind, state, strconv.FormatBool(op.Done), progress, errMsg}
}

var operationHeader = []string{"NAME", "KIND", "STATE", "DONE", "PROGRESS", "ERROR"}

// awaitable is the part of admin.Operation used by wait.
type awaitable interface {
	Name() string
	Done() bool
	Raw() *proto.Operation
}

// wait polls op until it finishes, showing a spinner with its progress when
// the terminal is interactive.
func wait[R, M any](ctx context.Context, c *cli, op *admin.Operation[R, M], title string) (*R, error) {
	if !c.deps.Interactive {
		return op.Wait(ctx)
	}
	spinner, err := pterm.DefaultSpinner.WithWriter(c.deps.Err).Start(title)
	if err != nil {
		return op.Wait(ctx)
	}
	backoff := resilience.Backoff{Initial: 500 * time.Millisecond, Max: 5 * time.Second, Multiplier: 1.5}
	for {
		resp, err := op.Poll(ctx)
		if err != nil {
			spinner.Fail(title + ": " + err.Error())
			return nil, err
		}
		if op.Done() {
			spinner.Success(title + ": done")
			return resp, nil
		}
		spinner.UpdateText(title + " " + progressText(op))
		if err := backoff.Sleep(ctx); err != nil {
			spinner.Fail(title + ": " + err.Error())
			return nil, err
		}
	}
}

func progressText(op awaitable) string {
	_, state, progress := describeOperation(op.Raw())
	if progress == "" {
		return "(" + state + ")"
	}
	return "(" + state + ", " + progress + ")"
}

// started prints the handle of an operation that is left running.
func (p *printer) started(op awaitable) error {
	if p.format == outputJSON {
		return p.json(op.Raw())
	}
	_, err := fmt.Fprintf(p.out, "Started operation %s\n", op.Name())
	return err
}
