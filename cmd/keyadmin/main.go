// Command keyadmin manages the API keys the emulator accepts when
// auth.usePostgres is set. Keys live in the api_keys table of the store's
// SQL database, so the config must select the sqlite or postgres driver.
//
// Usage:
//
//	keyadmin create --name ci [--rate-limit 100] [--expires-in 720h]
//	keyadmin revoke --key <raw-key>
//	keyadmin list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/emulator/store"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docstore-admin/pkg/logger"
)

var errUsage = errors.New("usage")

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup("warn", cfg.Logging.Format)

	db, err := store.OpenDB(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open key database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	v := apikey.NewValidator(db, nil)
	if err := run(context.Background(), v, flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			printUsage(os.Stderr)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		db.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, v *apikey.Validator, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "create":
		return cmdCreate(ctx, v, args[1:], out)
	case "revoke":
		return cmdRevoke(ctx, v, args[1:], out)
	case "list":
		return cmdList(ctx, v, out)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func cmdCreate(ctx context.Context, v *apikey.Validator, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	name := fs.String("name", "", "name for the api key")
	rateLimit := fs.Int("rate-limit", 0, "requests per second, 0 for the server default")
	expiresIn := fs.Duration("expires-in", 0, "expiry duration, e.g. 720h (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *name == "" {
		return errors.New("--name is required")
	}

	var expiresAt *time.Time
	if *expiresIn > 0 {
		t := time.Now().Add(*expiresIn)
		expiresAt = &t
	}

	key, err := v.CreateKey(ctx, *name, *rateLimit, expiresAt)
	if err != nil {
		return fmt.Errorf("creating key: %w", err)
	}

	fmt.Fprintln(out, "API key created. It is shown only once.")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Key:        %s\n", key)
	fmt.Fprintf(out, "  Name:       %s\n", *name)
	if *rateLimit > 0 {
		fmt.Fprintf(out, "  Rate Limit: %d req/s\n", *rateLimit)
	} else {
		fmt.Fprintln(out, "  Rate Limit: default")
	}
	if expiresAt != nil {
		fmt.Fprintf(out, "  Expires:    %s\n", expiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(out, "  Expires:    never")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Save it for docadmin with: docadmin login --api-key <key>")
	return nil
}

func cmdRevoke(ctx context.Context, v *apikey.Validator, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	key := fs.String("key", "", "raw api key to revoke")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("--key is required")
	}
	if err := v.RevokeKey(ctx, *key); err != nil {
		return fmt.Errorf("revoking key: %w", err)
	}
	fmt.Fprintln(out, "API key revoked.")
	return nil
}

func cmdList(ctx context.Context, v *apikey.Validator, out io.Writer) error {
	keys, err := v.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("listing keys: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintln(out, "No active API keys.")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-20s  %-10s  %-20s  %s\n", "ID", "NAME", "RATE", "CREATED", "EXPIRES")
	for _, k := range keys {
		expires := "never"
		if k.ExpiresAt != nil {
			expires = k.ExpiresAt.UTC().Format(time.RFC3339)
		}
		rate := "default"
		if k.RateLimit > 0 {
			rate = fmt.Sprintf("%d/s", k.RateLimit)
		}
		fmt.Fprintf(out, "%-8s  %-20s  %-10s  %-20s  %s\n", k.ID, k.Name, rate, k.CreatedAt.UTC().Format(time.RFC3339), expires)
	}
	fmt.Fprintf(out, "\nTotal: %d active key(s)\n", len(keys))
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: keyadmin [-config path] <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create   Create a new API key")
	fmt.Fprintln(w, "  revoke   Revoke an existing API key")
	fmt.Fprintln(w, "  list     List all active API keys")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, `  keyadmin create --name ci --rate-limit 50 --expires-in 720h`)
	fmt.Fprintln(w, `  keyadmin revoke --key "abc123..."`)
	fmt.Fprintln(w, `  keyadmin list`)
}
