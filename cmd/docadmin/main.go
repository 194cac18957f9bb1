// Command docadmin administers document databases through the admin API.
//
// Usage:
//
//	docadmin --endpoint localhost:8090 --project demo databases list
//	docadmin --transport rest --endpoint http://localhost:8091 --project demo indexes list
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/docstore-admin/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx)
	stop()
	os.Exit(code)
}
