// Command giftctl is an operator tool for watching gift payments.
//
//	giftctl status -api https://api.lovewheel.app <gift-id-or-slug>
//	giftctl wait   -api https://api.lovewheel.app -session cs_... <gift-id>
//
// wait polls the resolve endpoint the same way the checkout success page does
// and exits 0 once the gift is paid, 2 while it is still confirming and 1 on
// any other error.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nyashahama/lovewheel-backend/internal/client"
)

const (
	exitOK         = 0
	exitError      = 1
	exitConfirming = 2
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, logger))
}

func run(ctx context.Context, args []string, out io.Writer, logger *slog.Logger) int {
	if len(args) == 0 {
		usage(out)
		return exitError
	}

	cmd, rest := args[0], args[1:]
	fs := flag.NewFlagSet("giftctl "+cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	apiURL := fs.String("api", envOr("LOVEWHEEL_API_URL", "http://localhost:8080"), "base URL of the API")
	sessionID := fs.String("session", "", "Stripe checkout session id (wait only)")
	interval := fs.Duration("interval", client.DefaultInterval, "delay between polls")
	attempts := fs.Int("attempts", client.DefaultAttempts, "maximum number of polls")

	if err := fs.Parse(rest); err != nil {
		return exitError
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(out, "%s: exactly one gift id or slug is required\n", cmd)
		return exitError
	}
	ref := fs.Arg(0)

	c := client.New(*apiURL, client.WithPolling(*interval, *attempts))

	switch cmd {
	case "status":
		res, err := c.Resolve(ctx, ref, "")
		if err != nil {
			logger.Error("status failed", "ref", ref, "error", err)
			return exitError
		}
		return printJSON(out, res)

	case "wait":
		if *sessionID == "" {
			fmt.Fprintln(out, "wait: -session is required")
			return exitError
		}
		start := time.Now()
		res, err := c.WaitForPayment(ctx, ref, *sessionID)
		if errors.Is(err, client.ErrStillConfirming) {
			logger.Warn("payment still confirming", "ref", ref, "waited", time.Since(start).Round(time.Millisecond), "reason", res.Reason)
			printJSON(out, res)
			return exitConfirming
		}
		if err != nil {
			logger.Error("wait failed", "ref", ref, "error", err)
			return exitError
		}
		logger.Info("gift paid", "ref", ref, "waited", time.Since(start).Round(time.Millisecond))
		return printJSON(out, res)

	default:
		usage(out)
		return exitError
	}
}

func printJSON(out io.Writer, v any) int {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return exitError
	}
	return exitOK
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "usage: giftctl <status|wait> [-api URL] [-session ID] [-interval D] [-attempts N] <gift>")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
