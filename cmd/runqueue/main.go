// Command runqueue fetches a list of URLs through a bounded-concurrency
// pipeline series and prints one JSON line per URL.
//
// URLs are taken from the positional arguments, or from stdin (one per line)
// when there are none. Settings come from flags, RUNQUEUE_* environment
// variables, a .env file and an optional --config file.
//
//	runqueue --parallel 8 --retries 3 https://example.com https://example.org
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dcshock/runqueue/internal/appconfig"
	"github.com/dcshock/runqueue/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 when every URL was fetched, 1 when
// some failed or the run was interrupted, 2 on configuration errors.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, urls, err := appconfig.Load(args, "")
	if err != nil {
		fmt.Fprintln(stderr, "runqueue:", err)
		return 2
	}
	log, err := logger.Setup(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintln(stderr, "runqueue:", err)
		return 2
	}
	if len(urls) == 0 {
		if urls, err = readLines(stdin); err != nil {
			log.Error("reading urls", "error", err)
			return 2
		}
	}
	log.Info("configuration loaded",
		"parallel", cfg.Series.Parallel,
		"timeout", cfg.HTTP.Timeout,
		"retries", cfg.HTTP.Retries,
		"urls", len(urls))

	var failed int
	if cfg.Pipeline.File != "" {
		failed, err = runConfigured(ctx, cfg, urls, log, stdout)
	} else {
		failed, err = runFetch(ctx, cfg, urls, log, stdout)
	}
	if err != nil {
		log.Error("run failed", "error", err)
		return 1
	}
	if failed > 0 {
		log.Warn("some urls failed", "failed", failed, "total", len(urls))
		return 1
	}
	return 0
}

// readLines returns the non-empty lines of r that do not start with '#'.
func readLines(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
