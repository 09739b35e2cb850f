package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/smsdash/internal/tui"
	"github.com/matheus3301/smsdash/internal/tui/client"
)

func main() {
	addrFlag := flag.String("addr", envOr("SMSDASH_ADDR", client.DefaultAddr), "daemon address")
	startFlag := flag.Bool("start", true, "start smsdashd when it is not answering")
	flag.Parse()

	c := client.New(*addrFlag)

	if !probeDaemon(c) {
		if !*startFlag {
			fmt.Fprintf(os.Stderr, "daemon not answering at %s\n", *addrFlag)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "daemon not answering at %s, starting...\n", *addrFlag)
		if err := startDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 10*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready\n")
			os.Exit(1)
		}
	}

	app := tui.NewApp(c, *addrFlag)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func probeDaemon(c *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.Ping(ctx)
	return err == nil
}

// startDaemon launches smsdashd from next to this binary, falling back to PATH.
func startDaemon() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	daemon := filepath.Join(filepath.Dir(executable), "smsdashd")
	if _, err := os.Stat(daemon); err != nil {
		daemon = "smsdashd"
	}

	cmd := exec.Command(daemon)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	return cmd.Start()
}

func waitForDaemon(c *client.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(c) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
