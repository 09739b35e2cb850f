package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/matheus3301/smsdash/internal/config"
	"github.com/matheus3301/smsdash/internal/daemon"
	"go.uber.org/fx"
)

func main() {
	configFlag := flag.String("config", "", "path to config.toml (default ~/.smsdash/config.toml)")
	dataDirFlag := flag.String("data-dir", "", "data directory (overrides config and SMSDASH_DATA_DIR)")
	listenFlag := flag.String("listen", "", "HTTP listen address (overrides config and PORT)")
	flag.Parse()

	cfg, err := config.Resolve(config.Options{ConfigPath: *configFlag, DataDir: *dataDirFlag})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *listenFlag != "" {
		cfg.HTTP.Listen = *listenFlag
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Config: cfg}),
	)

	app.Run()
}
