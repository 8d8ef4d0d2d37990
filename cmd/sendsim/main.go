package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sendsim/internal/app"
)

func main() {
	var (
		cfgPath string
		watch   bool
		initCfg bool
	)
	flag.StringVar(&cfgPath, "config", "./sendsim.yaml", "path to config yaml")
	flag.BoolVar(&watch, "watch", false, "re-run whenever the config file changes")
	flag.BoolVar(&initCfg, "init", false, "write a starter config to -config and exit")
	flag.Parse()

	if initCfg {
		if err := app.WriteInitConfig(cfgPath); err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", cfgPath)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, watch)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("interrupted")
			os.Exit(130)
		}
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
