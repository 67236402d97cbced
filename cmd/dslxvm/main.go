// Command dslxvm is a small harness for running the bundled example
// programs against the interpreter core, with logging and runtime knobs
// read from dslxvm.toml. The core itself exposes no CLI or source-language
// front end; an embedder is expected to hand it already-assembled
// vm.Bytecode, which is exactly what the example programs under examples/
// do.
package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"dslxvm/examples/concurrency"
	"dslxvm/examples/fibonacci"
	"dslxvm/examples/mapdemo"
	"dslxvm/internal/config"
)

func main() {
	configDir := flag.String("config-dir", ".", "directory to look for dslxvm.toml in")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Println("Usage: dslxvm [-config-dir dir] <fibonacci|map|concurrency>")
		os.Exit(1)
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Printf("error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Printf("error constructing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting dslxvm", zap.String("example", flag.Arg(0)), zap.Int("channel_capacity_hint", cfg.Runtime.ChannelCapacityHint))

	switch flag.Arg(0) {
	case "fibonacci":
		fibonacci.Run()
	case "map":
		mapdemo.Run()
	case "concurrency":
		concurrency.Run()
	default:
		fmt.Printf("unknown example %q\n", flag.Arg(0))
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Development {
		return zap.NewDevelopment()
	}
	zcfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(cfg.Log.Level); err == nil {
		zcfg.Level = lvl
	}
	return zcfg.Build()
}
