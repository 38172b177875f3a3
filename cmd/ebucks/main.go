package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fadedpez/ebucks/internal/app"
	"github.com/fadedpez/ebucks/internal/config"
	"github.com/fadedpez/ebucks/pkg/ebucks"
)

func main() {
	user := flag.String("user", "local", "User whose eBucks to operate on")
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := app.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to initialize eBucks: %v", err)
	}

	err = run(ctx, rt.Registry, *user, flag.Args(), os.Stdout)
	if closeErr := rt.Close(); closeErr != nil {
		logger.Warn("Error closing store: %v", closeErr)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes args[0] for user and writes its result to out
func run(ctx context.Context, registry *ebucks.Registry, user string, args []string, out io.Writer) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	e, err := registry.Get(ctx, user)
	if err != nil {
		return err
	}
	return cmd.run(ctx, e, args[1:], out)
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  ebucks [-user ID] COMMAND [flags]")
	fmt.Println("\nCommands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-17s %s\n", name, commands[name].usage)
	}

	fmt.Println("\nExamples:")
	fmt.Println("  ebucks -user alice award -amount 100 -reason \"Welcome bonus\"")
	fmt.Println("  ebucks -user alice spin -double")
}
