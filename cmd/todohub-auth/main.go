package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"todohub/config"
	"todohub/internal/logging"
	"todohub/internal/msauth"
	"todohub/internal/storage/sqlite"
)

const defaultConfigPath = "config.json"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "todohub-auth: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	useEnv := flag.Bool("env", false, "Load configuration from environment variables")
	statusOnly := flag.Bool("status", false, "Print the stored credential status and exit")
	forceRefresh := flag.Bool("refresh", false, "Force a token refresh and exit")
	flag.Parse()

	logger := logging.NewLogger(logging.LoggerConfig{
		Format: "text",
		Level:  logging.ParseLevel("warn"),
		Output: os.Stderr,
	})

	var cfg *config.Config
	var err error
	if *useEnv {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var store msauth.Store
	switch cfg.Storage.Backend {
	case config.StorageSQLite:
		db, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open credential database: %w", err)
		}
		defer db.Close()
		store = db
	case config.StorageFile:
		store = msauth.NewFileStore(cfg.Storage.Path)
	}

	flow, err := msauth.NewFlow(msauth.FlowConfig{
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		TenantID:     cfg.Graph.TenantID,
		RedirectURL:  cfg.Graph.RedirectURL,
	})
	if err != nil {
		return fmt.Errorf("failed to build auth flow: %w", err)
	}
	coordinator := msauth.NewCoordinator(store, flow, "default", logger)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *statusOnly {
		return printStatus(ctx, coordinator)
	}
	if *forceRefresh {
		record, err := coordinator.EnsureFresh(ctx, true)
		if err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}
		fmt.Println("Token refreshed.")
		printRecord(record)
		return nil
	}

	return authorize(ctx, coordinator)
}

// authorize walks the user through the authorization-code flow on the
// terminal: open the consent URL in a browser, paste the code back here.
func authorize(ctx context.Context, coordinator *msauth.Coordinator) error {
	url, state := coordinator.AuthCodeURL()

	fmt.Println("Open the following URL in a browser and sign in:")
	fmt.Println()
	fmt.Println("  " + url)
	fmt.Println()
	fmt.Printf("(request state: %s)\n", state)
	fmt.Println()
	fmt.Print("Paste the authorization code from the redirect URL: ")

	reader := bufio.NewReader(os.Stdin)
	code, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read code: %w", err)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return errors.New("no authorization code provided")
	}

	record, err := coordinator.Authorize(ctx, code)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	fmt.Println()
	fmt.Println("Account authorized.")
	printRecord(record)
	return nil
}

func printStatus(ctx context.Context, coordinator *msauth.Coordinator) error {
	record, err := coordinator.Status(ctx)
	if errors.Is(err, msauth.ErrNotFound) {
		fmt.Println("No credentials stored. Run todohub-auth without flags to authorize.")
		return nil
	}
	if err != nil {
		return err
	}
	printRecord(record)
	return nil
}

func printRecord(record *msauth.Record) {
	fmt.Printf("  account kind: %s\n", record.AccountKind)
	if record.TenantID != "" {
		fmt.Printf("  tenant:       %s\n", record.TenantID)
	}
	fmt.Printf("  state:        %s\n", record.State)
	fmt.Printf("  expires:      %s\n", record.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  scopes:       %s\n", strings.Join(record.Scopes, " "))
}
