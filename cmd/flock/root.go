package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/config"
	"github.com/flockhq/flock/internal/remote"
	"github.com/flockhq/flock/internal/store"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "flock",
	Short: "Offline-first sync agent for church records",
	Long: `flock keeps sermon notes, attendance, and announcements in a local
SQLite store and uploads them to the hosted backend whenever a
connection is available. Records created offline are queued and synced
on reconnect; nothing waits on the network.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"config file (default: ./flock.yaml or ~/.config/flock/flock.yaml)")
}

// loadConfig reads configuration for a command invocation.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openStore opens the local database per the config.
func openStore(cfg *config.Config) *store.Store {
	st, err := store.Open(cfg.DatabasePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening local store: %v\n", err)
		os.Exit(1)
	}
	return st
}

// buildBackend wires the REST client and blob store from the config.
func buildBackend(cfg *config.Config) *remote.Backend {
	rest, err := remote.NewClient(remote.ClientConfig{
		BaseURL:     cfg.Remote.BaseURL,
		APIKey:      cfg.Remote.APIKey,
		BearerToken: cfg.Remote.BearerToken,
		Timeout:     cfg.Remote.Timeout,
	}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring backend: %v\n", err)
		fmt.Fprintf(os.Stderr, "Set remote.base_url in flock.yaml or FLOCK_REMOTE_BASE_URL\n")
		os.Exit(1)
	}

	var blobs *remote.BlobStore
	if cfg.Blob.Endpoint != "" {
		blobs, err = remote.NewBlobStore(remote.BlobConfig{
			Endpoint:      cfg.Blob.Endpoint,
			Bucket:        cfg.Blob.Bucket,
			AccessKey:     cfg.Blob.AccessKey,
			SecretKey:     cfg.Blob.SecretKey,
			UseSSL:        cfg.Blob.UseSSL,
			PublicBaseURL: cfg.Blob.PublicBaseURL,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error configuring blob store: %v\n", err)
			os.Exit(1)
		}
	}

	return remote.NewBackend(rest, blobs)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
