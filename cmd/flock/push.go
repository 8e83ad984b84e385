package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flockhq/flock/internal/logging"
	"github.com/flockhq/flock/internal/notify"
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push notification tools",
}

var pushServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the push endpoint (foreground)",
	Long: `Serve POST /push for admin surfaces.

The endpoint accepts {"tokens":[...],"title":"...","body":"...","data":{},
"imageUrl":"..."} with a bearer token, fans the message out through the
Expo gateway, and answers {"sent":n,"failed":n,"results":[...]}.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := logging.New(logging.Options{
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})

		if cfg.Push.BearerToken == "" {
			fmt.Fprintf(os.Stderr, "Error: push.bearer_token is required (or FLOCK_PUSH_BEARER_TOKEN)\n")
			os.Exit(1)
		}

		srv, err := notify.NewServer(notify.ServerConfig{
			Host:        cfg.Push.Host,
			Port:        cfg.Push.Port,
			BearerToken: cfg.Push.BearerToken,
		}, notify.NewGateway(cfg.Push.GatewayURL), logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating push server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting push server: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Push endpoint at http://%s/push\n", renderOK("✓"), srv.Addr())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		if err := srv.Stop(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping push server: %v\n", err)
			os.Exit(1)
		}
	},
}

var (
	pushTokens []string
	pushBody   string
)

var pushSendCmd = &cobra.Command{
	Use:   "send <title>",
	Short: "Send a notification directly through the gateway",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()

		gateway := notify.NewGateway(cfg.Push.GatewayURL)
		receipt, err := gateway.Send(context.Background(), notify.Message{
			Tokens: pushTokens,
			Title:  args[0],
			Body:   pushBody,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error sending push: %v\n", err)
			os.Exit(1)
		}

		for _, r := range receipt.Results {
			if r.OK {
				fmt.Printf("  %s %s\n", renderOK("✓"), r.Token)
			} else {
				fmt.Printf("  %s %s: %s\n", renderErr("✗"), r.Token, r.Error)
			}
		}
		fmt.Printf("%s %d sent, %d failed\n", renderAccent("➤"), receipt.Sent, receipt.Failed)
	},
}

func init() {
	pushSendCmd.Flags().StringSliceVarP(&pushTokens, "token", "t", nil, "device push token (repeatable)")
	pushSendCmd.Flags().StringVarP(&pushBody, "body", "b", "", "notification body")
	pushCmd.AddCommand(pushServeCmd, pushSendCmd)
	rootCmd.AddCommand(pushCmd)
}
