// Command chatrelay is the terminal client for the chatrelay server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"chatrelay/internal/client"
	"chatrelay/internal/tui"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "chatrelay",
	Short: "Chat with a language model through the chatrelay server",
	Long: `chatrelay opens an interactive terminal chat against a running
chatrelay server. Conversations are grouped into sessions; switch, create,
and delete them from inside the UI.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(client.New(serverURL))
	},
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List known session identifiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ids, err := client.New(serverURL).ListSessions(ctx)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("no sessions")
			return nil
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server liveness",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.New(serverURL).Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server base URL (default $CHATRELAY_SERVER_URL or http://localhost:8000)")
	rootCmd.AddCommand(sessionsCmd, healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
