// Package relaycli implements the tool-relay command line.
package relaycli

import (
	"os"
	"time"

	"github.com/oremus-labs/ol-tool-relay/internal/client"
	"github.com/spf13/cobra"
)

var (
	serverURL     string
	apiToken      string
	outputFormat  string
	clientTimeout time.Duration
)

// Execute runs the CLI.
func Execute() error {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "tool-relay",
	Short: "Invoke tools over HTTP and stream their results to subscribers",
	Long: `tool-relay runs the relay server and talks to a running relay.
Use 'tool-relay serve' to start a server; the other commands are clients.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("RELAY_SERVER", "http://localhost:3000"), "Relay base URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("RELAY_API_TOKEN"), "Bearer token for invocation routes")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table|json")
	rootCmd.PersistentFlags().DurationVar(&clientTimeout, "timeout", 30*time.Second, "Request timeout")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(toolsCmd)
}

func newClient() *client.Client {
	return &client.Client{
		BaseURL: serverURL,
		Token:   apiToken,
		Timeout: clientTimeout,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
