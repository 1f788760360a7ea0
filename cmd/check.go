// Package cmd holds the cobra subcommands attached to the shepherd CLI.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/smazurov/shepherd/internal/logging"
)

// CreateCheckCmd creates the check command: a one-shot probe of the
// upstream status endpoint, using the same request the status monitor
// worker makes. Useful from the shell or a systemd ExecStartPre.
func CreateCheckCmd() *cobra.Command {
	var host string
	var port int
	var timeout time.Duration
	var printJSON bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Probe the upstream status endpoint once",
		Long: `Performs a single GET against the upstream /channels/ endpoint and reports ` +
			`the result. Exits non-zero when the upstream is unreachable or unhealthy.`,
		Run: func(_ *cobra.Command, _ []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			if host == "0.0.0.0" {
				host = "127.0.0.1"
			}
			url := fmt.Sprintf("http://%s:%d/channels/", host, port)

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "check: %v\n", err)
				os.Exit(1)
			}

			start := time.Now()
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				fmt.Fprintf(os.Stderr, "check: upstream unreachable: %v\n", err)
				os.Exit(1)
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode > 299 {
				fmt.Fprintf(os.Stderr, "check: upstream returned status %d\n", resp.StatusCode)
				os.Exit(1)
			}

			var channels []any
			if err := json.NewDecoder(resp.Body).Decode(&channels); err != nil {
				fmt.Fprintf(os.Stderr, "check: undecodable channel data: %v\n", err)
				os.Exit(1)
			}

			if printJSON {
				out, _ := json.Marshal(map[string]any{
					"url":         url,
					"status":      resp.StatusCode,
					"channels":    len(channels),
					"duration_ms": time.Since(start).Milliseconds(),
				})
				fmt.Println(string(out))
				return
			}

			fmt.Printf("ok: %s answered %d with %d channels in %s\n",
				url, resp.StatusCode, len(channels), time.Since(start).Round(time.Millisecond))
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Upstream host")
	cmd.Flags().IntVar(&port, "port", 9999, "Upstream port")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Probe timeout")
	cmd.Flags().BoolVar(&printJSON, "json", false, "Print result as JSON")

	return cmd
}
