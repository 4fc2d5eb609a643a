package relaycli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/oremus-labs/ol-tool-relay/internal/events"
	"github.com/spf13/cobra"
)

var invokeArgs string

var invokeCmd = &cobra.Command{
	Use:   "invoke <tool> [key=value...]",
	Short: "Invoke a tool on a running relay",
	Example: `  tool-relay invoke add a=2.5 b=3.5
  tool-relay invoke get-alerts --args '{"state":"CA"}'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := buildArguments(invokeArgs, args[1:])
		if err != nil {
			return err
		}
		resp, err := newClient().Invoke(cmd.Context(), args[0], payload)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON() {
			return printJSON(out, resp)
		}
		fmt.Fprintln(out, resp.Result)
		fmt.Fprintf(out, "delivered to %d/%d subscribers\n", resp.Delivery.Succeeded, resp.Delivery.Attempted)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Show relay health and subscriber count",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := newClient().Health(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON() {
			return printJSON(out, h)
		}
		tw := newTable(out)
		fmt.Fprintln(tw, "STATUS\tCLIENTS\tCHECKED")
		fmt.Fprintf(tw, "%s\t%d\t%s\n", h.Status, h.Clients, relativeTime(h.Timestamp))
		flushTable(tw)
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools a relay exposes",
	RunE: func(cmd *cobra.Command, args []string) error {
		list, err := newClient().Tools(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if wantJSON() {
			return printJSON(out, list)
		}
		tw := newTable(out)
		fmt.Fprintln(tw, "NAME\tTITLE\tDESCRIPTION")
		for _, t := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Name, t.Title, truncate(t.Description, 60))
		}
		flushTable(tw)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream events from a relay until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err := newClient().Stream(ctx, func(evt events.Event) bool {
			if wantJSON() {
				fmt.Fprintln(out, string(evt.Bytes()))
				return true
			}
			fmt.Fprintln(out, describeEvent(evt))
			return true
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func describeEvent(evt events.Event) string {
	ts := evt.Timestamp.Local().Format("15:04:05")
	switch evt.Type {
	case events.TypeToolResult:
		if p, err := events.DecodeToolResult(evt.Bytes()); err == nil {
			return fmt.Sprintf("%s  %s  %s", ts, p.Tool, p.Result)
		}
	case events.TypeConnected:
		if fields, err := evt.Fields(); err == nil {
			return fmt.Sprintf("%s  connected  %v", ts, fields["message"])
		}
	}
	return fmt.Sprintf("%s  %s  %s", ts, evt.Type, string(evt.Bytes()))
}

// buildArguments merges a JSON object with key=value pairs. Values that parse
// as JSON (numbers, booleans, objects) keep their type; everything else is a string.
func buildArguments(raw string, pairs []string) (json.RawMessage, error) {
	args := map[string]interface{}{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("--args must be a JSON object: %w", err)
		}
	}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(value), &decoded); err == nil {
			args[key] = decoded
		} else {
			args[key] = value
		}
	}
	return json.Marshal(args)
}

func init() {
	invokeCmd.Flags().StringVar(&invokeArgs, "args", "", "Tool arguments as a JSON object")
}
