package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	publishEventID     string
	publishPayload     string
	publishPayloadFile string
)

type publishResult struct {
	EventID string `json:"event_id"`
	Staged  int    `json:"staged"`
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <event-type>",
	Short: "Publish an event for delivery to matching subscribers",
	Long: `Publish an event to the Hookline admin API. The event fans out into
one staged delivery per active subscriber of the event type.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType := args[0]

		payload := []byte(publishPayload)
		if publishPayloadFile != "" {
			b, err := os.ReadFile(publishPayloadFile)
			if err != nil {
				return fmt.Errorf("failed to read payload file: %w", err)
			}
			payload = b
		}
		if !json.Valid(payload) {
			return fmt.Errorf("payload is not valid JSON")
		}

		body := map[string]any{
			"event_type": eventType,
			"payload":    json.RawMessage(payload),
		}
		if publishEventID != "" {
			body["event_id"] = publishEventID
		}

		var result publishResult
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetBody(body).
			SetResult(&result).
			SetError(&apiError{}).
			Post("/v1/events")
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.IsError() {
			return apiErrorf(resp)
		}

		if outputJSON {
			printOutput(result)
		} else {
			fmt.Printf("Published event %s: %d deliveries staged\n", result.EventID, result.Staged)
		}
		return nil
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishEventID, "event-id", "", "event ID (generated when empty)")
	publishCmd.Flags().StringVar(&publishPayload, "payload", "{}", "event payload as a JSON string")
	publishCmd.Flags().StringVar(&publishPayloadFile, "payload-file", "", "read the payload from a file instead")
	rootCmd.AddCommand(publishCmd)
}
