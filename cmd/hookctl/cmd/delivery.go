package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listEventID string
	listStatus  string
	listLimit   int
)

type deliveryView struct {
	ID             string `json:"id"`
	SubscriberID   string `json:"subscriber_id"`
	EventType      string `json:"event_type"`
	EventID        string `json:"event_id"`
	Status         string `json:"status"`
	AttemptCount   int    `json:"attempt_count"`
	MaxAttempts    int    `json:"max_attempts"`
	NextRetryAt    string `json:"next_retry_at,omitempty"`
	ResponseStatus int    `json:"response_status,omitempty"`
	LatencyMS      int64  `json:"latency_ms,omitempty"`
	LastError      string `json:"last_error,omitempty"`
}

type deliveryList struct {
	Deliveries []deliveryView `json:"deliveries"`
}

// deliveryCmd groups delivery inspection and retry commands
var deliveryCmd = &cobra.Command{
	Use:   "delivery",
	Short: "Inspect and retry webhook deliveries",
}

var deliveryGetCmd = &cobra.Command{
	Use:   "get <delivery-id>",
	Short: "Show a single delivery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result deliveryView
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&result).
			SetError(&apiError{}).
			Get("/v1/deliveries/" + args[0])
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.IsError() {
			return apiErrorf(resp)
		}

		if outputJSON {
			printOutput(result)
		} else {
			printDelivery(result)
		}
		return nil
	},
}

var deliveryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List deliveries for an event",
	RunE: func(cmd *cobra.Command, args []string) error {
		if listEventID == "" {
			return fmt.Errorf("--event is required")
		}

		req := newClient().R().
			SetContext(cmd.Context()).
			SetQueryParam("event_id", listEventID).
			SetQueryParam("limit", fmt.Sprint(listLimit))
		if listStatus != "" {
			req.SetQueryParam("status", listStatus)
		}

		var result deliveryList
		resp, err := req.SetResult(&result).SetError(&apiError{}).Get("/v1/deliveries")
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.IsError() {
			return apiErrorf(resp)
		}

		if outputJSON {
			printOutput(result)
			return nil
		}
		if len(result.Deliveries) == 0 {
			fmt.Println("No deliveries found")
			return nil
		}
		for _, d := range result.Deliveries {
			fmt.Printf("%s  %-10s  attempts=%d/%d  subscriber=%s\n",
				d.ID, d.Status, d.AttemptCount, d.MaxAttempts, d.SubscriberID)
		}
		return nil
	},
}

var deliveryRetryCmd = &cobra.Command{
	Use:   "retry <delivery-id>",
	Short: "Queue a failed or retrying delivery for another attempt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var result deliveryView
		resp, err := newClient().R().
			SetContext(cmd.Context()).
			SetResult(&result).
			SetError(&apiError{}).
			Post("/v1/deliveries/" + args[0] + "/retry")
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		if resp.IsError() {
			return apiErrorf(resp)
		}

		if outputJSON {
			printOutput(result)
		} else {
			fmt.Printf("Delivery %s queued for retry (attempt %d/%d)\n",
				result.ID, result.AttemptCount, result.MaxAttempts)
		}
		return nil
	},
}

func printDelivery(d deliveryView) {
	fmt.Printf("ID:            %s\n", d.ID)
	fmt.Printf("Event:         %s (%s)\n", d.EventID, d.EventType)
	fmt.Printf("Subscriber:    %s\n", d.SubscriberID)
	fmt.Printf("Status:        %s\n", d.Status)
	fmt.Printf("Attempts:      %d/%d\n", d.AttemptCount, d.MaxAttempts)
	if d.NextRetryAt != "" {
		fmt.Printf("Next retry:    %s\n", d.NextRetryAt)
	}
	if d.ResponseStatus != 0 {
		fmt.Printf("Last response: HTTP %d (%dms)\n", d.ResponseStatus, d.LatencyMS)
	}
	if d.LastError != "" {
		fmt.Printf("Last error:    %s\n", d.LastError)
	}
}

func init() {
	deliveryListCmd.Flags().StringVar(&listEventID, "event", "", "event ID to list deliveries for")
	deliveryListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, retrying, delivered, failed)")
	deliveryListCmd.Flags().IntVar(&listLimit, "limit", 50, "maximum number of deliveries to return")

	deliveryCmd.AddCommand(deliveryGetCmd)
	deliveryCmd.AddCommand(deliveryListCmd)
	deliveryCmd.AddCommand(deliveryRetryCmd)
	rootCmd.AddCommand(deliveryCmd)
}
