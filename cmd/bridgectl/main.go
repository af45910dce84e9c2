package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag   string
	tokenFlag string
	rootCmd   = &cobra.Command{
		Use:   "bridgectl",
		Short: "CLI client for the bridge service REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:10000", "Bridge service base URL")
	rootCmd.PersistentFlags().StringVarP(&tokenFlag, "token", "t", "", "Dashboard token")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show connection status",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(tokenFlag, apiFlag+"/status", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(statusCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Probe service liveness",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := doGet(tokenFlag, apiFlag+"/healthz", nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	rootCmd.AddCommand(healthCmd)

	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats by latest activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, _ := cmd.Flags().GetString("days")
			query := map[string]string{}
			if days != "" {
				query["days"] = days
			}
			data, err := doGet(tokenFlag, apiFlag+"/chats", query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	chatsCmd.Flags().StringP("days", "d", "", "Restrict to the last N days")
	rootCmd.AddCommand(chatsCmd)

	messagesCmd := &cobra.Command{
		Use:   "messages",
		Short: "List stored messages, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, _ := cmd.Flags().GetString("chat")
			limit, _ := cmd.Flags().GetString("limit")
			days, _ := cmd.Flags().GetString("days")
			query := map[string]string{}
			if chatID != "" {
				query["chatId"] = chatID
			}
			if limit != "" {
				query["limit"] = limit
			}
			if days != "" {
				query["days"] = days
			}
			data, err := doGet(tokenFlag, apiFlag+"/messages", query)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	messagesCmd.Flags().StringP("chat", "c", "", "Chat ID filter")
	messagesCmd.Flags().StringP("limit", "l", "", "Max records to return")
	messagesCmd.Flags().StringP("days", "d", "", "Restrict to the last N days")
	rootCmd.AddCommand(messagesCmd)

	var to, body string
	sendCmd := &cobra.Command{
		Use:   "send",
		Short: "Send an outbound message",
		RunE: func(cmd *cobra.Command, args []string) error {
			if to == "" || body == "" {
				return fmt.Errorf("--to and --body required")
			}
			payload := map[string]interface{}{"to": to, "body": body}
			data, err := doPostJSON(tokenFlag, apiFlag+"/send", payload)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(data))
			return nil
		},
	}
	sendCmd.Flags().StringVar(&to, "to", "", "Recipient chat ID (required)")
	sendCmd.Flags().StringVar(&body, "body", "", "Message text (required)")
	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("body")
	rootCmd.AddCommand(sendCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
