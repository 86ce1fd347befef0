// brewpass is the operator CLI: customers, points, redemptions, and gift
// cards, all through the server's /v1/admin API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func (c *client) run(method, path string, payload any) error {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}
	status, respBody, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	if status/100 != 2 {
		return fmt.Errorf("request failed: status=%d body=%s", status, string(respBody))
	}
	c.print(status, respBody)
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("BREWPASS_ADMIN_URL", "http://localhost:8080")
		apiKey  = envOr("BREWPASS_ADMIN_KEY", "")
		out     = envOr("BREWPASS_OUT", "text")
	)

	cl := &client{HTTP: &http.Client{Timeout: 30 * time.Second}}

	root := &cobra.Command{
		Use:   "brewpass",
		Short: "Operator CLI for the loyalty platform (talks to /v1/admin)",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				return fmt.Errorf("missing API key (flag --admin-api-key or env BREWPASS_ADMIN_KEY)")
			}
			cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "admin API base URL (env BREWPASS_ADMIN_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "admin API key (env BREWPASS_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "output format: json|text")

	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check server liveness",
		// Liveness needs no credentials.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/healthz", nil)
		},
	}

	// ─── customers ───
	customersCmd := &cobra.Command{Use: "customers", Short: "Manage loyalty customers"}

	var createSerial, createName string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a customer (serial generated when omitted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/customers", map[string]string{
				"serial_number": createSerial,
				"display_name":  createName,
			})
		},
	}
	createCmd.Flags().StringVar(&createSerial, "serial", "", "serial number")
	createCmd.Flags().StringVar(&createName, "name", "", "display name")

	var listLimit, listOffset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List customers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/customers?limit="+strconv.Itoa(listLimit)+"&offset="+strconv.Itoa(listOffset), nil)
		},
	}
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "page size")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "page offset")

	getCmd := &cobra.Command{
		Use:   "get <serial>",
		Short: "Show a customer with available reward tiers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/customers/"+args[0], nil)
		},
	}

	purchaseCmd := &cobra.Command{
		Use:   "purchase <serial>",
		Short: "Record a purchase (adds one point)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/customers/"+args[0]+"/purchase", nil)
		},
	}

	var redeemType string
	var redeemThreshold int
	redeemCmd := &cobra.Command{
		Use:   "redeem <serial>",
		Short: "Redeem an available reward tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/customers/"+args[0]+"/redeem", map[string]any{
				"reward_type": redeemType,
				"threshold":   redeemThreshold,
			})
		},
	}
	redeemCmd.Flags().StringVar(&redeemType, "type", "coffee", "reward type: coffee|meal")
	redeemCmd.Flags().IntVar(&redeemThreshold, "threshold", 0, "point threshold to redeem")
	_ = redeemCmd.MarkFlagRequired("threshold")

	var passOut string
	passCmd := &cobra.Command{
		Use:   "pass <serial>",
		Short: "Download the signed pass artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/customers/"+args[0]+"/pass", nil)
			if err != nil {
				return err
			}
			if status != http.StatusOK {
				return fmt.Errorf("pass download failed: status=%d body=%s", status, string(body))
			}
			name := passOut
			if name == "" {
				name = args[0] + ".pkpass"
			}
			if err := os.WriteFile(name, body, 0o644); err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d bytes)\n", name, len(body))
			return nil
		},
	}
	passCmd.Flags().StringVar(&passOut, "out-file", "", "output file (default <serial>.pkpass)")

	customersCmd.AddCommand(createCmd, listCmd, getCmd, purchaseCmd, redeemCmd, passCmd)

	// ─── gift cards ───
	giftcardsCmd := &cobra.Command{Use: "giftcards", Short: "Manage stored-value cards"}

	var gcName string
	var gcInitial int
	gcCreateCmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a gift card",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/giftcards", map[string]any{
				"display_name":  gcName,
				"initial_cents": gcInitial,
			})
		},
	}
	gcCreateCmd.Flags().StringVar(&gcName, "name", "", "card holder name")
	gcCreateCmd.Flags().IntVar(&gcInitial, "cents", 0, "initial balance in cents")

	gcGetCmd := &cobra.Command{
		Use:   "get <serial>",
		Short: "Show a gift card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("GET", "/v1/admin/giftcards/"+args[0], nil)
		},
	}

	var gcDelta int
	gcAdjustCmd := &cobra.Command{
		Use:   "adjust <serial>",
		Short: "Apply a signed balance delta in cents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cl.run("POST", "/v1/admin/giftcards/"+args[0]+"/adjust", map[string]any{
				"delta_cents": gcDelta,
			})
		},
	}
	gcAdjustCmd.Flags().IntVar(&gcDelta, "cents", 0, "delta in cents (negative spends)")
	_ = gcAdjustCmd.MarkFlagRequired("cents")

	giftcardsCmd.AddCommand(gcCreateCmd, gcGetCmd, gcAdjustCmd)

	root.AddCommand(pingCmd, customersCmd, giftcardsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
