package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("fullname")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = prompt(cmd, "Password: ")
		}
		ctx, cancel := withTimeout(flags.Timeout)
		defer cancel()
		out, err := newClient(flags).do(ctx, http.MethodPost, "/api/register/", map[string]string{
			"email": email, "fullname": name, "password": password,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pretty(out))
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and print an access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = prompt(cmd, "Password: ")
		}
		ctx, cancel := withTimeout(flags.Timeout)
		defer cancel()
		out, err := newClient(flags).do(ctx, http.MethodPost, "/api/login/", map[string]string{
			"email": email, "password": password,
		})
		if err != nil {
			return err
		}
		var res struct {
			Tokens struct {
				Refresh string `json:"refresh"`
				Access  string `json:"access"`
			} `json:"tokens"`
		}
		if err := json.Unmarshal(out, &res); err != nil {
			return fmt.Errorf("decode login response: %w", err)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "export NETMANAGER_TOKEN=%s\n", res.Tokens.Access)
		fmt.Fprintf(w, "# refresh token: %s\n", res.Tokens.Refresh)
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh <refresh-token>",
	Short: "Exchange a refresh token for a new access token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := withTimeout(flags.Timeout)
		defer cancel()
		out, err := newClient(flags).do(ctx, http.MethodPost, "/api/token/refresh/", map[string]string{"refresh": args[0]})
		if err != nil {
			return err
		}
		var res struct {
			Access string `json:"access"`
		}
		if err := json.Unmarshal(out, &res); err != nil {
			return fmt.Errorf("decode refresh response: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "export NETMANAGER_TOKEN=%s\n", res.Access)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Run a speed test and print the quality tier",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, http.MethodGet, "/api/network-stats/")
	},
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run diagnostics and print an optimization report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getAndPrint(cmd, http.MethodPost, "/api/optimize-network/")
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent measurements recorded by the background monitor",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		q := url.Values{"limit": {strconv.Itoa(limit)}}
		return getAndPrint(cmd, http.MethodGet, "/api/network-stats/history?"+q.Encode())
	},
}

func getAndPrint(cmd *cobra.Command, method, path string) error {
	if flags.Token == "" {
		return fmt.Errorf("no access token: run `login` and export NETMANAGER_TOKEN, or pass --token")
	}
	ctx, cancel := withTimeout(flags.Timeout)
	defer cancel()
	out, err := newClient(flags).do(ctx, method, path, nil)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), pretty(out))
	return nil
}

func prompt(cmd *cobra.Command, label string) string {
	fmt.Fprint(cmd.OutOrStdout(), label)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimSpace(line)
}

func init() {
	registerCmd.Flags().String("email", "", "email address")
	registerCmd.Flags().String("fullname", "", "full name")
	registerCmd.Flags().String("password", "", "password (prompted when empty)")
	_ = registerCmd.MarkFlagRequired("email")
	_ = registerCmd.MarkFlagRequired("fullname")

	loginCmd.Flags().String("email", "", "email address")
	loginCmd.Flags().String("password", "", "password (prompted when empty)")
	_ = loginCmd.MarkFlagRequired("email")

	historyCmd.Flags().Int("limit", 20, "number of records")
}
