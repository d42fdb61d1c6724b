package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashpect/webserv/pkg/client"
)

var (
	probeMethod  string
	probeTimeout time.Duration
	probeBody    bool
)

var probeCmd = &cobra.Command{
	Use:   "probe <url>",
	Short: "Send one request to a running server and report the response",
	Args:  cobra.ExactArgs(1),
	RunE:  runProbe,
}

func init() {
	probeCmd.Flags().StringVarP(&probeMethod, "method", "X", http.MethodGet, "Request method")
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 5*time.Second, "Request timeout")
	probeCmd.Flags().BoolVar(&probeBody, "body", false, "Print the response body")
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	c := client.NewClient(client.WithTimeout(probeTimeout), client.WithoutRedirects())
	res, err := client.Probe(cmd.Context(), c, strings.ToUpper(probeMethod), args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, res)
	if probeBody {
		out.Write(res.Body)
	}
	if res.Status >= http.StatusInternalServerError {
		return fmt.Errorf("server answered %d", res.Status)
	}
	return nil
}
