package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

func newStateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Fetch world metrics from the running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := httpClient.Get(strings.TrimRight(baseURL, "/") + "/admin/v1/state")
			if err != nil {
				return err
			}
			return relay(cmd.OutOrStdout(), resp)
		},
	}
}

func newCmdCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cmd <json>",
		Short: "Submit a CMD message as the ADMIN actor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !json.Valid([]byte(args[0])) {
				return fmt.Errorf("argument is not valid json")
			}
			return postAdmin(cmd.OutOrStdout(), "/admin/v1/cmd", []byte(args[0]))
		},
	}
}

func postAdmin(w io.Writer, path string, body []byte) error {
	resp, err := httpClient.Post(strings.TrimRight(baseURL, "/")+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	return relay(w, resp)
}

// relay copies the response body to w and turns non-2xx into an error.
func relay(w io.Writer, resp *http.Response) error {
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: %s", resp.Request.URL.Path, resp.Status)
	}
	return nil
}

func printLine(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
