package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/quailyquaily/taskwarden/api"
	"github.com/quailyquaily/taskwarden/internal/clifmt"
)

func newReviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review pending approval requests interactively",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runReview()
		},
	}
	cmd.Flags().String("server", "", "gate daemon base URL (default http://127.0.0.1:8787)")
	_ = viper.BindPFlag("review.server", cmd.Flags().Lookup("server"))
	return cmd
}

func runReview() error {
	base := strings.TrimSpace(viper.GetString("review.server"))
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	base = strings.TrimRight(base, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	pending, err := fetchPending(client, base)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println(clifmt.Dim("No pending approval requests."))
		return nil
	}

	in := bufio.NewReader(os.Stdin)
	for i, v := range pending {
		fmt.Println(clifmt.Headerf("[%d/%d] %s", i+1, len(pending), v.RequestID))
		fmt.Printf("  task:       %s\n", v.Description)
		fmt.Printf("  risk:       %s (confidence %d%%)\n", clifmt.Level(v.RiskLevel), v.ConfidencePct)
		for _, f := range v.RiskFactors {
			fmt.Printf("    - %s\n", clifmt.Dim(f))
		}
		fmt.Printf("  expires in: %ds\n", v.SecondsRemaining)

		decision, notes, skip := promptDecision(in)
		if skip {
			fmt.Println(clifmt.Dim("skipped"))
			continue
		}
		status, err := respond(client, base, v.RequestID, decision, notes)
		if err != nil {
			fmt.Println(clifmt.Fail("error: " + err.Error()))
			continue
		}
		switch status {
		case "approved":
			fmt.Println(clifmt.Success("approved"))
		case "denied":
			fmt.Println(clifmt.Fail("denied"))
		default:
			fmt.Println(clifmt.Warn("already " + status))
		}
	}
	return nil
}

func promptDecision(in *bufio.Reader) (approved bool, notes string, skip bool) {
	for {
		fmt.Print(clifmt.Key("approve? [y/n/s(kip)]: "))
		line, err := in.ReadString('\n')
		if err != nil {
			return false, "", true
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, readNotes(in), false
		case "n", "no":
			return false, readNotes(in), false
		case "s", "skip", "":
			return false, "", true
		}
	}
}

func readNotes(in *bufio.Reader) string {
	fmt.Print(clifmt.Dim("notes (optional): "))
	line, err := in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func fetchPending(client *http.Client, base string) ([]api.ApprovalView, error) {
	resp, err := client.Get(base + "/api/approvals/pending")
	if err != nil {
		return nil, fmt.Errorf("fetch pending: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pending: server returned %d", resp.StatusCode)
	}
	var views []api.ApprovalView
	if err := json.NewDecoder(resp.Body).Decode(&views); err != nil {
		return nil, fmt.Errorf("fetch pending: %w", err)
	}
	return views, nil
}

func respond(client *http.Client, base, id string, approved bool, notes string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"request_id": id,
		"approved":   approved,
		"user_notes": notes,
	})
	if err != nil {
		return "", err
	}
	resp, err := client.Post(base+"/api/approvals/respond", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var rr struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &rr); err != nil {
		return "", err
	}
	return rr.Status, nil
}
