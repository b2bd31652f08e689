package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/filevault/backupd/internal/adminhttp"
	"github.com/filevault/backupd/internal/cliout"
)

var sessionsAddr string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions known to a running backupd instance",
	Long: `Fetch and print the session table from a running backupd instance's
admin HTTP endpoint (/debug/sessions).`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsAddr, "addr", "http://localhost:9090", "admin HTTP address of the running instance")
}

func runSessions(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(sessionsAddr + "/debug/sessions")
	if err != nil {
		return fmt.Errorf("fetch sessions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch sessions: unexpected status %s", resp.Status)
	}

	var sessions []adminhttp.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		return fmt.Errorf("decode sessions: %w", err)
	}

	cliout.PrintTable(os.Stdout, sessionTable(sessions))
	return nil
}

type sessionTable []adminhttp.SessionInfo

func (t sessionTable) Headers() []string {
	return []string{"Client ID", "Username", "RSA Key", "AES Key"}
}

func (t sessionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, s := range t {
		rows = append(rows, []string{s.ClientID, s.Username, boolMark(s.HasRSAKey), boolMark(s.HasAESKey)})
	}
	return rows
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
