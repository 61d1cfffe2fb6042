// Package report renders the outcome of a remediation run as JSON and
// stores it on disk or in S3-compatible object storage.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/iglennon-qualys/ResetAssetGroups/pkg/remediate"
)

// Summary is the serialized form of a run.
type Summary struct {
	RunID      string         `json:"run_id"`
	APIURL     string         `json:"api_url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Target     string         `json:"target_impact"`
	Simulate   bool           `json:"simulate"`
	Counts     map[string]int `json:"counts"`
	Error      string         `json:"error,omitempty"`
	Groups     []GroupEntry   `json:"groups"`
}

// GroupEntry is one line of the summary.
type GroupEntry struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PreviousImpact string `json:"previous_impact"`
	Action         string `json:"action"`
	Message        string `json:"message,omitempty"`
}

// FromResult builds a summary; runErr is the error the run returned, if any.
func FromResult(res *remediate.Result, apiURL string, runErr error) Summary {
	s := Summary{
		APIURL: apiURL,
		Counts: map[string]int{},
		Groups: []GroupEntry{},
	}
	if runErr != nil {
		s.Error = runErr.Error()
	}
	if res == nil {
		return s
	}
	s.RunID = res.RunID
	s.StartedAt = res.StartedAt
	s.FinishedAt = res.FinishedAt
	s.Target = string(res.Target)
	s.Simulate = res.Simulate
	for _, o := range res.Outcomes {
		s.Counts[string(o.Action)]++
		s.Groups = append(s.Groups, GroupEntry{
			ID:             o.Group.ID,
			Title:          o.Group.Title,
			PreviousImpact: o.Group.BusinessImpact,
			Action:         string(o.Action),
			Message:        o.Message,
		})
	}
	return s
}

// WriteJSON writes s as indented JSON.
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteFile writes s to path, replacing it atomically.
func WriteFile(path string, s Summary) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.json")
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := s.WriteJSON(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
