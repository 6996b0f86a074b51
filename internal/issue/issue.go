// Package issue turns classified errors into reports.
package issue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"kcore/internal/cwe"
	"kcore/internal/state"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

var (
	headerColor = color.New(color.FgRed, color.Bold).SprintFunc()
	bodyColor   = color.New(color.FgRed).SprintFunc()
	whereColor  = color.New(color.FgYellow).SprintFunc()
)

type Issue struct {
	Code        cwe.Code `json:"code"`
	CWE         string   `json:"cwe"`
	Title       string   `json:"title"`
	Description string   `json:"description"`

	Message  string `json:"message"`
	StateID  uint64 `json:"state_id"`
	ParentID uint64 `json:"parent_id"`
	Depth    int    `json:"depth"`
	PC       uint64 `json:"pc"`
	Crumbs   string `json:"crumbs,omitempty"`
}

// New classifies msg and attaches the location of st.
func New(st *state.State, msg string) *Issue {
	code := cwe.Classify(msg)
	is := &Issue{
		Code:     code,
		CWE:      code.String(),
		Message:  msg,
		StateID:  st.ID,
		ParentID: st.ParentID,
		Depth:    st.Depth,
		PC:       st.PC,
	}
	if data := cwe.Lookup(code); data != nil {
		is.Title = data.Title
		is.Description = data.Description
	}
	return is
}

func (is *Issue) String() string {
	title := is.Title
	if title == "" {
		title = "Unclassified error"
	}
	cweDescription := fmt.Sprintf("%s: %s\n", headerColor(is.CWE), headerColor(title))
	if is.Description != "" {
		cweDescription += bodyColor(is.Description) + "\n"
	}
	where := fmt.Sprintf("state #%d (parent #%d, depth %d) at %#x\n%s\n",
		is.StateID, is.ParentID, is.Depth, is.PC, is.Message)
	if is.Crumbs != "" {
		where += fmt.Sprintf("replay log: %s\n", is.Crumbs)
	}
	return cweDescription + whereColor(where)
}

// FileName is the report name of the index-th completed path.
func FileName(index int) string {
	return fmt.Sprintf("path%06d.report.json", index)
}

// Save writes the report as JSON into dir.
func (is *Issue) Save(dir string, index int) (string, error) {
	data, err := json.MarshalIndent(is, "", "  ")
	if err != nil {
		return "", errors.Wrapf(err, "marshal report of state %d", is.StateID)
	}
	path := filepath.Join(dir, FileName(index))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", path)
	}
	return path, nil
}

// Load reads a report written by Save.
func Load(path string) (*Issue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	var is Issue
	if err := json.Unmarshal(data, &is); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	return &is, nil
}
