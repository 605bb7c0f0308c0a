package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/ui"
)

// Exit codes by error kind, so wrappers can tell configuration mistakes
// from transient failures.
const (
	exitFailure         = 1
	exitAuthentication  = 3
	exitConfig          = 4
	exitIncompleteFetch = 5
	exitPublish         = 6
)

func exitCode(err error) int {
	switch model.KindOf(err) {
	case model.KindAuthentication:
		return exitAuthentication
	case model.KindConfigValidation:
		return exitConfig
	case model.KindIncompleteFetch:
		return exitIncompleteFetch
	case model.KindPublish:
		return exitPublish
	}
	return exitFailure
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// summaryOutput is the JSON form of one unit's outcome.
type summaryOutput struct {
	Collection string                  `json:"collection"`
	Summary    *model.OperationSummary `json:"summary,omitempty"`
	Kind       model.ErrorKind         `json:"kind,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// printSummaries prints summaries in order and returns the joined errors.
func printSummaries(units []string, summaries map[string]model.OperationSummary, errs map[string]error) error {
	var out []summaryOutput
	var failed []error
	st := styler()
	for _, unit := range units {
		if err, ok := errs[unit]; ok {
			failed = append(failed, fmt.Errorf("%s: %w", unit, err))
			out = append(out, summaryOutput{Collection: unit, Kind: model.KindOf(err), Error: err.Error()})
			if !jsonOutput {
				fmt.Printf("%s\n  %s\n", unit, st.Deleted("failed: "+err.Error()))
			}
			continue
		}
		s := summaries[unit]
		out = append(out, summaryOutput{Collection: unit, Summary: &s})
		if !jsonOutput {
			if err := ui.PrintSummary(os.Stdout, unit, s, st); err != nil {
				return err
			}
		}
	}
	if jsonOutput {
		if err := printJSON(out); err != nil {
			return err
		}
	}
	return errors.Join(failed...)
}
