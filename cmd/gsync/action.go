package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/graphsync/internal/action"
	"github.com/alfredjeanlab/graphsync/internal/model"
)

var actionCmd = &cobra.Command{
	Use:     "action [name]",
	Short:   "Execute a one-off action such as CREATE_ENTITY",
	GroupID: "pipeline",
	Long: `Execute an action against the provider and persist what it produced.

The action is read from --file (JSON, "-" for stdin) or built from flags.

Examples:
  gsync action CREATE_ENTITY --project SEC --summary "Rotate keys" --type Task
  gsync action --file action.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := actionFromFlags(cmd, args)
		if err != nil {
			return err
		}

		p, err := openPipeline()
		if err != nil {
			return err
		}
		defer p.Close()

		publisher := newPublisher(cfg)
		defer publisher.Close()

		result, err := action.NewDispatcher(p.client, p.persister, publisher, logger).Execute(cmd.Context(), a)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(result)
		}
		if result.ActionResult == nil {
			fmt.Printf("%s: nothing to do\n", a.Name)
			return nil
		}
		for _, issue := range result.ActionResult.Issues {
			fmt.Printf("Created %s (%s)\n", issue.Key, issue.ID)
		}
		return printSummaries([]string{a.Name}, map[string]model.OperationSummary{a.Name: *result.Operations}, nil)
	},
}

func init() {
	actionCmd.Flags().StringP("file", "f", "", "read the action as JSON from this file")
	actionCmd.Flags().String("project", "", "project key")
	actionCmd.Flags().String("summary", "", "issue summary")
	actionCmd.Flags().String("description", "", "issue description")
	actionCmd.Flags().String("type", "Task", "issue type")
	actionCmd.Flags().String("class", "", "entity class for the created issue")
}

func actionFromFlags(cmd *cobra.Command, args []string) (*action.Action, error) {
	file, _ := cmd.Flags().GetString("file")
	if file != "" {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, fmt.Errorf("read action: %w", err)
		}
		var a action.Action
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parse action: %w", err)
		}
		return &a, nil
	}

	if len(args) == 0 {
		return nil, errors.New("action name or --file is required")
	}
	a := &action.Action{Name: args[0]}
	a.Class, _ = cmd.Flags().GetString("class")
	a.Properties.Project, _ = cmd.Flags().GetString("project")
	a.Properties.Summary, _ = cmd.Flags().GetString("summary")
	a.Properties.Description, _ = cmd.Flags().GetString("description")
	a.Properties.IssueType, _ = cmd.Flags().GetString("type")
	if a.Name == action.CreateEntity && (a.Properties.Project == "" || a.Properties.Summary == "") {
		return nil, model.ConfigValidationError("--project and --summary are required for "+action.CreateEntity, "project", "summary")
	}
	return a, nil
}
