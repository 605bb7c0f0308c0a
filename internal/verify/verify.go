// Package verify checks credentials, configuration and provider scopes
// before any fetch runs.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/graphsync/internal/config"
	"github.com/alfredjeanlab/graphsync/internal/model"
	"github.com/alfredjeanlab/graphsync/internal/provider"
)

// projectKeyPattern matches tracker project keys such as "SEC" or "OPS2".
var projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// KnownCollections are the collection names the pipeline can synchronize.
var KnownCollections = []string{
	model.CollectionIssues,
	model.CollectionMembers,
	model.CollectionTeams,
	model.CollectionTeamMembers,
	model.CollectionTeamRepos,
	model.CollectionRepos,
}

// Verifier checks provider access for a configured set of projects.
type Verifier struct {
	client   provider.Client
	projects []string
}

// New creates a Verifier. projects is the configured list of project keys
// in configuration order.
func New(client provider.Client, projects []string) *Verifier {
	return &Verifier{client: client, projects: projects}
}

// VerifyAuthentication makes the lightest authenticated call the tracker
// offers and checks that every configured project is visible.
func (v *Verifier) VerifyAuthentication(ctx context.Context) error {
	projects, err := v.client.FetchProjects(ctx)
	if err != nil {
		return model.AuthenticationError(err, statusCode(err))
	}

	fetched := make(map[string]bool, len(projects))
	for _, p := range projects {
		fetched[p.Key] = true
	}
	var missing []string
	for _, key := range v.projects {
		if !fetched[key] {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		encoded, err := json.Marshal(missing)
		if err != nil {
			return fmt.Errorf("encode missing project keys: %w", err)
		}
		return model.ConfigValidationError(
			fmt.Sprintf("The following project key(s) are invalid: %s. Ensure the authenticated user has access to this project.", encoded),
			missing...,
		)
	}
	return nil
}

// VerifyDirectory checks the directory installation's scopes and account.
func (v *Verifier) VerifyDirectory(ctx context.Context) error {
	perms, err := v.client.GetPermissions(ctx)
	if err != nil {
		return model.AuthenticationError(err, statusCode(err))
	}
	account, err := v.client.GetAccount(ctx)
	if err != nil {
		return model.AuthenticationError(err, statusCode(err))
	}
	return VerifyPermissions(perms, account)
}

// VerifyPermissions requires read access to members and metadata and an
// organization account.
func VerifyPermissions(perms *model.Permissions, account *model.Account) error {
	if perms == nil || !readable(perms.Members) {
		return model.ConfigValidationError("Integration requires read access to organization members.", "members")
	}
	if !readable(perms.Metadata) {
		return model.ConfigValidationError("Integration requires read access to repository metadata.", "metadata")
	}
	if account == nil || account.Type != "Organization" {
		accountType := ""
		if account != nil {
			accountType = account.Type
		}
		return model.ConfigValidationError("Integration supports only organization accounts.", accountType)
	}
	return nil
}

// ValidateInstallationID requires a numeric installation id.
func ValidateInstallationID(id string) error {
	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return model.ConfigValidationError("Installation id should be a number.", id)
	}
	return nil
}

// ValidateConfig checks cfg and reports every offending value at once.
func ValidateConfig(cfg *config.Config) error {
	var offending []string

	for _, c := range cfg.Collections {
		if !slices.Contains(KnownCollections, c) {
			offending = append(offending, "collection "+c)
		}
	}
	if slices.Contains(cfg.Collections, model.CollectionIssues) {
		if cfg.TrackerURL == "" {
			offending = append(offending, "GRAPHSYNC_TRACKER_URL")
		}
		if len(cfg.Projects) == 0 {
			offending = append(offending, "GRAPHSYNC_PROJECTS")
		}
	}
	for _, p := range cfg.Projects {
		if !projectKeyPattern.MatchString(p) {
			offending = append(offending, "project "+p)
		}
	}
	if usesDirectory(cfg.Collections) {
		if cfg.Organization == "" {
			offending = append(offending, "GRAPHSYNC_ORGANIZATION")
		}
		if cfg.InstallationID == "" {
			offending = append(offending, "GRAPHSYNC_INSTALLATION_ID")
		}
	}
	if cfg.InstallationID != "" {
		if err := ValidateInstallationID(cfg.InstallationID); err != nil {
			offending = append(offending, "installation id "+cfg.InstallationID)
		}
	}

	if len(offending) > 0 {
		return model.ConfigValidationError("invalid configuration: "+strings.Join(offending, ", "), offending...)
	}
	return nil
}

func usesDirectory(collections []string) bool {
	for _, c := range collections {
		if c != model.CollectionIssues && slices.Contains(KnownCollections, c) {
			return true
		}
	}
	return false
}

func readable(scope string) bool {
	return scope == "read" || scope == "write"
}

func statusCode(err error) int {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
