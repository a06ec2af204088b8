package api

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dastanaron/bookaimark/internal/apperr"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas, by file name without extension.
const (
	schemaBookmarkCreate = "bookmark_create"
	schemaBookmarkUpdate = "bookmark_update"
	schemaFolderCreate   = "folder_create"
	schemaFolderUpdate   = "folder_update"
	schemaAnalysisInput  = "analysis_input"
	schemaAnalysisBatch  = "analysis_batch"
	schemaTagsRequest    = "tags_request"
	schemaPlaybookCreate = "playbook_create"
	schemaPlaybookUpdate = "playbook_update"
	schemaCommentCreate  = "comment_create"
)

const maxReportedSchemaErrors = 5

type schemaSet map[string]*gojsonschema.Schema

func loadSchemas() (schemaSet, error) {
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, fmt.Errorf("read schemas: %w", err)
	}
	set := make(schemaSet, len(entries))
	for _, entry := range entries {
		data, err := schemaFS.ReadFile(path.Join("schemas", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry.Name(), err)
		}
		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", entry.Name(), err)
		}
		set[strings.TrimSuffix(entry.Name(), ".json")] = schema
	}
	return set, nil
}

// validate checks body against the named schema and returns a validation
// error listing the first violations.
func (s schemaSet) validate(name string, body []byte) error {
	schema, ok := s[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return apperr.Wrap(apperr.ErrValidation, "", "request body must be valid JSON", nil)
	}
	if result.Valid() {
		return nil
	}
	problems := make([]string, 0, maxReportedSchemaErrors)
	for i, e := range result.Errors() {
		if i == maxReportedSchemaErrors {
			break
		}
		problems = append(problems, e.String())
	}
	return apperr.Wrap(apperr.ErrValidation, "", strings.Join(problems, "; "), nil)
}
