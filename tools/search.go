// Knowledge-base search tool.
//
// Information Hiding:
// - Argument parsing (tolerant of non-string query values)
// - Skill-specific query shaping
// - Search endpoint selection per skill

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/getfairai/sifter/skill"
)

// SearchToolName is the only tool name the model is offered.
const SearchToolName = "search_stylus_docs"

// StatusSearching is reported right before the search request.
const StatusSearching = "Searching Stylus knowledge base..."

const searchErrorLabel = "Search API error"

// Searcher runs a knowledge-base search for a skill path.
type Searcher interface {
	Search(ctx context.Context, skillPath, query string) (json.RawMessage, error)
}

// SearchArgs are the arguments the model passes to the search tool.
type SearchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Natural language query describing the Stylus research question."`
}

// SearchTool queries the Stylus knowledge base.
type SearchTool struct {
	searcher Searcher
	catalog  *skill.Catalog
}

// NewSearchTool creates a search tool backed by searcher.
func NewSearchTool(searcher Searcher, catalog *skill.Catalog) *SearchTool {
	return &SearchTool{searcher: searcher, catalog: catalog}
}

// Metadata returns the tool metadata.
func (t *SearchTool) Metadata() ToolMetadata {
	return ToolMetadata{
		Name:        SearchToolName,
		Description: "Retrieves relevant Arbitrum Stylus ecosystem context. Use this before final answers when evidence is needed.",
		Parameters:  SchemaFrom(&SearchArgs{}),
		ErrorLabel:  searchErrorLabel,
	}
}

// Execute runs the search and returns the backend's JSON verbatim.
func (t *SearchTool) Execute(ctx context.Context, call Call) (ToolResult, error) {
	args := string(call.Arguments)
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if !gjson.Valid(args) {
		return FailureResult(errors.New("invalid arguments: malformed JSON")), nil
	}

	query := strings.TrimSpace(gjson.Get(args, "query").String())
	seed := strings.TrimSpace(call.SeedPrompt)
	if call.SkillID == skill.IDPortingAuditor && seed != "" {
		query = query + "\n\nPrimary target context: " + seed
	}

	call.OnStatus.Notify(StatusSearching)

	raw, err := t.searcher.Search(ctx, t.catalog.SearchPath(call.SkillID), query)
	if err != nil {
		return FailureResult(err), nil
	}
	return SuccessResult(string(raw)), nil
}

// Verify SearchTool implements Tool
var _ Tool = (*SearchTool)(nil)
