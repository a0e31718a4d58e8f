// Package format extracts citations from tool results and turns model output
// into markdown with clickable links.
package format

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/getfairai/sifter/llm"
)

// MaxAppendedReferences caps the reference list appended to an answer.
const MaxAppendedReferences = 6

const defaultReferenceTitle = "Reference"

var (
	markdownLinkPattern = regexp.MustCompile(`(?i)\[[^\]]+\]\((https?://[^)\s]+)\)`)
	plainURLPattern     = regexp.MustCompile(`(?i)https?://[^\s)\]]+`)
)

// Reference is a citation taken from a search result.
type Reference struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractReferences collects {title, url} pairs from tool results, newest
// tool message first. Payloads that are not JSON or carry no "references"
// array are skipped. URLs are deduplicated and must start with "http".
func ExtractReferences(messages []llm.Message) []Reference {
	var collected []Reference
	seen := make(map[string]bool)

	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role != llm.RoleTool {
			continue
		}
		if !gjson.Valid(msg.Content) {
			continue
		}
		refs := gjson.Get(msg.Content, "references")
		if !refs.IsArray() {
			continue
		}

		refs.ForEach(func(_, ref gjson.Result) bool {
			url := strings.TrimSpace(ref.Get("url").String())
			if !strings.HasPrefix(url, "http") || seen[url] {
				return true
			}
			title := strings.TrimSpace(ref.Get("title").String())
			if title == "" {
				title = defaultReferenceTitle
			}
			seen[url] = true
			collected = append(collected, Reference{Title: title, URL: url})
			return true
		})
	}

	return collected
}

// HasLinks reports whether text contains a markdown link or a bare URL.
func HasLinks(text string) bool {
	return markdownLinkPattern.MatchString(text) || plainURLPattern.MatchString(text)
}

// EnsureClickableReferences appends up to MaxAppendedReferences references
// under a "References:" heading. Text that already contains any link or URL
// is returned unchanged, which also makes the function idempotent.
func EnsureClickableReferences(text string, refs []Reference) string {
	if len(refs) == 0 || HasLinks(text) {
		return text
	}

	lines := make([]string, 0, MaxAppendedReferences)
	for _, ref := range refs {
		if !strings.HasPrefix(ref.URL, "http") {
			continue
		}
		title := strings.TrimSpace(ref.Title)
		if title == "" {
			title = defaultReferenceTitle
		}
		lines = append(lines, "- ["+title+"]("+ref.URL+")")
		if len(lines) >= MaxAppendedReferences {
			break
		}
	}
	if len(lines) == 0 {
		return text
	}

	block := "References:\n" + strings.Join(lines, "\n")
	if text == "" {
		return block
	}
	return text + "\n\n" + block
}
