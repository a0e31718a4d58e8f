package format

import (
	"regexp"
	"strings"
)

var (
	// Prefix group keeps the character that allowed the match so it can be
	// written back; RE2 has no lookbehind. Brackets never enter a URL so the
	// produced [url](url) is always recognized as a link again.
	bareURLPattern      = regexp.MustCompile(`(^|[\s(])(https?://[^\s)<\[\]]+)`)
	trailingPunctuation = regexp.MustCompile(`[),.;!?]+$`)

	bulletReferenceLine   = regexp.MustCompile(`^\s*[-*]\s+([^\n-]+?)\s+-\s+(https?://\S+)(\s+-\s+.*)?$`)
	bulletPrefix          = regexp.MustCompile(`^\s*[-*]\s+`)
	numberedReferenceLine = regexp.MustCompile(`^\s*\d+\.\s+([^\n-]+?)\s+-\s+(https?://\S+)(\s+-\s+.*)?$`)
	numberedPrefix        = regexp.MustCompile(`^\s*\d+\.\s+`)
)

// LinkifyPlainURLs wraps bare http(s) URLs as [url](url). Trailing
// punctuation is moved outside the link. Text inside existing markdown links
// is copied untouched, so applying it twice equals applying it once.
func LinkifyPlainURLs(text string) string {
	var b strings.Builder
	last := 0
	for _, link := range markdownLinkPattern.FindAllStringIndex(text, -1) {
		linkifySegment(&b, text[last:link[0]], last == 0)
		b.WriteString(text[link[0]:link[1]])
		last = link[1]
	}
	linkifySegment(&b, text[last:], last == 0)
	return b.String()
}

// linkifySegment linkifies text between markdown links. A URL glued to the
// end of a preceding link is left alone.
func linkifySegment(b *strings.Builder, segment string, atStart bool) {
	last := 0
	for _, m := range bareURLPattern.FindAllStringSubmatchIndex(segment, -1) {
		prefix := segment[m[2]:m[3]]
		url := segment[m[4]:m[5]]
		cleaned := trailingPunctuation.ReplaceAllString(url, "")
		if (prefix == "" && !atStart) || !hasHost(cleaned) {
			continue
		}

		b.WriteString(segment[last:m[0]])
		b.WriteString(prefix)
		b.WriteString("[" + cleaned + "](" + cleaned + ")")
		b.WriteString(url[len(cleaned):])
		last = m[1]
	}
	b.WriteString(segment[last:])
}

func hasHost(url string) bool {
	i := strings.Index(url, "://")
	return i >= 0 && i+3 < len(url)
}

// NormalizeReferenceFormatting rewrites informal reference lines such as
// "- Name - https://url - description" into "- [Name](url) description".
// Numbered items keep their number. Other lines pass through.
func NormalizeReferenceFormatting(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if rewritten, ok := rewriteReferenceLine(line, bulletReferenceLine, bulletPrefix, "- "); ok {
			lines[i] = rewritten
			continue
		}
		if rewritten, ok := rewriteReferenceLine(line, numberedReferenceLine, numberedPrefix, "1. "); ok {
			lines[i] = rewritten
		}
	}
	return strings.Join(lines, "\n")
}

func rewriteReferenceLine(line string, pattern, prefixPattern *regexp.Regexp, defaultPrefix string) (string, bool) {
	match := pattern.FindStringSubmatch(line)
	if match == nil {
		return "", false
	}

	name := strings.TrimSpace(match[1])
	url := trailingPunctuation.ReplaceAllString(strings.TrimSpace(match[2]), "")
	desc := strings.TrimSpace(match[3])
	desc = strings.TrimSpace(strings.TrimPrefix(desc, "-"))

	prefix := prefixPattern.FindString(line)
	if prefix == "" {
		prefix = defaultPrefix
	}

	out := prefix + "[" + name + "](" + url + ")"
	if desc != "" {
		out += " " + desc
	}
	return out, true
}

// FormatAssistantContent is the display pipeline for assistant answers.
func FormatAssistantContent(text string) string {
	return LinkifyPlainURLs(NormalizeReferenceFormatting(text))
}
