package conversation

import (
	"regexp"
)

// verdictRewritePrompt asks the model to restructure its previous answer.
const verdictRewritePrompt = `Restructure your previous answer into this exact template. Keep the facts and links you already gave; do not invent new sources.

Stance: <port now | pilot first | defer>
Impact: <high_stylus_benefit | moderate_stylus_benefit | low_stylus_impact>
Drivers:
- <why this contract does or does not benefit from Stylus>
Risks:
- <migration, audit or interoperability caveats>
Evidence:
- [<title>](<url>)`

// Best-effort patterns. They recognize the template and the common phrasings
// of a verdict; they are not a classifier.
var (
	stancePattern = regexp.MustCompile(`(?i)\b(stance|verdict|recommendation)\s*[:\-]|\b(port now|pilot first|defer)\b`)
	impactPattern = regexp.MustCompile(`(?i)\b(high_stylus_benefit|moderate_stylus_benefit|low_stylus_impact)\b|\bimpact(\s+class)?\s*[:\-]`)

	linkedBulletPattern = regexp.MustCompile(`(?m)^\s*(?:[-*]|\d+\.)\s+\[[^\]]+\]\(https?://[^)\s]+\)`)
	reasoningPattern    = regexp.MustCompile(`(?i)\b(because|since|therefore|however|driver|drivers|risk|risks|tradeoff|trade-off|benefit|cost|gas|performance|compute|memory)\b`)
)

// minLinkedBullets is how many linked bullets make an answer look like a
// bare reference list.
const minLinkedBullets = 3

// HasVerdict reports whether text names both a stance and an impact class.
func HasVerdict(text string) bool {
	return stancePattern.MatchString(text) && impactPattern.MatchString(text)
}

// IsBareReferenceList reports whether text is mostly linked bullets with no
// reasoning vocabulary.
func IsBareReferenceList(text string) bool {
	if len(linkedBulletPattern.FindAllStringIndex(text, -1)) < minLinkedBullets {
		return false
	}
	return !reasoningPattern.MatchString(linkedBulletPattern.ReplaceAllString(text, ""))
}

// NeedsVerdictRewrite reports whether an auditor answer should be restructured.
func NeedsVerdictRewrite(text string) bool {
	return !HasVerdict(text) || IsBareReferenceList(text)
}
