// Package skill defines the assistant's skills and resolves their system prompts.
package skill

import (
	"fmt"
	"strings"

	"github.com/armon/go-radix"

	"github.com/getfairai/sifter/llm"
)

// Skill identifiers.
const (
	IDResearch       = "sift-stylus-research"
	IDPortingAuditor = "sift-stylus-porting-auditor"
	IDCodeHelper     = "sift-stylus-code-helper"

	DefaultID = IDResearch

	idPrefix = "sift-stylus-"
)

// DefaultSystemPrompt is used when nothing more specific is configured or published.
const DefaultSystemPrompt = "You are Sifter. " +
	"Use available tools to gather evidence before final answers when needed. " +
	"Return concise, useful answers with references when available. " +
	"If evidence is weak or incomplete, state uncertainty clearly."

// Skill is an immutable assistant persona with its own search endpoint.
type Skill struct {
	ID               string
	Label            string
	ShortLabel       string
	Description      string
	SystemPrompt     string
	SearchPath       string
	SuggestedPrompts []string
}

// Option is the summary shown in skill pickers.
type Option struct {
	ID          string
	Label       string
	Description string
}

// Catalog holds the skills known at process start.
type Catalog struct {
	skills    map[string]Skill
	order     []string
	defaultID string
	// names indexes IDs, IDs without the common prefix and short labels.
	// Written only in NewCatalog.
	names *radix.Tree
}

func searchPath(id string) string {
	return fmt.Sprintf("/skills/%s/search", id)
}

// NewCatalog returns the built-in skill catalog.
func NewCatalog() *Catalog {
	builtin := []Skill{
		{
			ID:           IDResearch,
			Label:        "Stylus Research",
			ShortLabel:   "Research",
			Description:  "Evidence-backed answers with links across docs, repos, and community sources.",
			SystemPrompt: DefaultSystemPrompt,
			SearchPath:   searchPath(IDResearch),
			SuggestedPrompts: []string{
				"What are the newest Stylus tools and what do they do?",
				"I need references for test patterns in Stylus smart contracts.",
				"How do teams usually deploy and verify Stylus contracts now?",
				"What community projects are active in the Stylus ecosystem right now?",
			},
		},
		{
			ID:           IDPortingAuditor,
			Label:        "Porting Auditor",
			ShortLabel:   "Auditor",
			Description:  "Assess Solidity contracts for likely Stylus upside in a hybrid Solidity and Rust codebase.",
			SystemPrompt: DefaultSystemPrompt,
			SearchPath:   searchPath(IDPortingAuditor),
			SuggestedPrompts: []string{
				"Analyze https://github.com/Uniswap/v3-core/blob/main/contracts/UniswapV3Pool.sol and return a porting verdict.",
				"Analyze https://github.com/gmx-io/gmx-contracts and identify high_stylus_benefit vs low_stylus_impact targets.",
				"Analyze ./contracts and identify high_stylus_benefit vs low_stylus_impact targets.",
				"Given this contract URL, return: stance (port now/pilot first/defer), impact class, drivers, and caveats.",
				"Is this contract a strong Stylus candidate in a hybrid Solidity + Rust architecture? Give a direct verdict.",
			},
		},
		{
			ID:           IDCodeHelper,
			Label:        "Stylus Code Helper",
			ShortLabel:   "Code Helper",
			Description:  "Implementation-focused guidance for Stylus projects: debugging, architecture patterns, and practical integration advice (no full codegen).",
			SystemPrompt: DefaultSystemPrompt,
			SearchPath:   searchPath(IDCodeHelper),
			SuggestedPrompts: []string{
				"How should I structure a Stylus project with multiple Rust crates and ABI boundaries?",
				"What is the recommended pattern for handling storage in Stylus?",
				"How do I debug a failing Stylus contract call locally?",
				"What are common performance pitfalls when porting Solidity logic to Stylus?",
			},
		},
	}

	c := &Catalog{skills: make(map[string]Skill, len(builtin)), defaultID: DefaultID, names: radix.New()}
	for _, s := range builtin {
		c.skills[s.ID] = s
		c.order = append(c.order, s.ID)
		for _, name := range lookupNames(s) {
			c.names.Insert(name, s.ID)
		}
	}
	return c
}

func lookupNames(s Skill) []string {
	return []string{
		s.ID,
		strings.TrimPrefix(s.ID, idPrefix),
		strings.ReplaceAll(strings.ToLower(s.ShortLabel), " ", "-"),
	}
}

// Get returns the skill, falling back to the default for unknown IDs.
func (c *Catalog) Get(id string) Skill {
	if s, ok := c.skills[id]; ok {
		return s
	}
	return c.skills[c.defaultID]
}

// Has reports whether id names a known skill.
func (c *Catalog) Has(id string) bool {
	_, ok := c.skills[id]
	return ok
}

// Lookup resolves a user-typed skill name: an exact ID, the ID without the
// "sift-stylus-" prefix, a short label ("auditor", "code-helper") or any
// prefix of those that names exactly one skill.
func (c *Catalog) Lookup(name string) (Skill, bool) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
	if key == "" {
		return Skill{}, false
	}
	if id, ok := c.names.Get(key); ok {
		return c.skills[id.(string)], true
	}

	var match string
	ambiguous := false
	c.names.WalkPrefix(key, func(_ string, v interface{}) bool {
		id := v.(string)
		if match != "" && match != id {
			ambiguous = true
			return true
		}
		match = id
		return false
	})
	if match == "" || ambiguous {
		return Skill{}, false
	}
	return c.skills[match], true
}

// Default returns the default skill.
func (c *Catalog) Default() Skill {
	return c.skills[c.defaultID]
}

// Options lists skills in display order.
func (c *Catalog) Options() []Option {
	opts := make([]Option, 0, len(c.order))
	for _, id := range c.order {
		s := c.skills[id]
		opts = append(opts, Option{ID: s.ID, Label: s.Label, Description: s.Description})
	}
	return opts
}

// SearchPath returns the search path of the resolved skill.
func (c *Catalog) SearchPath(id string) string {
	return c.Get(id).SearchPath
}

// SuggestedPrompts returns the skill's prompts without duplicates.
func (c *Catalog) SuggestedPrompts(id string) []string {
	prompts := c.Get(id).SuggestedPrompts
	seen := make(map[string]bool, len(prompts))
	out := make([]string, 0, len(prompts))
	for _, p := range prompts {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// InitialAssistantMessage is the greeting shown when a skill is selected.
func (c *Catalog) InitialAssistantMessage(id string) llm.Message {
	s := c.Get(id)
	return llm.Message{
		Role:    llm.RoleAssistant,
		Content: fmt.Sprintf("Hi, you are in %s. Ask a question and I will prioritize source-backed guidance.", s.Label),
		SkillID: s.ID,
	}
}
