package prompt

import (
	"fmt"
	"strings"

	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/util"
)

const (
	DefaultItemChars  = 500
	DefaultTotalChars = 8000

	// TruncationMarker is appended when the combined content exceeds the cap
	TruncationMarker = "\n... (content truncated)"

	timestampLayout = "2006-01-02"
)

// Bundle is a compiled prompt plus the truncation applied
type Bundle struct {
	Text string

	// Items is the number of content items rendered
	Items int

	// ContentChars is the rendered content length before the overall cap
	ContentChars int

	// Truncated reports whether the content was cut at CutAt characters
	Truncated bool
	CutAt     int
}

// Compiler renders content and the attribute schema into a single prompt
type Compiler struct {
	itemChars  int
	totalChars int
}

// NewCompiler creates a compiler; non-positive caps fall back to defaults
func NewCompiler(itemChars, totalChars int) *Compiler {
	if itemChars <= 0 {
		itemChars = DefaultItemChars
	}
	if totalChars <= 0 {
		totalChars = DefaultTotalChars
	}
	return &Compiler{itemChars: itemChars, totalChars: totalChars}
}

// Compile renders items in the given order. It is pure and deterministic.
func (c *Compiler) Compile(items []model.ContentItem) Bundle {
	content := c.RenderContent(items)

	bundle := Bundle{
		Items:        len(items),
		ContentChars: len([]rune(content)),
	}

	if bundle.ContentChars > c.totalChars {
		content = string([]rune(content)[:c.totalChars]) + TruncationMarker
		bundle.Truncated = true
		bundle.CutAt = c.totalChars
	}

	bundle.Text = fmt.Sprintf(instructionTemplate, content)
	return bundle
}

// RenderContent renders one labeled line per item
func (c *Compiler) RenderContent(items []model.ContentItem) string {
	var b strings.Builder
	for _, item := range items {
		b.WriteString(c.RenderItem(item))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderItem renders a single item as
// "[KIND id] [YYYY-MM-DD] r/community: text"
func (c *Compiler) RenderItem(item model.ContentItem) string {
	timestamp := "unknown date"
	if !item.CreatedAt.IsZero() {
		timestamp = item.CreatedAt.UTC().Format(timestampLayout)
	}
	text := util.Truncate(util.CollapseSpace(item.Text), c.itemChars)
	return fmt.Sprintf("[%s %s] [%s] r/%s: %s", item.Kind.Label(), item.ID, timestamp, item.Community, text)
}

// instructionTemplate takes the rendered content as its only argument
const instructionTemplate = `Analyze the following Reddit posts and comments to create a detailed, evidence-based user persona.
Your analysis MUST be grounded in the provided text. Do not speculate.
If evidence for a field is not present, omit the field entirely.

Extract:
1. Demographics: age, occupation, location, relationship status, user tier, user archetype
2. Personality traits on integer scales of 1-10:
   - introvert_extrovert: Introvert (1) vs Extrovert (10)
   - intuition_sensing: Intuition (1) vs Sensing (10)
   - feeling_thinking: Feeling (1) vs Thinking (10)
   - perceiving_judging: Perceiving (1) vs Judging (10)
3. Motivations as integers 1-10: convenience, wellness, speed, preferences, comfort, dietary_needs
4. Behavioral patterns and habits
5. Frustrations and pain points
6. Goals and needs
7. One key quote taken verbatim from the user's content

For EVERY non-empty field you MUST cite the ids of the posts or comments that support it.
Use the id exactly as shown in square brackets (for "[POST abc123]" the id is "abc123").
Each citation includes an excerpt (max 200 characters) copied from that item.

Content to analyze:
%s
IMPORTANT: Respond ONLY with a single JSON object in this structure:
{
  "demographics": {"age": "estimated age range", "occupation": "likely occupation", "location": "location if mentioned", "status": "relationship status", "tier": "user tier", "archetype": "user archetype"},
  "personality": {"introvert_extrovert": 5, "intuition_sensing": 5, "feeling_thinking": 5, "perceiving_judging": 5},
  "motivations": {"convenience": 5, "wellness": 5, "speed": 5, "preferences": 5, "comfort": 5, "dietary_needs": 5},
  "behavior_habits": ["habit 1", "habit 2"],
  "frustrations": ["frustration 1", "frustration 2"],
  "goals_needs": ["goal 1", "goal 2"],
  "key_quote": "representative quote from their content",
  "citations": {
    "age": [{"id": "abc123", "excerpt": "supporting text from that item"}],
    "introvert_extrovert": [{"id": "def456", "excerpt": "supporting text from that item"}],
    "frustrations": [{"id": "ghi789", "excerpt": "supporting text from that item"}]
  }
}
`
