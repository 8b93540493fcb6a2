// Package permission implements the tool approval policy: a pure resolution
// function over a per-category rules table and a session-scoped grant set.
package permission

// Decision is the outcome of resolving a tool against the policy.
type Decision string

const (
	Allow Decision = "allow"
	Ask   Decision = "ask"
	Deny  Decision = "deny"
)

// Category groups tools by the kind of action requiring approval.
type Category string

const (
	CategoryCommand   Category = "command"
	CategoryFileWrite Category = "fileWrite"
	CategoryFileRead  Category = "fileRead"
	CategoryNetwork   Category = "network"
	CategoryMCPTool   Category = "mcpTool"

	// CategoryOther is the implicit fallback for unmapped tools. It has no
	// configurable rule; unmapped tools always surface for user decision.
	CategoryOther Category = "other"
)

// Rules maps a category to its standing policy. Replaced wholesale when a
// preset is applied.
type Rules map[Category]Decision

// Grants is the set of categories force-allowed for the rest of the process.
// Never persisted.
type Grants map[Category]struct{}

// Has reports whether the category is granted.
func (g Grants) Has(c Category) bool {
	_, ok := g[c]
	return ok
}

// toolCategories is the static tool name to category lookup.
var toolCategories = map[string]Category{
	"bash":          CategoryCommand,
	"run_command":   CategoryCommand,
	"kill_shell":    CategoryCommand,
	"write_file":    CategoryFileWrite,
	"edit_file":     CategoryFileWrite,
	"create_file":   CategoryFileWrite,
	"apply_patch":   CategoryFileWrite,
	"read_file":     CategoryFileRead,
	"grep":          CategoryFileRead,
	"glob":          CategoryFileRead,
	"list_files":    CategoryFileRead,
	"web_fetch":     CategoryNetwork,
	"web_search":    CategoryNetwork,
	"http_request":  CategoryNetwork,
	"mcp_tool_call": CategoryMCPTool,
}

// categoryLabels are the display labels shown alongside surfaced approvals.
var categoryLabels = map[Category]string{
	CategoryCommand:   "Run shell commands",
	CategoryFileWrite: "Write files",
	CategoryFileRead:  "Read files",
	CategoryNetwork:   "Access the network",
	CategoryMCPTool:   "Call external tools",
	CategoryOther:     "Other actions",
}

// CategoryOf maps a tool name to its category. Unmapped tools fall back to
// the implicit "other" category, which resolves to ask.
func CategoryOf(tool string) Category {
	if c, ok := toolCategories[tool]; ok {
		return c
	}
	return CategoryOther
}

// Label returns the display label for a category.
func Label(c Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Resolve decides what to do with a tool invocation. A session grant always
// wins over the standing policy; otherwise the rules table applies, with ask
// as the default for unconfigured categories.
func Resolve(tool string, rules Rules, grants Grants) Decision {
	category := CategoryOf(tool)
	if grants.Has(category) {
		return Allow
	}
	if d, ok := rules[category]; ok {
		return d
	}
	return Ask
}

// ConservativeRules returns the default preset: everything surfaced except
// plain reads.
func ConservativeRules() Rules {
	return Rules{
		CategoryCommand:   Ask,
		CategoryFileWrite: Ask,
		CategoryFileRead:  Allow,
		CategoryNetwork:   Ask,
		CategoryMCPTool:   Ask,
	}
}

// PermissiveRules returns the permissive preset: everything auto-approved
// except network access.
func PermissiveRules() Rules {
	return Rules{
		CategoryCommand:   Allow,
		CategoryFileWrite: Allow,
		CategoryFileRead:  Allow,
		CategoryNetwork:   Ask,
		CategoryMCPTool:   Allow,
	}
}

// Clone returns a copy of the rules table.
func (r Rules) Clone() Rules {
	out := make(Rules, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
