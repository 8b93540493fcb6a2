package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryCommand, CategoryOf("bash"))
	assert.Equal(t, CategoryFileWrite, CategoryOf("write_file"))
	assert.Equal(t, CategoryFileWrite, CategoryOf("apply_patch"))
	assert.Equal(t, CategoryFileRead, CategoryOf("grep"))
	assert.Equal(t, CategoryNetwork, CategoryOf("web_fetch"))
	assert.Equal(t, CategoryMCPTool, CategoryOf("mcp_tool_call"))
	assert.Equal(t, CategoryOther, CategoryOf("some_unknown_tool"))
}

func TestResolveUsesRulesTable(t *testing.T) {
	rules := Rules{
		CategoryCommand:   Deny,
		CategoryFileWrite: Ask,
		CategoryFileRead:  Allow,
	}
	grants := make(Grants)

	assert.Equal(t, Deny, Resolve("bash", rules, grants))
	assert.Equal(t, Ask, Resolve("write_file", rules, grants))
	assert.Equal(t, Allow, Resolve("read_file", rules, grants))
}

func TestResolveDefaultsToAsk(t *testing.T) {
	rules := Rules{}
	grants := make(Grants)

	assert.Equal(t, Ask, Resolve("bash", rules, grants))
	assert.Equal(t, Ask, Resolve("totally_new_tool", rules, grants))
}

func TestResolveGrantWinsOverRule(t *testing.T) {
	rules := Rules{CategoryFileWrite: Ask}
	grants := Grants{CategoryFileWrite: {}}

	// The grant overrides the standing ask policy.
	assert.Equal(t, Allow, Resolve("edit_file", rules, grants))

	// Other write tools in the same category are covered too.
	assert.Equal(t, Allow, Resolve("create_file", rules, grants))

	// Ungranted categories still follow the table.
	assert.Equal(t, Ask, Resolve("bash", rules, grants))
}

func TestResolveDeterministic(t *testing.T) {
	rules := ConservativeRules()
	grants := make(Grants)

	first := Resolve("bash", rules, grants)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Resolve("bash", rules, grants))
	}
}

func TestConservativePreset(t *testing.T) {
	rules := ConservativeRules()

	assert.Equal(t, Ask, rules[CategoryCommand])
	assert.Equal(t, Ask, rules[CategoryFileWrite])
	assert.Equal(t, Allow, rules[CategoryFileRead])
	assert.Equal(t, Ask, rules[CategoryNetwork])
	assert.Equal(t, Ask, rules[CategoryMCPTool])
}

func TestPermissivePreset(t *testing.T) {
	rules := PermissiveRules()

	assert.Equal(t, Allow, rules[CategoryCommand])
	assert.Equal(t, Allow, rules[CategoryFileWrite])
	assert.Equal(t, Ask, rules[CategoryNetwork])
}

func TestRulesCloneIsIndependent(t *testing.T) {
	orig := ConservativeRules()
	clone := orig.Clone()

	clone[CategoryCommand] = Allow
	assert.Equal(t, Ask, orig[CategoryCommand])
}

func TestPresetsSelect(t *testing.T) {
	p := DefaultPresets()

	assert.Equal(t, Ask, p.Select(false)[CategoryCommand])
	assert.Equal(t, Allow, p.Select(true)[CategoryCommand])

	// Select returns copies; mutating one must not leak into the preset.
	sel := p.Select(false)
	sel[CategoryCommand] = Deny
	assert.Equal(t, Ask, p.Conservative[CategoryCommand])
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Run shell commands", Label(CategoryCommand))
	assert.Equal(t, "Other actions", Label(CategoryOther))
	assert.Equal(t, "mystery", Label(Category("mystery")))
}

func TestLoadPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := `conservative:
  command: deny
permissive:
  network: allow
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	p, err := LoadPresetFile(path)
	require.NoError(t, err)

	// Overridden entries take the file's value.
	assert.Equal(t, Deny, p.Conservative[CategoryCommand])
	assert.Equal(t, Allow, p.Permissive[CategoryNetwork])

	// Untouched entries keep the built-in defaults.
	assert.Equal(t, Allow, p.Conservative[CategoryFileRead])
	assert.Equal(t, Allow, p.Permissive[CategoryCommand])
}

func TestLoadPresetFileRejectsInvalidDecision(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := `conservative:
  command: maybe
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadPresetFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid decision")
}

func TestLoadPresetFileMissing(t *testing.T) {
	_, err := LoadPresetFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
