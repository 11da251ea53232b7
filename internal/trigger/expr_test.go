package trigger

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalCondition(expr string, vars map[string]any) (bool, error) {
	e, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return e.EvalBool(vars)
}

func TestEvaluate_Conditions(t *testing.T) {
	ctx := map[string]any{
		"hours":  120,
		"limit":  100.0,
		"status": "OPERATIONAL",
		"site": map[string]any{
			"region":    "north",
			"generator": map[string]any{"kw": 250, "standby": true},
		},
	}
	tests := []struct {
		expr string
		want bool
	}{
		{"hours > limit", true},
		{"hours >= 120 && limit < 100", false},
		{"hours >= 120 and not (limit < 100)", true},
		{"status == 'OPERATIONAL'", true},
		{`status != "OPERATIONAL" || site.region == "north"`, true},
		{"site.generator.kw / 2 == 125", true},
		{"site.generator.standby", true},
		{"!site.generator.standby or false", false},
		{"-hours + 200 == 80", true},
		{"hours - limit * 2 < 0", true},
		{"(hours - limit) * 2 > 30", true},
		{"1.5 * 2 == 3", true},
		{"'abc' < 'abd'", true},
		{"notes_count == 0 or true", true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			vars := ctx
			if strings.Contains(tt.expr, "notes_count") {
				vars = map[string]any{"notes_count": 0}
			}
			got, err := evalCondition(tt.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluate_ShortCircuitSkipsUndefined(t *testing.T) {
	got, err := evalCondition("true or missing.value > 1", nil)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = evalCondition("false and missing.value > 1", nil)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_JSONNumberContext(t *testing.T) {
	got, err := evalCondition("runtime_hours >= 500", map[string]any{"runtime_hours": json.Number("512.5")})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestIdentKey(t *testing.T) {
	tests := map[string]string{
		"gen1":                                 "gen1",
		"gen-1":                                "gen_1",
		"site.north":                           "site_north",
		"7c9e6679-7425-40de-944b-e07fc1f90ae7": "_7c9e6679_7425_40de_944b_e07fc1f90ae7",
		"":                                     "_",
	}
	for id, want := range tests {
		assert.Equal(t, want, IdentKey(id), id)
	}

	got, err := evalCondition("subjects."+IdentKey("7c9e-gen")+".hours > 1", map[string]any{
		"subjects": map[string]any{IdentKey("7c9e-gen"): map[string]any{"hours": 2}},
	})
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCompile_Identifiers(t *testing.T) {
	e, err := Compile("site.hours > limit and site.hours < 1000 or flag")
	require.NoError(t, err)
	assert.Equal(t, []string{"flag", "limit", "site.hours"}, e.Identifiers())
}

// ============ NEGATIVE TEST CASES ============

func TestCompile_SyntaxErrors(t *testing.T) {
	tests := []string{
		"",
		"hours >",
		"hours = 1",
		"(hours > 1",
		"hours > 1)",
		"1 < 2 < 3",
		"'unterminated",
		"hours.",
		"1.",
		"and",
		"hours > 1 ;",
		"exec('rm -rf /')",
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := Compile(src)
			assert.Error(t, err)
		})
	}
}

func TestCompile_LengthLimit(t *testing.T) {
	src := "x == '" + strings.Repeat("a", MaxExprLen) + "'"
	_, err := Compile(src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit")
}

func TestCompile_DepthLimit(t *testing.T) {
	ok := strings.Repeat("(", MaxExprDepth) + "true" + strings.Repeat(")", MaxExprDepth)
	_, err := Compile(ok)
	require.NoError(t, err)

	deep := strings.Repeat("(", MaxExprDepth+1) + "true" + strings.Repeat(")", MaxExprDepth+1)
	_, err = Compile(deep)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deeper")

	_, err = Compile(strings.Repeat("!", MaxExprDepth+1) + "true")
	require.Error(t, err)
}

func TestEvaluate_RuntimeErrors(t *testing.T) {
	ctx := map[string]any{
		"hours":  10,
		"name":   "gen-1",
		"nested": map[string]any{"x": 1},
		"none":   nil,
		"list":   []any{1, 2},
	}
	tests := []struct {
		expr    string
		errPart string
	}{
		{"missing > 1", "undefined variable: missing"},
		{"nested.y > 1", "undefined variable: nested.y"},
		{"hours.x > 1", "not an object"},
		{"hours / 0 > 1", "division by zero"},
		{"hours == name", "cannot compare"},
		{"name + 1 > 2", "needs numbers"},
		{"hours + 1", "want bool"},
		{"hours && true", "needs bool"},
		{"!hours", "needs bool"},
		{"none == 1", "null"},
		{"list == 1", "unsupported"},
		{"nested > 1", "unsupported"},
		{"true < false", "not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := evalCondition(tt.expr, ctx)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}
