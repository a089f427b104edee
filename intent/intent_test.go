package intent

import (
	"context"
	"testing"

	"hintgraph/diff"
	"hintgraph/parse"
)

func scriptFor(t *testing.T, from, to string) (diff.Script, *parse.Program) {
	t.Helper()
	p := parse.NewParser()
	a, err := p.ParseString(from)
	if err != nil {
		t.Fatalf("ParseString(%q) failed: %v", from, err)
	}
	b, err := p.ParseString(to)
	if err != nil {
		t.Fatalf("ParseString(%q) failed: %v", to, err)
	}
	s, err := diff.NewBuiltin().EditScript(context.Background(), a.Root, b.Root)
	if err != nil {
		t.Fatalf("EditScript failed: %v", err)
	}
	return s, a
}

func TestGenerateIntent_ConstantUpdated(t *testing.T) {
	s, src := scriptFor(t, "x = 1\n", "x = 2\n")
	result := GenerateIntent(s, src.Root)
	if result != "Update a constant at top level" {
		t.Errorf("expected 'Update a constant at top level', got %q", result)
	}
}

func TestGenerateIntent_FunctionAdded(t *testing.T) {
	s, src := scriptFor(t, "", "def total():\n    return 1\n")
	result := GenerateIntent(s, src.Root)
	if result != "Add function total" {
		t.Errorf("expected 'Add function total', got %q", result)
	}
}

func TestGenerateIntent_ConditionChanged(t *testing.T) {
	s, src := scriptFor(t,
		"def f(x, y):\n    if x:\n        return 0\n    return 1\n",
		"def f(x, y):\n    if y:\n        return 0\n    return 1\n")
	result := GenerateIntent(s, src.Root)
	if result != "Modify the condition in f" {
		t.Errorf("expected 'Modify the condition in f', got %q", result)
	}
}

func TestGenerateIntent_Empty(t *testing.T) {
	if result := GenerateIntent(nil, nil); result != "No change needed" {
		t.Errorf("expected 'No change needed', got %q", result)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		changes []Change
		want    string
	}{
		{
			name: "refactor",
			changes: []Change{
				{Category: FunctionAdded, Name: "newFunc"},
				{Category: FunctionRemoved, Name: "oldFunc"},
			},
			want: "Refactor functions newFunc and oldFunc",
		},
		{
			name: "many functions",
			changes: []Change{
				{Category: FunctionAdded, Name: "a"},
				{Category: FunctionAdded, Name: "b"},
				{Category: FunctionAdded, Name: "c"},
			},
			want: "Add functions a, b and others",
		},
		{
			name: "condition beats constant",
			changes: []Change{
				{Category: ConstantUpdated, Function: "f"},
				{Category: ConditionChanged, Function: "f"},
			},
			want: "Modify the condition in f",
		},
		{
			name: "rewrite across functions",
			changes: []Change{
				{Category: StatementAdded, Function: "f"},
				{Category: StatementRemoved, Function: "g"},
			},
			want: "Rewrite statements across the program",
		},
		{
			name:    "loop",
			changes: []Change{{Category: LoopChanged}},
			want:    "Modify the loop at top level",
		},
		{
			name:    "moved",
			changes: []Change{{Category: StatementMoved, Function: "main"}},
			want:    "Reorder statements in main",
		},
		{
			name:    "fallback",
			changes: []Change{{Category: ExpressionEdited}},
			want:    "Change an expression at top level",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.changes); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}
