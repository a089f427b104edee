package parse

import (
	"errors"
	"strings"
	"testing"

	"hintgraph/tree"
)

func TestNewParser(t *testing.T) {
	parser := NewParser()
	if parser == nil {
		t.Fatal("NewParser returned nil")
	}
}

func TestParser_ParseAssignment(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.ParseString("a = 1\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	want := tree.New(tree.Module, "",
		tree.New(tree.Assign, "", tree.Name("a"), tree.Int(1)))
	if !parsed.Root.Equal(want) {
		t.Errorf("got %s, want %s", parsed.Root, want)
	}
	if parsed.Root.Size() != 4 {
		t.Errorf("expected size 4, got %d", parsed.Root.Size())
	}
}

func TestParser_ParseEmpty(t *testing.T) {
	parser := NewParser()

	for _, src := range []string{"", "\n\n", "# only a comment\n"} {
		parsed, err := parser.ParseString(src)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", src, err)
		}
		if !parsed.Root.Equal(tree.EmptyModule()) {
			t.Errorf("Parse(%q) = %s, want empty module", src, parsed.Root)
		}
	}
}

func TestParser_ParseFunction(t *testing.T) {
	parser := NewParser()

	code := `
def add(a: int, b=2) -> int:
    # sum
    return a + b
`
	parsed, err := parser.ParseString(code)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	fn := parsed.Root.Child(0)
	if fn.Type != tree.FuncDef {
		t.Fatalf("expected function definition, got %s", fn.Type)
	}
	if fn.Child(0).Value != "add" {
		t.Errorf("expected name add, got %q", fn.Child(0).Value)
	}
	params := fn.Child(1)
	if len(params.Children) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(params.Children))
	}
	if params.Child(0).Type != tree.TypedParam {
		t.Errorf("expected typed parameter, got %s", params.Child(0).Type)
	}
	if params.Child(1).Type != tree.DefaultParam {
		t.Errorf("expected default parameter, got %s", params.Child(1).Type)
	}
	if fn.Child(2).Type != tree.ReturnType {
		t.Errorf("expected return type, got %s", fn.Child(2).Type)
	}
	body := fn.Child(3)
	if len(body.Children) != 1 || body.Child(0).Type != tree.Return {
		t.Errorf("expected single return in body, got %s", body)
	}
}

func TestParser_ParseComparison(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.ParseString("x = a < b is not c\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cmp := parsed.Root.Child(0).Child(1)
	if cmp.Type != tree.Compare {
		t.Fatalf("expected comparison, got %s", cmp.Type)
	}
	ops := tree.CompareOps(cmp)
	if len(ops) != 2 || ops[0] != "<" || ops[1] != "is not" {
		t.Errorf("unexpected operators %v", ops)
	}
	if len(cmp.Children) != 3 {
		t.Errorf("expected 3 operands, got %d", len(cmp.Children))
	}
}

func TestParser_ParseSyntaxError(t *testing.T) {
	parser := NewParser()

	_, err := parser.ParseString("def f(:\n    return\n")
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if !strings.Contains(pe.Error(), "syntax error") {
		t.Errorf("unexpected message %q", pe.Error())
	}
}

func TestParser_RawFallback(t *testing.T) {
	parser := NewParser()

	code := "class A:\n    x = 1\n"
	parsed, err := parser.ParseString(code)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	stmt := parsed.Root.Child(0)
	if stmt.Type != tree.Raw {
		t.Fatalf("expected raw node, got %s", stmt.Type)
	}
	if got := tree.Render(parsed.Root); got != code {
		t.Errorf("render mismatch:\n%s\nwant:\n%s", got, code)
	}
}

func TestParser_FString(t *testing.T) {
	parser := NewParser()

	parsed, err := parser.ParseString("print(f'hi {name}!')\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	fs := parsed.Root.Child(0).Child(0).Child(1).Child(0)
	want := tree.New(tree.FString, "f'",
		tree.Leaf(tree.FStringText, "hi "),
		tree.New(tree.Interpolation, "", tree.Name("name")),
		tree.Leaf(tree.FStringText, "!"))
	if !fs.Equal(want) {
		t.Errorf("got %s, want %s", fs, want)
	}
	if ids := tree.Identifiers(parsed.Root); len(ids) != 2 || ids[1] != "name" {
		t.Errorf("identifiers = %v, want [print name]", ids)
	}

	plain, err := parser.ParseString("s = f'plain'\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := plain.Root.Child(0).Child(1).Type; got != tree.String {
		t.Errorf("f-string without interpolation parsed as %s, want %s", got, tree.String)
	}
}

func TestParser_RenderRoundTrip(t *testing.T) {
	parser := NewParser()

	tests := []string{
		"a = 1\n",
		"print(a + b * c)\n",
		"x = (a + b) * c\n",
		"if a:\n    b = 1\nelif c:\n    b = 2\nelse:\n    b = 3\n",
		"for i in range(10):\n    total += i\n",
		"while not done:\n    done = check(x, key=1)\n",
		"def f(n):\n    return n ** 2\n",
		"y = s[1:len(s)]\n",
		"a, b = b, a\n",
		"from math import sqrt as root\n",
		"z = -x if x < 0 else x\n",
		"ys = [y * 2 for y in xs if y > 0]\n",
		"t = sum(v for v in vs)\n",
		"g = f((v for v in vs), 1)\n",
		"d = {k: v for k, v in items}\n",
		"f = lambda a, b=1: a + b\n",
		"h = lambda: 0\n",
		"print(f'{name!r:>10} scored {score}')\n",
		"with open(path) as fh, lock:\n    data = fh.read()\n",
		"try:\n    n = int(s)\nexcept ValueError as err:\n    print(err)\nexcept:\n    pass\nelse:\n    print(n)\nfinally:\n    done()\n",
	}
	want := []string{
		"a = 1\n",
		"print(a + b * c)\n",
		"x = (a + b) * c\n",
		"if a:\n    b = 1\nelif c:\n    b = 2\nelse:\n    b = 3\n",
		"for i in range(10):\n    total += i\n",
		"while not done:\n    done = check(x, key=1)\n",
		"def f(n):\n    return n ** 2\n",
		"y = s[1:len(s)]\n",
		"(a, b) = (b, a)\n",
		"from math import sqrt as root\n",
		"z = -x if x < 0 else x\n",
		"ys = [y * 2 for y in xs if y > 0]\n",
		"t = sum(v for v in vs)\n",
		"g = f((v for v in vs), 1)\n",
		"d = {k: v for k, v in items}\n",
		"f = lambda a, b=1: a + b\n",
		"h = lambda: 0\n",
		"print(f'{name!r:>10} scored {score}')\n",
		"with open(path) as fh, lock:\n    data = fh.read()\n",
		"try:\n    n = int(s)\nexcept ValueError as err:\n    print(err)\nexcept:\n    pass\nelse:\n    print(n)\nfinally:\n    done()\n",
	}

	for i, src := range tests {
		parsed, err := parser.ParseString(src)
		if err != nil {
			t.Fatalf("Parse(%q) failed: %v", src, err)
		}
		if got := tree.Render(parsed.Root); got != want[i] {
			t.Errorf("Render(Parse(%q)) = %q, want %q", src, got, want[i])
		}
	}
}

func TestExtractImports(t *testing.T) {
	parser := NewParser()

	code := `
import os.path
import numpy as np
from math import sqrt, pi as PI
from string import *
`
	parsed, err := parser.ParseString(code)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	imports := ExtractImports(parsed.Root)
	if len(imports) != 4 {
		t.Fatalf("expected 4 imports, got %d", len(imports))
	}
	if imports[1].Named["np"] != "numpy" {
		t.Errorf("expected np -> numpy, got %v", imports[1].Named)
	}
	if !imports[3].Star {
		t.Error("expected star import")
	}

	names := ImportedNames(parsed.Root)
	for _, n := range []string{"os", "np", "sqrt", "PI"} {
		if !names[n] {
			t.Errorf("expected %q among imported names", n)
		}
	}
	if names["pi"] {
		t.Error("aliased name should not be bound")
	}
}
