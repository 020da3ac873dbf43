package script

import (
	"strings"
	"testing"

	"qter/internal/bignum"
)

func mustEngine(t *testing.T, source string) *Engine {
	t.Helper()
	e := NewEngine(1000)
	if err := e.Load(source); err != nil {
		t.Fatal(err)
	}
	return e
}

func TestCallSumToLoop(t *testing.T) {
	e := mustEngine(t, `
function sum_to(n)
    local total = 0
    for i = 1, n do
        total = total + i
    end
    return total
end
`)
	result, err := e.Call("sum_to", []Value{FromInt64(10)})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := asInt64(result); !ok || got != 55 {
		t.Fatalf("sum_to(10) = %v, want 55", result)
	}
}

func TestCallRecursiveFactorial(t *testing.T) {
	e := mustEngine(t, `
function fact(n)
    if n <= 1 then
        return 1
    end
    return n * fact(n - 1)
end
`)
	result, err := e.Call("fact", []Value{FromInt64(6)})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := asInt64(result); !ok || got != 720 {
		t.Fatalf("fact(6) = %v, want 720", result)
	}
}

func TestCallMissingFunctionFails(t *testing.T) {
	e := NewEngine(1000)
	_, err := e.Call("nope", nil)
	if err == nil {
		t.Fatal("expected an error calling an undeclared script function")
	}
}

func TestDuplicateFunctionDeclarationFails(t *testing.T) {
	e := NewEngine(1000)
	if err := e.Load("function f(x)\n  return x\nend\n"); err != nil {
		t.Fatal(err)
	}
	err := e.Load("function f(y)\n  return y\nend\n")
	if err == nil {
		t.Fatal("expected DuplicateDefinition for a second function named f")
	}
	if !strings.Contains(err.Error(), "DuplicateDefinition") {
		t.Fatalf("error = %v, want DuplicateDefinition", err)
	}
}

func TestStepLimitTripsOnUnboundedLoop(t *testing.T) {
	e := mustEngine(t, `
function spin()
    local i = 0
    while true do
        i = i + 1
    end
    return i
end
`)
	_, err := e.Call("spin", nil)
	if err == nil {
		t.Fatal("expected ScriptTimeout from an unbounded while loop")
	}
	if !strings.Contains(err.Error(), "ScriptTimeout") {
		t.Fatalf("error = %v, want ScriptTimeout", err)
	}
}

func TestNativeBigAcceptsString(t *testing.T) {
	e := NewEngine(0)
	v, err := e.Call("big", []Value{Str("123456789012345678901234567890")})
	if err != nil {
		t.Fatal(err)
	}
	i, ok := v.(Int)
	if !ok {
		t.Fatalf("big(string) = %T, want Int", v)
	}
	want, _ := bignum.FromString("123456789012345678901234567890")
	if bignum.Cmp(i.V, want) != 0 {
		t.Fatalf("big(string) = %s, want %s", i.V.String(), want.String())
	}
}

func TestNativeOrderOfRegReadsHandle(t *testing.T) {
	e := NewEngine(0)
	ref := RegisterRef{Name: "A", OrderOf: func() (bignum.Int, error) { return bignum.FromInt64(90), nil }}
	v, err := e.Call("order_of_reg", []Value{ref})
	if err != nil {
		t.Fatal(err)
	}
	if got, ok := asInt64(v); !ok || got != 90 {
		t.Fatalf("order_of_reg(A) = %v, want 90", v)
	}
}

func TestIfElseIfElseBranching(t *testing.T) {
	e := mustEngine(t, `
function classify(n)
    if n < 0 then
        return "negative"
    elseif n == 0 then
        return "zero"
    else
        return "positive"
    end
end
`)
	cases := map[int64]string{-5: "negative", 0: "zero", 7: "positive"}
	for in, want := range cases {
		v, err := e.Call("classify", []Value{FromInt64(in)})
		if err != nil {
			t.Fatal(err)
		}
		if string(v.(Str)) != want {
			t.Fatalf("classify(%d) = %v, want %q", in, v, want)
		}
	}
}
