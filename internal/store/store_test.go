package store

import (
	"path/filepath"
	"sort"
	"testing"

	"kvmux/internal/wire"
)

func engines(t *testing.T) map[string]Engine {
	t.Helper()
	tree, err := OpenTree(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tree.Close() })
	return map[string]Engine{
		"memory": NewMemory(),
		"tree":   tree,
	}
}

func TestSetThenGet(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			if _, had, err := e.Set("score", "u1", wire.Integer(10)); err != nil || had {
				t.Fatalf("set: had=%v err=%v", had, err)
			}
			v, ok, err := e.Get("score", "u1")
			if err != nil || !ok {
				t.Fatalf("get: ok=%v err=%v", ok, err)
			}
			if got, _ := v.AsInteger(); got != 10 {
				t.Fatalf("got %v want 10", got)
			}
		})
	}
}

func TestEngineEquivalence(t *testing.T) {
	type op struct {
		name string
		run  func(e Engine)
	}
	var results = map[string][]string{}
	for name, e := range engines(t) {
		e.Set("t1", "a", wire.String("x"))
		e.Set("t1", "b", wire.Integer(2))
		e.Set("t1", "a", wire.Bool(true)) // overwrite
		e.Del("t1", "b")
		e.Set("t2", "z", wire.Float(1.5))

		pairs, err := e.GetAll("t1")
		if err != nil {
			t.Fatal(err)
		}
		var rendered []string
		for _, p := range pairs {
			rendered = append(rendered, p.Key+"="+p.Value.String())
		}
		sort.Strings(rendered)
		results[name] = rendered
	}

	memResult := results["memory"]
	treeResult := results["tree"]
	if len(memResult) != len(treeResult) {
		t.Fatalf("engine mismatch: memory=%v tree=%v", memResult, treeResult)
	}
	for i := range memResult {
		if memResult[i] != treeResult[i] {
			t.Fatalf("engine mismatch at %d: memory=%v tree=%v", i, memResult, treeResult)
		}
	}
}

func TestGetIterLazy(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			e.Set("iter", "a", wire.Integer(1))
			e.Set("iter", "b", wire.Integer(2))
			it, err := e.GetIter("iter")
			if err != nil {
				t.Fatal(err)
			}
			defer it.Close()
			count := 0
			for {
				_, ok, err := it.Next()
				if err != nil {
					t.Fatal(err)
				}
				if !ok {
					break
				}
				count++
			}
			if count != 2 {
				t.Fatalf("got %d pairs, want 2", count)
			}
		})
	}
}

func TestAbsentIsNotError(t *testing.T) {
	for name, e := range engines(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := e.Get("nope", "nope")
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Fatal("expected absent")
			}
			pairs, err := e.GetAll("nope")
			if err != nil || len(pairs) != 0 {
				t.Fatalf("pairs=%v err=%v", pairs, err)
			}
		})
	}
}
