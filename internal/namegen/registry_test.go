package namegen

import (
	"math/rand"
	"testing"
)

func TestRegistryRetriesOnCollision(t *testing.T) {
	// Tiny word list forces collisions almost immediately.
	gen := NewWithRand([]string{"a"}, []string{"x", "y"}, rand.New(rand.NewSource(1)))
	reg := NewRegistry(gen)

	first, err := reg.Assign()
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	second, err := reg.Assign()
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if first == second {
		t.Fatalf("Assign returned duplicate name %q twice", first)
	}
}

func TestRegistryExhaustion(t *testing.T) {
	gen := NewWithRand([]string{"a"}, []string{"x"}, rand.New(rand.NewSource(1)))
	reg := NewRegistry(gen)

	if _, err := reg.Assign(); err != nil {
		t.Fatalf("first Assign: %v", err)
	}
	if _, err := reg.Assign(); err == nil {
		t.Fatal("expected exhaustion error with a single-name word list")
	}
}

func TestRegistryReleaseFreesName(t *testing.T) {
	gen := NewWithRand([]string{"a"}, []string{"x"}, rand.New(rand.NewSource(1)))
	reg := NewRegistry(gen)

	name, err := reg.Assign()
	if err != nil {
		t.Fatalf("Assign: %v", err)
	}
	reg.Release(name)
	if _, err := reg.Assign(); err != nil {
		t.Fatalf("Assign after release: %v", err)
	}
}
