// Package namegen generates short adjective-noun names for daemon nodes,
// used so a user juggling several running daemons can refer to them by a
// memorable name instead of a socket path or pid.
package namegen

import (
	"fmt"
	"math/rand"
)

// Generator produces adjective-noun names from two word lists. The caller
// supplies both lists (and, in tests, a seeded rand.Rand) so the generator
// has no hidden global state.
type Generator struct {
	adjectives []string
	nouns      []string
	rng        *rand.Rand
}

// New builds a Generator over the given word lists using a source seeded
// from the global math/rand generator.
func New(adjectives, nouns []string) *Generator {
	return &Generator{adjectives: adjectives, nouns: nouns, rng: rand.New(rand.NewSource(rand.Int63()))}
}

// NewWithRand builds a Generator using an explicit source, for deterministic
// tests.
func NewWithRand(adjectives, nouns []string, rng *rand.Rand) *Generator {
	return &Generator{adjectives: adjectives, nouns: nouns, rng: rng}
}

// Next returns a random "adjective-noun" name.
func (g *Generator) Next() string {
	adj := g.adjectives[g.rng.Intn(len(g.adjectives))]
	noun := g.nouns[g.rng.Intn(len(g.nouns))]
	return fmt.Sprintf("%s-%s", adj, noun)
}

// DefaultAdjectives and DefaultNouns are a small built-in word list, enough
// to keep name collisions rare without shipping a large dictionary.
var DefaultAdjectives = []string{
	"able", "brave", "calm", "deft", "eager", "fleet", "gentle", "hardy",
	"idle", "jolly", "keen", "lively", "merry", "nimble", "plucky", "quiet",
	"ready", "swift", "tidy", "upbeat", "vivid", "witty", "zesty", "bold",
}

var DefaultNouns = []string{
	"otter", "heron", "falcon", "badger", "marten", "lynx", "wren", "osprey",
	"ferret", "stoat", "kestrel", "sable", "mink", "grebe", "vole", "ibis",
	"puffin", "tern", "gecko", "civet", "hare", "pika", "serval", "shrike",
}
