package fallback

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umayarajkumar17/portfolio/backend/internal/analysis/hostility"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
)

func newResponder(seed uint64) *Responder {
	return New(profile.Default(), rand.NewPCG(seed, seed))
}

func TestRespondProjectMentionsGitHub(t *testing.T) {
	r := newResponder(1)
	reply := r.Respond("Tell me about your projects")
	assert.Contains(t, reply, "github.com")

	rule, ok := r.Match("Tell me about your projects")
	require.True(t, ok)
	assert.Equal(t, "project", rule.Name)
}

func TestRespondRuleOrderIsFirstMatchWins(t *testing.T) {
	r := newResponder(1)

	cases := map[string]string{
		"What skills do you have?":               "skill",
		"How can I contact you?":                 "contact",
		"What's your experience?":                "experience",
		"hi!":                                    "greeting",
		"Tell me a joke":                         "joke",
		"Where are you from?":                    "location",
		"show me your code":                      "github",
		"what is your email":                     "email",
		"projects and skills":                    "project",
		"contact email please":                   "contact",
		"Any experience with projects?":          "project",
		"Hello, where is the github repository?": "greeting",
	}
	for input, want := range cases {
		rule, ok := r.Match(input)
		require.True(t, ok, "no rule for %q", input)
		assert.Equal(t, want, rule.Name, "input %q", input)
	}
}

func TestGreetingNeedsWholeWord(t *testing.T) {
	r := newResponder(1)
	_, ok := r.Match("which one is this")
	assert.False(t, ok)
	assert.Equal(t, r.CatchAll(), r.Respond("which one is this"))
}

func TestRespondCatchAll(t *testing.T) {
	r := newResponder(1)
	reply := r.Respond("What's the weather like on Mars?")
	assert.Equal(t, r.CatchAll(), reply)
	assert.Contains(t, reply, "github.com")
}

func TestRespondHostileDeflects(t *testing.T) {
	r := newResponder(7)
	deflections := r.Deflections()

	for i := 0; i < 20; i++ {
		reply := r.Respond("umayaraj sucks")
		assert.True(t, slices.Contains(deflections, reply), "unexpected reply %q", reply)
		assert.NotEqual(t, r.CatchAll(), reply)
	}
}

func TestDefaultResponderDeflectsEveryBlockedTerm(t *testing.T) {
	r := New(profile.Default(), nil)
	for _, term := range hostility.Terms() {
		reply := r.Respond("honestly you are " + term)
		assert.True(t, slices.Contains(r.Deflections(), reply), "term %q got %q", term, reply)
	}
}

func TestRespondHostileWinsOverKeywords(t *testing.T) {
	r := newResponder(3)
	reply := r.Respond("your projects are stupid")
	assert.True(t, slices.Contains(r.Deflections(), reply))
}

func TestRespondIsDeterministicForFixedSource(t *testing.T) {
	a := newResponder(42)
	b := newResponder(42)

	for _, input := range []string{"UMAYARAJ IS STUPID", "you're useless", "projects", "", "???"} {
		assert.Equal(t, a.Respond(input), b.Respond(input), "input %q", input)
	}
}

func TestRespondNeverEmpty(t *testing.T) {
	r := newResponder(5)
	for _, input := range []string{"a", "skill", "stupid", "🙂", strings.Repeat("x", 500)} {
		assert.NotEmpty(t, strings.TrimSpace(r.Respond(input)), "input %q", input)
	}
}

func TestOptionsOverrideDefaults(t *testing.T) {
	r := New(profile.Default(), rand.NewPCG(1, 1),
		WithHostilityCheck(func(s string) bool { return strings.Contains(s, "boo") }),
		WithDeflections("only one"),
	)
	assert.Equal(t, "only one", r.Respond("boo"))
	assert.NotEqual(t, "only one", r.Respond("stupid"))
}

func TestEmbellish(t *testing.T) {
	e := NewEmbellisher(rand.NewPCG(9, 9), "🚀", "✨")

	out := e.Embellish("Hello there ")
	assert.True(t, out == "Hello there 🚀" || out == "Hello there ✨", out)

	assert.Equal(t, "Already ✨", e.Embellish("Already ✨"))
	assert.Equal(t, "  ", e.Embellish("  "))

	again := NewEmbellisher(rand.NewPCG(9, 9), "🚀", "✨")
	assert.Equal(t, out, again.Embellish("Hello there "))
}
