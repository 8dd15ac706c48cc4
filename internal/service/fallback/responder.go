package fallback

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/umayarajkumar17/portfolio/backend/internal/analysis/hostility"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
)

// Rule maps keywords to a canned reply. Rules are tried in order and the
// first match wins.
type Rule struct {
	Name     string
	Keywords []string
	// WholeWord matches keywords against words instead of substrings, so "hi"
	// does not fire on "this".
	WholeWord bool
	Reply     string
}

// Responder answers without any network access.
type Responder struct {
	rules       []Rule
	catchAll    string
	deflections []string
	isHostile   func(string) bool

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option customizes a Responder.
type Option func(*Responder)

// WithHostilityCheck replaces the hostile-input predicate.
func WithHostilityCheck(fn func(string) bool) Option {
	return func(r *Responder) {
		if fn != nil {
			r.isHostile = fn
		}
	}
}

// WithDeflections replaces the replies used for hostile input.
func WithDeflections(replies ...string) Option {
	return func(r *Responder) {
		if len(replies) > 0 {
			r.deflections = append([]string(nil), replies...)
		}
	}
}

// New builds the responder for p. src picks deflections; nil seeds from the clock.
func New(p profile.Profile, src rand.Source, opts ...Option) *Responder {
	if src == nil {
		src = rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)
	}

	r := &Responder{
		rules:       buildRules(p),
		catchAll:    catchAllReply(p),
		deflections: buildDeflections(p),
		isHostile:   hostility.IsHostile,
		rnd:         rand.New(src),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Respond returns the canned reply for text. Hostile input gets one of the
// deflections; anything unmatched gets the catch-all.
func (r *Responder) Respond(text string) string {
	if r.isHostile(text) {
		return r.deflect()
	}
	if rule, ok := r.Match(text); ok {
		return rule.Reply
	}
	return r.catchAll
}

// Match returns the first rule matching text.
func (r *Responder) Match(text string) (Rule, bool) {
	lowered := strings.ToLower(text)
	var words map[string]struct{}

	for _, rule := range r.rules {
		for _, keyword := range rule.Keywords {
			if rule.WholeWord {
				if words == nil {
					words = wordSet(lowered)
				}
				if _, ok := words[keyword]; ok {
					return rule, true
				}
				continue
			}
			if strings.Contains(lowered, keyword) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

// Rules returns the rule table in match order.
func (r *Responder) Rules() []Rule {
	return append([]Rule(nil), r.rules...)
}

// CatchAll returns the reply used when no rule matches.
func (r *Responder) CatchAll() string {
	return r.catchAll
}

// Deflections returns the replies used for hostile input.
func (r *Responder) Deflections() []string {
	return append([]string(nil), r.deflections...)
}

func (r *Responder) deflect() string {
	r.mu.Lock()
	idx := r.rnd.IntN(len(r.deflections))
	r.mu.Unlock()
	return r.deflections[idx]
}

func wordSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(s, func(c rune) bool {
		return !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '\''
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func githubAnchor(p profile.Profile) string {
	return fmt.Sprintf("<a href='%s' target='_blank' rel='noopener noreferrer'>%s</a>", p.GitHubURL, p.GitHubURL)
}

func skillLine(p profile.Profile) string {
	parts := make([]string, 0, len(p.Skills))
	for _, group := range p.Skills {
		if len(group.Items) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", group.Group, strings.Join(group.Items, ", ")))
	}
	return strings.Join(parts, ", ")
}

func locationLine(p profile.Profile) string {
	if p.Location.Native != "" && p.Location.Native != p.Location.Current {
		return fmt.Sprintf("originally from %s and currently based in %s", p.Location.Native, p.Location.Current)
	}
	return "based in " + p.Location.Current
}

func buildRules(p profile.Profile) []Rule {
	name := p.FirstName()

	studies := "studying Computer Science with a focus on AI and ML"
	if len(p.Education) > 0 {
		studies = fmt.Sprintf("studying %s at %s", p.Education[0].Degree, p.Education[0].Institution)
	}

	return []Rule{
		{
			Name:     "project",
			Keywords: []string{"project"},
			Reply: fmt.Sprintf("%s builds AI projects that are anything but boring: GANs that dream up images that never existed, "+
				"a graph-based RAG app that actually remembers where it put things, and IoT systems for emergency response and health monitoring. "+
				"Want the source? It all lives on GitHub at %s", name, githubAnchor(p)),
		},
		{
			Name:     "skill",
			Keywords: []string{"skill"},
			Reply: fmt.Sprintf("The toolkit: %s. Python is the favourite, they spend so much time together the keyboard has snake marks on it. "+
				"Top superpower? Converting coffee into machine learning models. ☕→🤖", skillLine(p)),
		},
		{
			Name:     "contact",
			Keywords: []string{"contact"},
			Reply: fmt.Sprintf("You can reach %s at %s, an inbox that gets checked more often than the fridge. %s is %s and always happy to talk AI, "+
				"side projects or the eternal tabs-versus-spaces debate. 😉", name, p.Email, name, locationLine(p)),
		},
		{
			Name:     "experience",
			Keywords: []string{"experience"},
			Reply: fmt.Sprintf("%s is early in the journey and moving fast: GAN experiments, NLP pipelines, a graph RAG system and IoT prototypes, "+
				"all built hands-on while %s. Currently on the lookout for ML and AI internships, so if you have one, you know where to find him.", name, studies),
		},
		{
			Name:      "greeting",
			Keywords:  []string{"hello", "hi", "hey", "hiya"},
			WholeWord: true,
			Reply: fmt.Sprintf("Hey there! I'm %s's AI assistant: all of the portfolio knowledge, none of the coffee breaks. "+
				"Ask me about projects, skills, or the time a missing semicolon ate an entire afternoon. 😅", name),
		},
		{
			Name:     "joke",
			Keywords: []string{"joke", "funny"},
			Reply: fmt.Sprintf("Why do programmers prefer dark mode? Because light attracts bugs! "+
				"Speaking of bugs, %s squashes them while building ML and AI systems. Ask me about the projects if you're curious.", name),
		},
		{
			Name:     "location",
			Keywords: []string{"location", "from"},
			Reply: fmt.Sprintf("%s is %s, %s. Great tech community, great filter coffee.", name, locationLine(p), studies),
		},
		{
			Name:     "github",
			Keywords: []string{"github", "code", "repository"},
			Reply: fmt.Sprintf("All of the code is on GitHub at %s: GAN projects, RAG applications, NLP experiments and more. "+
				"Stars are always appreciated!", githubAnchor(p)),
		},
		{
			Name:     "email",
			Keywords: []string{"email"},
			Reply:    fmt.Sprintf("Email works best: %s. Replies usually land within 24-48 hours.", p.Email),
		},
	}
}

func catchAllReply(p profile.Profile) string {
	name := p.FirstName()
	return fmt.Sprintf("Thanks for stopping by! I'm %s's digital twin, minus the coffee breaks. I can tell you about AI engineering skills, "+
		"machine learning work and projects. What would you like to know? You can also browse the code on GitHub: %s", name, githubAnchor(p))
}

func buildDeflections(p profile.Profile) []string {
	name := p.FirstName()
	return []string{
		fmt.Sprintf("Ouch! I'd be offended, but I'm running on pure good vibes. Want to see what %s has actually built instead?", name),
		fmt.Sprintf("Bold take! Luckily %s's models are trained to ignore noisy data. Ask me about the projects and judge for yourself. 😄", name),
		fmt.Sprintf("I'll log that under 'feedback, unstructured'. Meanwhile, %s's GitHub is right here: %s", name, githubAnchor(p)),
		"Roses are red, my replies are quick, I'd rather talk projects than trade a diss. Shall we? 🌹",
		fmt.Sprintf("Even %s's loss curves have rough days, and they still converge. Let's try a friendlier question?", name),
	}
}
