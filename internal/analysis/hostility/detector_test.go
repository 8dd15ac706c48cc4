package hostility

import "testing"

func TestIsHostileIgnoresCase(t *testing.T) {
	upper := IsHostile("UMAYARAJ IS STUPID")
	lower := IsHostile("umayaraj is stupid")
	if upper != lower {
		t.Fatalf("case changed the verdict: upper=%v lower=%v", upper, lower)
	}
	if !upper {
		t.Fatal("expected insult to be flagged")
	}
}

func TestIsHostileFlagsBlockListedTerms(t *testing.T) {
	for _, input := range []string{
		"umayaraj sucks",
		"your projects are garbage",
		"He can’t code",
		"   Shut Up bot   ",
	} {
		if !IsHostile(input) {
			t.Fatalf("expected %q to be hostile", input)
		}
	}
}

func TestIsHostileLeavesOrdinaryQuestionsAlone(t *testing.T) {
	for _, input := range []string{
		"Tell me about your projects",
		"What skills do you have?",
		"How can I contact you?",
		"What's your experience?",
		"",
		"   ",
	} {
		if IsHostile(input) {
			t.Fatalf("did not expect %q to be hostile", input)
		}
	}
}

func TestAnalyzeReportsTerms(t *testing.T) {
	decision := Analyze("Stupid useless bot")
	if !decision.Hostile {
		t.Fatal("expected hostile decision")
	}
	if len(decision.Terms) != 2 || decision.Terms[0] != "stupid" || decision.Terms[1] != "useless" {
		t.Fatalf("unexpected terms: %v", decision.Terms)
	}

	if got := Analyze("hello there"); got.Hostile || len(got.Terms) != 0 {
		t.Fatalf("unexpected decision: %+v", got)
	}
}

func TestTermsReturnsCopy(t *testing.T) {
	terms := Terms()
	terms[0] = "changed"
	if Terms()[0] == "changed" {
		t.Fatal("Terms must not expose the block-list")
	}
}
