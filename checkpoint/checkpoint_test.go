package checkpoint

import (
	"testing"

	"github.com/promptloom/promptloom/subprompt"
)

func mustNew(t *testing.T, p subprompt.Params) *subprompt.Subprompt {
	t.Helper()
	sp, err := subprompt.New(p)
	if err != nil {
		t.Fatalf("New(%q) failed: %v", p.Name, err)
	}
	return sp
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"SD15_Anime-Model.safetensors": "sd15 anime model",
		"model.ckpt":                   "model",
		"plain":                        "plain",
	}
	for in, want := range cases {
		if got := BaseName(in); got != want {
			t.Errorf("BaseName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFindMatching(t *testing.T) {
	anime := mustNew(t, subprompt.Params{
		Name:         "anime-style",
		Positive:     "anime style",
		TriggerWords: []string{"Anime"},
	})
	photo := mustNew(t, subprompt.Params{
		Name:         "photo-style",
		Positive:     "photorealistic",
		TriggerWords: []string{"photo"},
	})
	noTriggers := mustNew(t, subprompt.Params{
		Name:     "silent",
		Positive: "anime",
	})
	all := []*subprompt.Subprompt{anime, photo, noTriggers}

	matches := FindMatching("SuperAnimeModel_v2.safetensors", all)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Name != "anime-style" {
		t.Errorf("unexpected match: %q", matches[0].Name)
	}
}

func TestFindMatching_NoTriggerWordsNeverMatch(t *testing.T) {
	sp := mustNew(t, subprompt.Params{Name: "anime", Positive: "anime"})
	if matches := FindMatching("anime_model.ckpt", []*subprompt.Subprompt{sp}); len(matches) != 0 {
		t.Errorf("subprompt without trigger words must not match, got %d", len(matches))
	}
}

func TestCombine_NoMatches(t *testing.T) {
	combined, err := Combine("model.safetensors", nil)
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Name != "auto_model" {
		t.Errorf("unexpected name: %q", combined.Name)
	}
	if combined.Positive != "" || combined.Negative != "" {
		t.Error("empty result expected with no matches")
	}
}

func TestCombine_SingleMatch(t *testing.T) {
	m := mustNew(t, subprompt.Params{
		Name:         "anime",
		Positive:     "anime style",
		Negative:     "photo",
		TriggerWords: []string{"anime"},
	})
	combined, err := Combine("model.safetensors", []*subprompt.Subprompt{m})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Name != "auto_model_anime" {
		t.Errorf("unexpected name: %q", combined.Name)
	}
	if combined.Positive != "anime style" || combined.Negative != "photo" {
		t.Errorf("content not carried over: %+v", combined)
	}
}

func TestCombine_MultipleMatchesInNameOrder(t *testing.T) {
	b := mustNew(t, subprompt.Params{
		Name: "b-style", Positive: "second", TriggerWords: []string{"model", "shared"},
	})
	a := mustNew(t, subprompt.Params{
		Name: "a-style", Positive: "first", Negative: "bad", TriggerWords: []string{"model", "shared"},
	})

	combined, err := Combine("model.safetensors", []*subprompt.Subprompt{b, a})
	if err != nil {
		t.Fatalf("Combine failed: %v", err)
	}
	if combined.Name != "auto_model_combined" {
		t.Errorf("unexpected name: %q", combined.Name)
	}
	if combined.Positive != "first, second" {
		t.Errorf("matches must combine in name order, got %q", combined.Positive)
	}
	if combined.Negative != "bad" {
		t.Errorf("unexpected negative: %q", combined.Negative)
	}
	if len(combined.TriggerWords) != 2 {
		t.Errorf("trigger words must be deduplicated, got %v", combined.TriggerWords)
	}
}

func TestForCheckpoint(t *testing.T) {
	sp := mustNew(t, subprompt.Params{
		Name: "anime", Positive: "anime style", TriggerWords: []string{"anime"},
	})
	combined, err := ForCheckpoint("big_anime_mix.safetensors", []*subprompt.Subprompt{sp})
	if err != nil {
		t.Fatalf("ForCheckpoint failed: %v", err)
	}
	if combined.Positive != "anime style" {
		t.Errorf("unexpected result: %+v", combined)
	}
}
