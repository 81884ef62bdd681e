// Package checkpoint matches stored subprompts against model checkpoint
// filenames through their trigger words. Matching is explicit: a subprompt
// is associated with a checkpoint only when one of its configured trigger
// words occurs in the checkpoint name.
package checkpoint

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/promptloom/promptloom/logger"
	"github.com/promptloom/promptloom/subprompt"
)

// modelExtensions are stripped from checkpoint names before matching.
var modelExtensions = []string{".safetensors", ".ckpt", ".pt"}

// BaseName strips the model file extension and normalizes separators for
// matching.
func BaseName(checkpointName string) string {
	name := strings.ToLower(checkpointName)
	for _, ext := range modelExtensions {
		name = strings.ReplaceAll(name, ext, "")
	}
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}

// FindMatching returns the subprompts whose trigger words occur in the
// checkpoint name, case-insensitively. Subprompts without trigger words
// never match.
func FindMatching(checkpointName string, all []*subprompt.Subprompt) []*subprompt.Subprompt {
	nameLower := strings.ToLower(checkpointName)

	var matches []*subprompt.Subprompt
	for _, sp := range all {
		for _, word := range sp.TriggerWords {
			trimmed := strings.ToLower(strings.TrimSpace(word))
			if trimmed == "" {
				continue
			}
			if strings.Contains(nameLower, trimmed) {
				logger.Debugw("Checkpoint trigger word matched",
					logger.FieldSubprompt, sp.Name,
					"trigger_word", word,
					"checkpoint", checkpointName)
				matches = append(matches, sp)
				break
			}
		}
	}
	return matches
}

// Combine merges matched subprompts into one synthetic subprompt for the
// checkpoint. Matches are combined in name order so the result is stable
// regardless of storage order. With no matches the result is empty, with
// one it carries that subprompt's content.
func Combine(checkpointName string, matches []*subprompt.Subprompt) (*subprompt.Subprompt, error) {
	stem := strings.TrimSuffix(checkpointName, filepath.Ext(checkpointName))

	if len(matches) == 0 {
		return subprompt.New(subprompt.Params{
			Name:  "auto_" + stem,
			Order: []string{subprompt.Attached},
		})
	}

	if len(matches) == 1 {
		m := matches[0]
		return subprompt.New(subprompt.Params{
			Name:         "auto_" + stem + "_" + m.Name,
			Positive:     m.Positive,
			Negative:     m.Negative,
			TriggerWords: append([]string(nil), m.TriggerWords...),
			Order:        append([]string(nil), m.Order...),
		})
	}

	ordered := append([]*subprompt.Subprompt(nil), matches...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Name < ordered[j].Name
	})

	var positiveParts, negativeParts []string
	seen := make(map[string]bool)
	var triggerWords []string
	for _, m := range ordered {
		if text := strings.TrimSpace(m.Positive); text != "" {
			positiveParts = append(positiveParts, text)
		}
		if text := strings.TrimSpace(m.Negative); text != "" {
			negativeParts = append(negativeParts, text)
		}
		for _, word := range m.TriggerWords {
			if !seen[word] {
				seen[word] = true
				triggerWords = append(triggerWords, word)
			}
		}
	}

	return subprompt.New(subprompt.Params{
		Name:         "auto_" + stem + "_combined",
		Positive:     strings.Join(positiveParts, ", "),
		Negative:     strings.Join(negativeParts, ", "),
		TriggerWords: triggerWords,
		Order:        []string{subprompt.Attached},
	})
}

// ForCheckpoint finds and combines in one step.
func ForCheckpoint(checkpointName string, all []*subprompt.Subprompt) (*subprompt.Subprompt, error) {
	return Combine(checkpointName, FindMatching(checkpointName, all))
}
