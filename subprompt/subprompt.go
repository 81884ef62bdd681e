// Package subprompt defines the core template entity and its resolution.
//
// A subprompt is a reusable prompt component: positive/negative text,
// trigger words, and an ordered list of references to other subprompts.
// The "attached" sentinel in the order list marks where the subprompt's
// own text is spliced in during resolution.
package subprompt

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/promptloom/promptloom/errors"
	"github.com/promptloom/promptloom/logger"
)

// Attached is the order-list sentinel for a subprompt's own content.
const Attached = "attached"

// legacySelf is the marker older documents used instead of Attached.
const legacySelf = "[Self]"

// ResolvedPrompts is the ephemeral output of resolution. Never persisted.
type ResolvedPrompts struct {
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

// Subprompt is a named prompt template. Instances are value objects:
// mutation is always replace-in-collection-and-resave, never in-place
// edits visible to other holders.
type Subprompt struct {
	ID           string
	Name         string
	Positive     string
	Negative     string
	TriggerWords []string
	Order        []string
	FolderPath   string // legacy path form, retained for old documents
	FolderID     string
	Metadata     map[string]interface{}
}

// Params carries the constructor inputs. Only Name is required.
type Params struct {
	ID           string
	Name         string
	Positive     string
	Negative     string
	TriggerWords []string
	Order        []string
	FolderPath   string
	FolderID     string
	Metadata     map[string]interface{}
}

// New constructs a validated Subprompt. Missing optional fields get safe
// defaults; an invalid name or a malformed order list is rejected.
func New(p Params) (*Subprompt, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return nil, errors.NewValidationError("subprompt name must be a non-empty string")
	}

	id := strings.TrimSpace(p.ID)
	if id == "" {
		id = uuid.NewString()
	}

	s := &Subprompt{
		ID:           id,
		Name:         name,
		Positive:     strings.TrimSpace(p.Positive),
		Negative:     strings.TrimSpace(p.Negative),
		TriggerWords: cleanStringList(p.TriggerWords),
		Order:        cleanOrder(p.Order, name),
		FolderPath:   strings.TrimSpace(p.FolderPath),
		FolderID:     strings.TrimSpace(p.FolderID),
		Metadata:     map[string]interface{}{},
	}
	for k, v := range p.Metadata {
		s.Metadata[k] = v
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// cleanStringList trims entries and drops empty ones. Duplicates are kept.
func cleanStringList(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

// cleanOrder normalizes an order list, falling back to ["attached"] when
// nothing usable remains. Stored data must still yield a working object.
func cleanOrder(order []string, name string) []string {
	cleaned := cleanStringList(order)
	if len(cleaned) == 0 {
		if len(order) > 0 {
			logger.Warnw("No valid order items, using default",
				logger.FieldSubprompt, name)
		}
		return []string{Attached}
	}
	return cleaned
}

// Validate checks the structural invariants: non-empty name, non-empty
// order list, at most one "attached" marker.
func (s *Subprompt) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.NewValidationError("name must be a non-empty string")
	}
	if len(s.Order) == 0 {
		return errors.NewValidationError("order list cannot be empty")
	}
	attached := 0
	for _, item := range s.Order {
		if item == Attached {
			attached++
		}
	}
	if attached > 1 {
		return errors.NewValidationError("order list can only contain one %q marker", Attached)
	}
	return nil
}

// Clone returns a deep copy. Used by the store so callers never share
// backing slices with persisted state.
func (s *Subprompt) Clone() *Subprompt {
	c := *s
	c.TriggerWords = append([]string(nil), s.TriggerWords...)
	c.Order = append([]string(nil), s.Order...)
	c.Metadata = make(map[string]interface{}, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// ToMap serializes to the canonical storage shape. Metadata keys are
// re-emitted verbatim but never override canonical fields.
func (s *Subprompt) ToMap() map[string]interface{} {
	result := map[string]interface{}{
		"id":            s.ID,
		"name":          s.Name,
		"positive":      s.Positive,
		"negative":      s.Negative,
		"trigger_words": append([]string{}, s.TriggerWords...),
		"order":         append([]string{}, s.Order...),
		"folder_path":   s.FolderPath,
	}
	if s.FolderID != "" {
		result["folder_id"] = s.FolderID
	} else {
		result["folder_id"] = nil
	}
	for k, v := range s.Metadata {
		if _, taken := result[k]; !taken {
			result[k] = v
		}
	}
	return result
}

// FromMap builds a Subprompt from loosely-typed document data. Legacy
// field aliases are accepted and normalized here, never on save. Unknown
// keys are preserved as metadata. Fields with unusable types degrade to
// safe defaults with a warning rather than failing the whole record.
func FromMap(data map[string]interface{}) (*Subprompt, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError("subprompt data cannot be empty")
	}

	rest := make(map[string]interface{}, len(data))
	for k, v := range data {
		rest[k] = v
	}

	name, _ := asString(takeKey(rest, "name"))
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("missing required field: name")
	}

	id, _ := asString(takeKey(rest, "id"))

	positive, ok := asString(takeKey(rest, "positive"))
	if !ok || positive == "" {
		positive = firstStringAlias(rest, name, "positive_text", "prompt")
	}
	negative, ok := asString(takeKey(rest, "negative"))
	if !ok || negative == "" {
		negative = firstStringAlias(rest, name, "negative_text", "negative_prompt")
	}

	triggerWords, ok := asStringList(takeKey(rest, "trigger_words"), name, "trigger_words")
	if !ok || triggerWords == nil {
		triggerWords = firstListAlias(rest, name, "triggers", "keywords")
	}

	order, ok := asStringList(takeKey(rest, "order"), name, "order")
	if !ok || order == nil {
		// Legacy nested_subprompts list, where "[Self]" maps to "attached"
		if nested, found := asStringList(takeKey(rest, "nested_subprompts"), name, "nested_subprompts"); found {
			order = convertNestedOrder(nested)
		}
	}

	folderPath, ok := asString(takeKey(rest, "folder_path"))
	if !ok || folderPath == "" {
		folderPath = firstStringAlias(rest, name, "folder", "category")
	}
	folderID, ok := asString(takeKey(rest, "folder_id"))
	if !ok || folderID == "" {
		folderID = firstStringAlias(rest, name, "folder_uuid")
	}

	return New(Params{
		ID:           id,
		Name:         name,
		Positive:     positive,
		Negative:     negative,
		TriggerWords: triggerWords,
		Order:        order,
		FolderPath:   folderPath,
		FolderID:     folderID,
		Metadata:     rest,
	})
}

// convertNestedOrder translates a legacy nested_subprompts list to the
// canonical order form.
func convertNestedOrder(nested []string) []string {
	converted := make([]string, 0, len(nested))
	for _, item := range nested {
		if item == legacySelf {
			converted = append(converted, Attached)
		} else if trimmed := strings.TrimSpace(item); trimmed != "" {
			converted = append(converted, trimmed)
		}
	}
	return converted
}

func takeKey(m map[string]interface{}, key string) interface{} {
	v, ok := m[key]
	if !ok {
		return nil
	}
	delete(m, key)
	return v
}

func asString(v interface{}) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

// asStringList coerces a JSON array to []string, skipping non-string
// entries. Returns found=false when the value is absent or not a list.
func asStringList(v interface{}, name, field string) ([]string, bool) {
	if v == nil {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...), true
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		logger.Warnw("Field is not a list, using empty default",
			logger.FieldSubprompt, name,
			"field", field)
		return nil, false
	}
}

func firstStringAlias(rest map[string]interface{}, name string, aliases ...string) string {
	for _, alias := range aliases {
		if s, ok := asString(takeKey(rest, alias)); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstListAlias(rest map[string]interface{}, name string, aliases ...string) []string {
	for _, alias := range aliases {
		if list, ok := asStringList(takeKey(rest, alias), name, alias); ok {
			return list
		}
	}
	return nil
}

// MarshalJSON emits the canonical field names only.
func (s *Subprompt) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.ToMap())
}

// UnmarshalJSON accepts canonical and legacy field names.
func (s *Subprompt) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

// trimFragment strips leading/trailing whitespace and commas from a prompt
// fragment so joins never produce double commas or dangling separators.
func trimFragment(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), ","))
}

// combineFragments joins two fragments with ", ", dropping empty sides.
func combineFragments(first, second string) string {
	first = trimFragment(first)
	second = trimFragment(second)
	switch {
	case first == "" && second == "":
		return ""
	case first == "":
		return second
	case second == "":
		return first
	default:
		return first + ", " + second
	}
}

// CombinePrompts merges this subprompt's text with other prompt text.
// With prepend, the other text comes first.
func (s *Subprompt) CombinePrompts(otherPositive, otherNegative string, prepend bool) ResolvedPrompts {
	if prepend {
		return ResolvedPrompts{
			Positive: combineFragments(otherPositive, s.Positive),
			Negative: combineFragments(otherNegative, s.Negative),
		}
	}
	return ResolvedPrompts{
		Positive: combineFragments(s.Positive, otherPositive),
		Negative: combineFragments(s.Negative, otherNegative),
	}
}
