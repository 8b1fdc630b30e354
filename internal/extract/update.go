package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hurttlocker/scout/internal/patterns"
)

// Component is one node proposed for the graph.
type Component struct {
	ID          string         `json:"id" validate:"required"`
	Size        float64        `json:"size" validate:"min=12,max=32"`
	Height      int            `json:"height" validate:"min=0,max=2"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Type        string         `json:"type,omitempty"`
	Parent      string         `json:"parent,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	Color       string         `json:"color,omitempty"`
}

// NetworkUpdate is the set of components identified in one extraction,
// grouped by category kind.
type NetworkUpdate struct {
	LLMClients       []Component `json:"llm_clients"`
	AIModels         []Component `json:"ai_models"`
	CompanyResources []Component `json:"company_resources"`
}

// NewNetworkUpdate returns an empty update whose arrays encode as [] rather
// than null.
func NewNetworkUpdate() NetworkUpdate {
	return NetworkUpdate{
		LLMClients:       []Component{},
		AIModels:         []Component{},
		CompanyResources: []Component{},
	}
}

// Components returns the components of one kind.
func (u NetworkUpdate) Components(kind patterns.Kind) []Component {
	switch kind {
	case patterns.KindLLMClients:
		return u.LLMClients
	case patterns.KindAIModels:
		return u.AIModels
	case patterns.KindCompanyResources:
		return u.CompanyResources
	}
	return nil
}

// Add appends c under kind. Unknown kinds are ignored.
func (u *NetworkUpdate) Add(kind patterns.Kind, c Component) {
	switch kind {
	case patterns.KindLLMClients:
		u.LLMClients = append(u.LLMClients, c)
	case patterns.KindAIModels:
		u.AIModels = append(u.AIModels, c)
	case patterns.KindCompanyResources:
		u.CompanyResources = append(u.CompanyResources, c)
	}
}

// Len returns the total number of components.
func (u NetworkUpdate) Len() int {
	return len(u.LLMClients) + len(u.AIModels) + len(u.CompanyResources)
}

// IDs returns every component id in kind order.
func (u NetworkUpdate) IDs() []string {
	var ids []string
	for _, kind := range patterns.Kinds {
		for _, c := range u.Components(kind) {
			ids = append(ids, c.ID)
		}
	}
	return ids
}

var (
	// ErrNoUpdate means the text carried no update at all.
	ErrNoUpdate = errors.New("no network update found")
	// ErrInvalidUpdate is matched by every *ValidationError.
	ErrInvalidUpdate = errors.New("invalid network update")
)

// ValidationError lists every schema problem found in an update. One problem
// is enough to reject the whole update.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid network update: %s", strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrInvalidUpdate) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidUpdate
}

var validate = validator.New()

const (
	tagOpen  = "<network_update>"
	tagClose = "</network_update>"
)

var (
	bareJSONRE = regexp.MustCompile(`(?s)\{.*\}`)
	taggedRE   = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(tagOpen) + `(.*?)` + regexp.QuoteMeta(tagClose))
)

// ParseUpdate finds and decodes a network update in free text. A bare JSON
// object is tried first, then the <network_update>…</network_update> tagged
// form. The result is either a fully valid update or an error; never a
// partial one.
func ParseUpdate(text string) (*NetworkUpdate, error) {
	var lastErr error

	if raw := bareJSONRE.FindString(text); raw != "" {
		u, err := DecodeUpdate([]byte(raw))
		if err == nil {
			return u, nil
		}
		lastErr = err
	}

	if m := taggedRE.FindStringSubmatch(text); m != nil {
		u, err := DecodeUpdate([]byte(strings.TrimSpace(m[1])))
		if err == nil {
			return u, nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, ErrNoUpdate
}

// DecodeUpdate strictly decodes a JSON network update.
func DecodeUpdate(data []byte) (*NetworkUpdate, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, &ValidationError{Problems: []string{fmt.Sprintf("not a JSON object: %v", err)}}
	}

	out := NewNetworkUpdate()
	var problems []string
	present := 0
	for _, kind := range patterns.Kinds {
		raw, ok := top[string(kind)]
		if !ok {
			continue
		}
		present++
		if jsonKind(raw) != "array" {
			problems = append(problems, fmt.Sprintf("%s: must be an array", kind))
			continue
		}
		var elems []json.RawMessage
		if err := json.Unmarshal(raw, &elems); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", kind, err))
			continue
		}
		for i, elem := range elems {
			c, errs := decodeComponent(elem)
			if len(errs) > 0 {
				for _, e := range errs {
					problems = append(problems, fmt.Sprintf("%s[%d]: %s", kind, i, e))
				}
				continue
			}
			out.Add(kind, c)
		}
	}
	if present == 0 {
		problems = append(problems, "expected at least one of llm_clients, ai_models, company_resources")
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return &out, nil
}

// Validate checks an already-typed update against the same rules DecodeUpdate
// enforces on JSON input.
func Validate(u NetworkUpdate) error {
	var problems []string
	for _, kind := range patterns.Kinds {
		for i, c := range u.Components(kind) {
			for _, p := range validateComponent(c) {
				problems = append(problems, fmt.Sprintf("%s[%d]: %s", kind, i, p))
			}
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

var stringFields = []string{"title", "description", "icon", "type", "parent", "color"}

func decodeComponent(raw json.RawMessage) (Component, []string) {
	if jsonKind(raw) != "object" {
		return Component{}, []string{"must be an object"}
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Component{}, []string{err.Error()}
	}

	var problems []string
	if f, ok := fields["id"]; !ok || jsonKind(f) != "string" {
		problems = append(problems, "id must be a string")
	}
	if f, ok := fields["size"]; !ok || jsonKind(f) != "number" {
		problems = append(problems, "size must be a number")
	}
	if f, ok := fields["height"]; !ok || jsonKind(f) != "number" {
		problems = append(problems, "height must be a number")
	} else {
		var h float64
		if err := json.Unmarshal(f, &h); err != nil || h != math.Trunc(h) {
			problems = append(problems, "height must be 0, 1 or 2")
		}
	}
	for _, name := range stringFields {
		if f, ok := fields[name]; ok && jsonKind(f) != "string" {
			problems = append(problems, name+" must be a string")
		}
	}
	if f, ok := fields["details"]; ok && jsonKind(f) != "object" {
		problems = append(problems, "details must be a key-value object")
	}
	if len(problems) > 0 {
		return Component{}, problems
	}

	var c Component
	var h float64
	if err := json.Unmarshal(fields["height"], &h); err != nil {
		return Component{}, []string{err.Error()}
	}
	// height is decoded separately so a fractional value never truncates silently
	delete(fields, "height")
	rest, _ := json.Marshal(fields)
	if err := json.Unmarshal(rest, &c); err != nil {
		return Component{}, []string{err.Error()}
	}
	c.Height = int(h)

	if errs := validateComponent(c); len(errs) > 0 {
		return Component{}, errs
	}
	return c, nil
}

func validateComponent(c Component) []string {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, formatFieldError(fe))
	}
	return out
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// jsonKind reports the JSON type of a raw value from its first byte.
func jsonKind(raw json.RawMessage) string {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 {
		return ""
	}
	switch b[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
