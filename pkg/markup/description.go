package markup

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// DescriptionKind discriminates the variants of Description on the wire.
type DescriptionKind string

const (
	DescriptionDirective DescriptionKind = "directive"
	DescriptionElement   DescriptionKind = "componentElement"
	DescriptionAttribute DescriptionKind = "componentAttribute"
)

// Description is the self-sufficient payload embedded in a completion item.
// It is a closed set: DirectiveDescription, ElementDescription and
// AttributeDescription are the only implementations.
type Description interface {
	Kind() DescriptionKind
	isDescription()
}

// DirectiveDescription describes a directive completion.
type DirectiveDescription struct {
	Directive string
	Summary   string
}

// ElementDescription describes a component element completion.
type ElementDescription struct {
	Component string
	Namespace string
	Summary   string
}

// AttributeDescription describes a component attribute completion.
type AttributeDescription struct {
	Component string
	Attribute string
	Type      string
	Summary   string
}

func (DirectiveDescription) Kind() DescriptionKind { return DescriptionDirective }
func (ElementDescription) Kind() DescriptionKind   { return DescriptionElement }
func (AttributeDescription) Kind() DescriptionKind { return DescriptionAttribute }

func (DirectiveDescription) isDescription() {}
func (ElementDescription) isDescription()   {}
func (AttributeDescription) isDescription() {}

// Envelope is the JSON shape of a Description stored in CompletionItem.Data.
type Envelope struct {
	Kind      DescriptionKind `json:"kind"`
	Directive string          `json:"directive,omitempty"`
	Component string          `json:"component,omitempty"`
	Namespace string          `json:"namespace,omitempty"`
	Attribute string          `json:"attribute,omitempty"`
	Type      string          `json:"type,omitempty"`
	Summary   string          `json:"summary,omitempty"`
}

// Encode wraps d into the value stored in a completion item's data field.
func Encode(d Description) *Envelope {
	switch v := d.(type) {
	case DirectiveDescription:
		return &Envelope{Kind: DescriptionDirective, Directive: v.Directive, Summary: v.Summary}
	case ElementDescription:
		return &Envelope{Kind: DescriptionElement, Component: v.Component, Namespace: v.Namespace, Summary: v.Summary}
	case AttributeDescription:
		return &Envelope{
			Kind:      DescriptionAttribute,
			Component: v.Component,
			Attribute: v.Attribute,
			Type:      v.Type,
			Summary:   v.Summary,
		}
	default:
		return nil
	}
}

// Decode recovers a Description from a completion item's data field.
// data may be an in-process value (Description, *Envelope) or anything that
// went through a JSON round trip with the client. The second result is false
// when data carries no recognizable payload.
func Decode(data any) (Description, bool) {
	var raw []byte
	switch v := data.(type) {
	case nil:
		return nil, false
	case Description:
		return v, true
	case *Envelope:
		if v == nil {
			return nil, false
		}
		return v.Description()
	case Envelope:
		return v.Description()
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		raw = b
	}

	if !gjson.ValidBytes(raw) {
		return nil, false
	}
	res := gjson.ParseBytes(raw)
	if !res.IsObject() {
		return nil, false
	}

	env := Envelope{
		Kind:      DescriptionKind(res.Get("kind").String()),
		Directive: res.Get("directive").String(),
		Component: res.Get("component").String(),
		Namespace: res.Get("namespace").String(),
		Attribute: res.Get("attribute").String(),
		Type:      res.Get("type").String(),
		Summary:   res.Get("summary").String(),
	}
	return env.Description()
}

// Description converts the envelope back into its typed variant.
func (e Envelope) Description() (Description, bool) {
	switch e.Kind {
	case DescriptionDirective:
		if e.Directive == "" {
			return nil, false
		}
		return DirectiveDescription{Directive: e.Directive, Summary: e.Summary}, true
	case DescriptionElement:
		if e.Component == "" {
			return nil, false
		}
		return ElementDescription{Component: e.Component, Namespace: e.Namespace, Summary: e.Summary}, true
	case DescriptionAttribute:
		if e.Component == "" || e.Attribute == "" {
			return nil, false
		}
		return AttributeDescription{
			Component: e.Component,
			Attribute: e.Attribute,
			Type:      e.Type,
			Summary:   e.Summary,
		}, true
	default:
		return nil, false
	}
}
