package models

import (
	"encoding/json"
	"fmt"

	"grunnlag/pkg/domain"
)

// Value is the typed payload of a fact. The set of variants is closed; each
// catalog FactType maps to exactly one variant. UnknownValue carries payloads of
// types outside the catalog unchanged.
type Value interface {
	isValue()
}

// NameValue is a person's registered name.
type NameValue struct {
	First  string `json:"first"`
	Middle string `json:"middle,omitempty"`
	Last   string `json:"last"`
}

// DateValue is a single calendar date (birth, death, received).
type DateValue struct {
	Date Date `json:"date"`
}

// AddressValue is a postal address.
type AddressValue struct {
	Lines      []string `json:"lines"`
	PostalCode string   `json:"postal_code,omitempty"`
	City       string   `json:"city,omitempty"`
	Country    string   `json:"country,omitempty"`
}

// TextValue is a coded or free-text value such as a civil status or a citizenship.
type TextValue struct {
	Text string `json:"text"`
}

// LanguageValue is the case's preferred correspondence language.
type LanguageValue struct {
	Code string `json:"code"`
}

// PersonRefsValue lists related persons, e.g. a person's children.
type PersonRefsValue struct {
	Persons []domain.PersonID `json:"persons"`
}

// FlagValue is a yes/no fact.
type FlagValue struct {
	Value bool `json:"value"`
}

// RosterValue is the case's person roster. Applicant is the person the case
// concerns; the others are linked relatives.
type RosterValue struct {
	Applicant domain.PersonID   `json:"applicant"`
	Submitter domain.PersonID   `json:"submitter,omitempty"`
	Deceased  []domain.PersonID `json:"deceased,omitempty"`
	Survivors []domain.PersonID `json:"survivors,omitempty"`
	Siblings  []domain.PersonID `json:"siblings,omitempty"`
}

// UnknownValue preserves the raw payload of a fact type this build does not know.
type UnknownValue struct {
	Raw json.RawMessage
}

// MarshalJSON writes the raw payload back unchanged.
func (v UnknownValue) MarshalJSON() ([]byte, error) {
	if len(v.Raw) == 0 {
		return []byte("null"), nil
	}
	return v.Raw, nil
}

func (NameValue) isValue()       {}
func (DateValue) isValue()       {}
func (AddressValue) isValue()    {}
func (TextValue) isValue()       {}
func (LanguageValue) isValue()   {}
func (PersonRefsValue) isValue() {}
func (FlagValue) isValue()       {}
func (RosterValue) isValue()     {}
func (UnknownValue) isValue()    {}

type valueDecoder func(json.RawMessage) (Value, error)

func decodeAs[T Value](raw json.RawMessage) (Value, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

var valueDecoders = map[FactType]valueDecoder{
	FactTypeName:            decodeAs[NameValue],
	FactTypeBirthDate:       decodeAs[DateValue],
	FactTypeDeathDate:       decodeAs[DateValue],
	FactTypeAddress:         decodeAs[AddressValue],
	FactTypeCivilStatus:     decodeAs[TextValue],
	FactTypeCitizenship:     decodeAs[TextValue],
	FactTypeChildren:        decodeAs[PersonRefsValue],
	FactTypeResidenceAbroad: decodeAs[FlagValue],
	FactTypeLanguage:        decodeAs[LanguageValue],
	FactTypeRoster:          decodeAs[RosterValue],
	FactTypeReceivedDate:    decodeAs[DateValue],
}

// DecodeValue decodes raw into the variant registered for t. Unknown types
// yield UnknownValue; a known type with a malformed payload is an error.
func DecodeValue(t FactType, raw json.RawMessage) (Value, error) {
	decode, ok := valueDecoders[t]
	if !ok {
		cp := make(json.RawMessage, len(raw))
		copy(cp, raw)
		return UnknownValue{Raw: cp}, nil
	}
	v, err := decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s value: %w", t, err)
	}
	return v, nil
}

// EncodeValue serializes v for storage.
func EncodeValue(v Value) (json.RawMessage, error) {
	if v == nil {
		return nil, fmt.Errorf("encode value: nil value")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return b, nil
}
