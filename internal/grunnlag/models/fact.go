package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"grunnlag/pkg/domain"
)

// Fact (opplysning) is one provenance-tagged piece of knowledge about a person
// or, when PersonID is zero, about the case itself. A fact with a Period is
// periodized; without one it is constant.
type Fact struct {
	ID       domain.FactID   `json:"id"`
	Source   Source          `json:"source"`
	Type     FactType        `json:"type"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Value    Value           `json:"value"`
	PersonID domain.PersonID `json:"person_id,omitempty"`
	Period   *Period         `json:"period,omitempty"`
}

// NewConstantFact builds a constant fact with a fresh id.
func NewConstantFact(t FactType, person domain.PersonID, value Value, source Source) Fact {
	return Fact{
		ID:       domain.NewFactID(),
		Source:   source,
		Type:     t,
		Value:    value,
		PersonID: person,
	}
}

// NewPeriodizedFact builds a periodized fact with a fresh id.
func NewPeriodizedFact(t FactType, person domain.PersonID, value Value, source Source, period Period) Fact {
	f := NewConstantFact(t, person, value, source)
	f.Period = &period
	return f
}

// IsPeriodized reports whether the fact carries an interval.
func (f Fact) IsPeriodized() bool { return f.Period != nil }

// IsCaseLevel reports whether the fact belongs to the case rather than a person.
func (f Fact) IsCaseLevel() bool { return f.PersonID.IsZero() }

// Validate checks the structural requirements for appending a fact.
func (f Fact) Validate() error {
	var errs []error
	if f.ID.IsNil() {
		errs = append(errs, errors.New("id is required"))
	}
	if f.Type == "" {
		errs = append(errs, errors.New("type is required"))
	}
	if f.Value == nil {
		errs = append(errs, errors.New("value is required"))
	}
	if !f.Source.Kind.IsValid() {
		errs = append(errs, fmt.Errorf("unknown source kind %q", f.Source.Kind))
	}
	if f.Period != nil && f.Period.From.IsZero() {
		errs = append(errs, errors.New("period requires a start date"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid fact %s: %w", f.ID, err)
	}
	return nil
}

type factJSON struct {
	ID       domain.FactID   `json:"id"`
	Source   Source          `json:"source"`
	Type     FactType        `json:"type"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Value    json.RawMessage `json:"value"`
	PersonID domain.PersonID `json:"person_id,omitempty"`
	Period   *Period         `json:"period,omitempty"`
}

// UnmarshalJSON decodes the value into the variant registered for the fact type.
func (f *Fact) UnmarshalJSON(b []byte) error {
	var raw factJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	value, err := DecodeValue(raw.Type, raw.Value)
	if err != nil {
		return err
	}
	*f = Fact{
		ID:       raw.ID,
		Source:   raw.Source,
		Type:     raw.Type,
		Metadata: raw.Metadata,
		Value:    value,
		PersonID: raw.PersonID,
		Period:   raw.Period,
	}
	return nil
}

// FactEvent is the stored unit: a fact placed at a position in a case's ledger.
type FactEvent struct {
	Fact           Fact          `json:"fact"`
	CaseID         domain.CaseID `json:"case_id"`
	SequenceNumber int64         `json:"sequence_number"`
}

// RawGrunnlag is the unprojected input of the projection engine.
type RawGrunnlag struct {
	CaseID domain.CaseID `json:"case_id"`
	Events []FactEvent   `json:"events"`
}
