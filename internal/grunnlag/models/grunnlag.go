package models

import (
	"encoding/json"
	"fmt"

	"grunnlag/pkg/domain"
)

// OpplysningKind distinguishes the two update semantics of a resolved fact slot.
type OpplysningKind string

const (
	// KindConstant slots expose only the latest written version.
	KindConstant OpplysningKind = "konstant"
	// KindPeriodized slots expose every interval ever written.
	KindPeriodized OpplysningKind = "periodisert"
)

// Versioned is one resolved constant value with its provenance.
type Versioned struct {
	FactID         domain.FactID `json:"fact_id"`
	Source         Source        `json:"source"`
	Value          Value         `json:"value"`
	SequenceNumber int64         `json:"sequence_number"`
}

// PeriodEntry is one interval of a periodized slot.
type PeriodEntry struct {
	FactID         domain.FactID `json:"fact_id"`
	Source         Source        `json:"source"`
	Value          Value         `json:"value"`
	From           Date          `json:"from"`
	To             *Date         `json:"to,omitempty"`
	SequenceNumber int64         `json:"sequence_number"`
}

// Opplysning is the resolved content of one (person, fact type) slot.
// Constant slots set Current; periodized slots set Periods.
type Opplysning struct {
	Kind     OpplysningKind  `json:"kind"`
	Type     FactType        `json:"type"`
	PersonID domain.PersonID `json:"person_id,omitempty"`
	Current  *Versioned      `json:"current,omitempty"`
	Periods  []PeriodEntry   `json:"periods,omitempty"`
}

// LatestSequence returns the highest sequence number contributing to the slot.
func (o Opplysning) LatestSequence() int64 {
	if o.Current != nil {
		return o.Current.SequenceNumber
	}
	var latest int64
	for _, p := range o.Periods {
		if p.SequenceNumber > latest {
			latest = p.SequenceNumber
		}
	}
	return latest
}

type versionedJSON struct {
	FactID         domain.FactID   `json:"fact_id"`
	Source         Source          `json:"source"`
	Value          json.RawMessage `json:"value"`
	SequenceNumber int64           `json:"sequence_number"`
}

type periodEntryJSON struct {
	FactID         domain.FactID   `json:"fact_id"`
	Source         Source          `json:"source"`
	Value          json.RawMessage `json:"value"`
	From           Date            `json:"from"`
	To             *Date           `json:"to,omitempty"`
	SequenceNumber int64           `json:"sequence_number"`
}

type opplysningJSON struct {
	Kind     OpplysningKind    `json:"kind"`
	Type     FactType          `json:"type"`
	PersonID domain.PersonID   `json:"person_id,omitempty"`
	Current  *versionedJSON    `json:"current,omitempty"`
	Periods  []periodEntryJSON `json:"periods,omitempty"`
}

// UnmarshalJSON restores typed values using the slot's fact type.
func (o *Opplysning) UnmarshalJSON(b []byte) error {
	var raw opplysningJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := Opplysning{Kind: raw.Kind, Type: raw.Type, PersonID: raw.PersonID}
	switch raw.Kind {
	case KindConstant:
		if raw.Current == nil {
			return fmt.Errorf("konstant opplysning %s without current value", raw.Type)
		}
		v, err := DecodeValue(raw.Type, raw.Current.Value)
		if err != nil {
			return err
		}
		out.Current = &Versioned{
			FactID:         raw.Current.FactID,
			Source:         raw.Current.Source,
			Value:          v,
			SequenceNumber: raw.Current.SequenceNumber,
		}
	case KindPeriodized:
		out.Periods = make([]PeriodEntry, 0, len(raw.Periods))
		for _, p := range raw.Periods {
			v, err := DecodeValue(raw.Type, p.Value)
			if err != nil {
				return err
			}
			out.Periods = append(out.Periods, PeriodEntry{
				FactID:         p.FactID,
				Source:         p.Source,
				Value:          v,
				From:           p.From,
				To:             p.To,
				SequenceNumber: p.SequenceNumber,
			})
		}
	default:
		return fmt.Errorf("unknown opplysning kind %q", raw.Kind)
	}
	*o = out
	return nil
}

// FactMap holds the resolved slots of one person, or of the case.
type FactMap map[FactType]Opplysning

// Metadata stamps a projection with the case and the version it reflects.
type Metadata struct {
	CaseID        domain.CaseID `json:"case_id"`
	LatestVersion int64         `json:"latest_version"`
}

// Grunnlag is the projected current view of a case, split into the applicant's
// facts, one map per relative, and case-level facts.
type Grunnlag struct {
	Applicant FactMap   `json:"soker"`
	Relatives []FactMap `json:"familie"`
	CaseFacts FactMap   `json:"sak"`
	Metadata  Metadata  `json:"metadata"`
}
