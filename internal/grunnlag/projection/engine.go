// Package projection turns a case's fact events into the person-structured
// Grunnlag view.
//
// Project is a pure function: it performs no I/O and holds no state, so it is
// safe to call concurrently and redundantly. Events are grouped by
// (person, fact type). A group is either constant, resolved latest-wins by
// sequence number, or periodized, where every event contributes an interval.
// A group mixing the two is corrupt input and aborts the projection with an
// *InvariantError.
//
// Output order is deterministic for a given input: relatives appear in the order
// their first event appears, and periodized intervals keep input order. No
// sorting or overlap check is applied to intervals.
package projection

import (
	"fmt"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

// InvariantError reports a (person, fact type) group holding both constant and
// periodized events.
type InvariantError struct {
	CaseID   domain.CaseID
	PersonID domain.PersonID
	FactType models.FactType
}

func (e *InvariantError) Error() string {
	person := e.PersonID.String()
	if e.PersonID.IsZero() {
		person = "case"
	}
	return fmt.Sprintf("case %s: %s group for %s mixes constant and periodized facts", e.CaseID, e.FactType, person)
}

// Unwrap lets callers match sentinel.ErrInvariantViolation.
func (e *InvariantError) Unwrap() error { return sentinel.ErrInvariantViolation }

type slotKey struct {
	person   domain.PersonID
	factType models.FactType
}

// Project resolves raw into a Grunnlag. Person-level facts whose person equals
// applicant form the applicant map; every other person gets a relative map.
// A zero applicant places all person-level facts under relatives.
func Project(raw models.RawGrunnlag, applicant domain.PersonID) (models.Grunnlag, error) {
	groups := make(map[slotKey][]models.FactEvent)
	var order []slotKey
	for _, ev := range raw.Events {
		key := slotKey{person: ev.Fact.PersonID, factType: ev.Fact.Type}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
	}

	out := models.Grunnlag{
		Applicant: models.FactMap{},
		Relatives: []models.FactMap{},
		CaseFacts: models.FactMap{},
		Metadata:  models.Metadata{CaseID: raw.CaseID},
	}
	relativeIndex := make(map[domain.PersonID]int)

	for _, key := range order {
		resolved, err := resolve(raw.CaseID, key, groups[key])
		if err != nil {
			return models.Grunnlag{}, err
		}
		if seq := resolved.LatestSequence(); seq > out.Metadata.LatestVersion {
			out.Metadata.LatestVersion = seq
		}

		switch {
		case key.person.IsZero():
			out.CaseFacts[key.factType] = resolved
		case !applicant.IsZero() && key.person == applicant:
			out.Applicant[key.factType] = resolved
		default:
			idx, ok := relativeIndex[key.person]
			if !ok {
				idx = len(out.Relatives)
				relativeIndex[key.person] = idx
				out.Relatives = append(out.Relatives, models.FactMap{})
			}
			out.Relatives[idx][key.factType] = resolved
		}
	}
	return out, nil
}

func resolve(caseID domain.CaseID, key slotKey, events []models.FactEvent) (models.Opplysning, error) {
	periodized := events[0].Fact.IsPeriodized()
	for _, ev := range events[1:] {
		if ev.Fact.IsPeriodized() != periodized {
			return models.Opplysning{}, &InvariantError{CaseID: caseID, PersonID: key.person, FactType: key.factType}
		}
	}

	o := models.Opplysning{Type: key.factType, PersonID: key.person}
	if !periodized {
		latest := events[0]
		for _, ev := range events[1:] {
			if ev.SequenceNumber > latest.SequenceNumber {
				latest = ev
			}
		}
		o.Kind = models.KindConstant
		o.Current = &models.Versioned{
			FactID:         latest.Fact.ID,
			Source:         latest.Fact.Source,
			Value:          latest.Fact.Value,
			SequenceNumber: latest.SequenceNumber,
		}
		return o, nil
	}

	o.Kind = models.KindPeriodized
	o.Periods = make([]models.PeriodEntry, 0, len(events))
	for _, ev := range events {
		o.Periods = append(o.Periods, models.PeriodEntry{
			FactID:         ev.Fact.ID,
			Source:         ev.Fact.Source,
			Value:          ev.Fact.Value,
			From:           ev.Fact.Period.From,
			To:             ev.Fact.Period.To,
			SequenceNumber: ev.SequenceNumber,
		})
	}
	return o, nil
}

// ApplicantFrom returns the applicant named by the latest case-level roster
// fact, or the zero id when the case has none.
func ApplicantFrom(events []models.FactEvent) domain.PersonID {
	var (
		applicant domain.PersonID
		seq       int64
	)
	for _, ev := range events {
		if ev.Fact.Type != models.FactTypeRoster || !ev.Fact.IsCaseLevel() {
			continue
		}
		roster, ok := ev.Fact.Value.(models.RosterValue)
		if !ok || ev.SequenceNumber < seq {
			continue
		}
		applicant, seq = roster.Applicant, ev.SequenceNumber
	}
	return applicant
}
