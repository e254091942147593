package testutil

import (
	"time"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
)

// Person ids used across tests.
const (
	Applicant domain.PersonID = "01018012345"
	Deceased  domain.PersonID = "02027054321"
	Child     domain.PersonID = "03031011111"
)

// Source returns a registry provenance captured at a fixed instant.
func Source() models.Source {
	return models.Source{
		Kind:       models.SourceRegistryLookup,
		CapturedAt: time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
		Reference:  "test",
	}
}

// Name builds a constant NAME fact.
func Name(person domain.PersonID, first, last string) models.Fact {
	return models.NewConstantFact(models.FactTypeName, person, models.NameValue{First: first, Last: last}, Source())
}

// BirthDate builds a constant BIRTH_DATE fact.
func BirthDate(person domain.PersonID, date string) models.Fact {
	return models.NewConstantFact(models.FactTypeBirthDate, person, models.DateValue{Date: MustDate(date)}, Source())
}

// Language builds a case-level LANGUAGE fact.
func Language(code string) models.Fact {
	return models.NewConstantFact(models.FactTypeLanguage, "", models.LanguageValue{Code: code}, Source())
}

// Roster builds a case-level ROSTER fact naming the applicant and relatives.
func Roster(applicant domain.PersonID, deceased ...domain.PersonID) models.Fact {
	return models.NewConstantFact(models.FactTypeRoster, "", models.RosterValue{
		Applicant: applicant,
		Deceased:  deceased,
	}, Source())
}

// Address builds a periodized ADDRESS fact. An empty to means open-ended.
func Address(person domain.PersonID, line, from, to string) models.Fact {
	period := models.OpenPeriod(MustDate(from))
	if to != "" {
		period = models.NewPeriod(MustDate(from), MustDate(to))
	}
	return models.NewPeriodizedFact(models.FactTypeAddress, person, models.AddressValue{Lines: []string{line}}, Source(), period)
}

// Events places facts in a ledger order starting at sequence number 1.
func Events(caseID domain.CaseID, facts ...models.Fact) []models.FactEvent {
	out := make([]models.FactEvent, len(facts))
	for i, f := range facts {
		out[i] = models.FactEvent{Fact: f, CaseID: caseID, SequenceNumber: int64(i + 1)}
	}
	return out
}

// MustDate parses YYYY-MM-DD or panics.
func MustDate(s string) models.Date {
	d, err := models.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
