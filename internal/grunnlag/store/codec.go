package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"grunnlag/internal/grunnlag/models"
	"grunnlag/pkg/domain"
)

// factPayload is the stored form of a fact without its provenance, which lives
// in its own column.
type factPayload struct {
	ID       domain.FactID   `json:"id"`
	Type     models.FactType `json:"type"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	Value    json.RawMessage `json:"value"`
	PersonID domain.PersonID `json:"person_id,omitempty"`
	Period   *models.Period  `json:"period,omitempty"`
}

type encodedFact struct {
	person     sql.NullString
	periodized bool
	fact       []byte
	source     []byte
}

func encodeFact(f models.Fact) (encodedFact, error) {
	if err := f.Validate(); err != nil {
		return encodedFact{}, err
	}
	value, err := models.EncodeValue(f.Value)
	if err != nil {
		return encodedFact{}, err
	}
	fact, err := json.Marshal(factPayload{
		ID:       f.ID,
		Type:     f.Type,
		Metadata: f.Metadata,
		Value:    value,
		PersonID: f.PersonID,
		Period:   f.Period,
	})
	if err != nil {
		return encodedFact{}, fmt.Errorf("marshal fact payload: %w", err)
	}
	source, err := json.Marshal(f.Source)
	if err != nil {
		return encodedFact{}, fmt.Errorf("marshal source payload: %w", err)
	}
	return encodedFact{
		person:     sql.NullString{String: f.PersonID.String(), Valid: !f.PersonID.IsZero()},
		periodized: f.IsPeriodized(),
		fact:       fact,
		source:     source,
	}, nil
}

func decodeEvent(caseID domain.CaseID, seq int64, factBytes, sourceBytes []byte) (models.FactEvent, error) {
	var p factPayload
	if err := json.Unmarshal(factBytes, &p); err != nil {
		return models.FactEvent{}, fmt.Errorf("unmarshal fact payload at seq %d: %w", seq, err)
	}
	var source models.Source
	if err := json.Unmarshal(sourceBytes, &source); err != nil {
		return models.FactEvent{}, fmt.Errorf("unmarshal source payload at seq %d: %w", seq, err)
	}
	value, err := models.DecodeValue(p.Type, p.Value)
	if err != nil {
		return models.FactEvent{}, fmt.Errorf("seq %d: %w", seq, err)
	}
	return models.FactEvent{
		Fact: models.Fact{
			ID:       p.ID,
			Source:   source,
			Type:     p.Type,
			Metadata: p.Metadata,
			Value:    value,
			PersonID: p.PersonID,
			Period:   p.Period,
		},
		CaseID:         caseID,
		SequenceNumber: seq,
	}, nil
}

func typeStrings(types []models.FactType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
