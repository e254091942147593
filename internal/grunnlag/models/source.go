package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SourceKind names where a fact was captured from.
type SourceKind string

const (
	SourceRegistryLookup           SourceKind = "registry_lookup"
	SourceLegacySystem             SourceKind = "legacy_system"
	SourcePrivateCitizenSubmission SourceKind = "private_citizen_submission"
	SourceThirdPartyLookup         SourceKind = "third_party_lookup"
)

// IsValid reports whether k is one of the known provenance kinds.
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceRegistryLookup, SourceLegacySystem, SourcePrivateCitizenSubmission, SourceThirdPartyLookup:
		return true
	}
	return false
}

// Source is the provenance of a fact. It is set once and travels with the fact.
type Source struct {
	Kind       SourceKind `json:"kind"`
	CapturedAt time.Time  `json:"captured_at"`
	Reference  string     `json:"reference,omitempty"`
}

// UnmarshalJSON rejects unknown provenance kinds.
func (s *Source) UnmarshalJSON(b []byte) error {
	type plain Source
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("unknown source kind %q", p.Kind)
	}
	*s = Source(p)
	return nil
}
