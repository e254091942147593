package models

// FactType tags what a fact represents. The catalog is closed: ingestion only
// produces the types below. Types outside the catalog are still readable (see
// UnknownValue) so that rows written by a newer producer do not break old readers.
type FactType string

const (
	FactTypeName            FactType = "NAME"
	FactTypeBirthDate       FactType = "BIRTH_DATE"
	FactTypeDeathDate       FactType = "DEATH_DATE"
	FactTypeAddress         FactType = "ADDRESS"
	FactTypeCivilStatus     FactType = "CIVIL_STATUS"
	FactTypeCitizenship     FactType = "CITIZENSHIP"
	FactTypeChildren        FactType = "CHILDREN"
	FactTypeResidenceAbroad FactType = "RESIDENCE_ABROAD"
	FactTypeLanguage        FactType = "LANGUAGE"
	FactTypeRoster          FactType = "ROSTER"
	FactTypeReceivedDate    FactType = "RECEIVED_DATE"
)

// FactTypes lists the catalog in a stable order.
var FactTypes = []FactType{
	FactTypeName,
	FactTypeBirthDate,
	FactTypeDeathDate,
	FactTypeAddress,
	FactTypeCivilStatus,
	FactTypeCitizenship,
	FactTypeChildren,
	FactTypeResidenceAbroad,
	FactTypeLanguage,
	FactTypeRoster,
	FactTypeReceivedDate,
}

// IsKnown reports whether t belongs to the catalog.
func (t FactType) IsKnown() bool {
	_, ok := valueDecoders[t]
	return ok
}

func (t FactType) String() string { return string(t) }
