package species

import "github.com/google/uuid"

// Species is shared reference data, visible to every tenant.
type Species struct {
	ID             uuid.UUID `json:"id"`
	CommonName     string    `json:"common_name"`
	ScientificName string    `json:"scientific_name"`
	Category       string    `json:"category"`
}
