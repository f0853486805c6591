package models

import (
	"time"

	"github.com/google/uuid"
)

// Dataset is one imported collection of SKU demand series, addressed by a
// stable external identifier (the same identifier clients use when creating
// optimization jobs).
type Dataset struct {
	ID         uuid.UUID `db:"id"         json:"id"`
	Identifier string    `db:"identifier" json:"identifier"`
	Name       string    `db:"name"       json:"name"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
