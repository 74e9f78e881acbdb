package models

import "github.com/google/uuid"

// ensureID assigns a fresh identifier when the caller left it empty so rows
// can be created on databases without gen_random_uuid().
func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
