package utils

import (
	"log"

	"github.com/google/uuid"
)

// GenerateID returns a random UUID v4 string. Used for web form session
// ids and JWT jti claims. Returns "" when the entropy source fails.
func GenerateID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		log.Printf("Failed to generate UUID: %v", err)
		return ""
	}
	return id.String()
}
