package pipeline

import "github.com/google/uuid"

// IDGenerator produces provisional person ids. Every call must return a
// value not returned before in this process.
type IDGenerator func() string

// TempPersonIDs returns the default generator: "temp_person_" followed by a
// UUIDv7, unique across concurrent runs regardless of clock resolution.
func TempPersonIDs() IDGenerator {
	return func() string {
		return "temp_person_" + uuid.Must(uuid.NewV7()).String()
	}
}
