package instance

import "github.com/angelmondragon/salesrank-backend/pkg/env"

// GetID returns the process instance identifier used in startup logs.
// Heroku's DYNO wins over SALESRANK_INSTANCE_ID.
func GetID() string {
	return env.First("local", "DYNO", "SALESRANK_INSTANCE_ID")
}
