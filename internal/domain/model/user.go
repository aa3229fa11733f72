package model

import "time"

// User is the minimal slice of the host application's user record that the
// credential layer needs: the fields re-fetched fresh on every authenticated
// request.
type User struct {
	ID             string
	Email          string
	Role           string
	OrganizationID string
	CreatedAt      time.Time
}
