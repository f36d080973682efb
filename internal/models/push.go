package models

import "time"

// PushRegistration is a device's push notification token. Registering the
// same token again only refreshes UpdatedAt.
type PushRegistration struct {
	Token     string    `json:"token" gorm:"primaryKey;type:varchar(255)"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
