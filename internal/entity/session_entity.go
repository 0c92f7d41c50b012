package entity

import "time"

type Session struct {
	Id          string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}
