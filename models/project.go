package models

import (
	"time"
)

// ProjectStatus represents the lifecycle status of a greenhouse project
type ProjectStatus string

const (
	ProjectStatusActive   ProjectStatus = "active"
	ProjectStatusArchived ProjectStatus = "archived"
)

// Project represents a greenhouse project owning up to 20 device slots
type Project struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:varchar(50);unique;not null" json:"name"`
	PublicID  string        `gorm:"type:varchar(10);unique;not null" json:"public_id"` // PROJ1..PROJ999, P1000..P9999，创建时分配一次，永不复用
	Owner     string        `gorm:"type:varchar(50)" json:"owner"`
	Status    ProjectStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`

	// Relations
	Devices []Device `gorm:"foreignKey:ProjectID" json:"devices,omitempty"`
}
