package models

import (
	"time"
)

// CommandStatus represents the delivery state of an actuator command
type CommandStatus string

const (
	CommandStatusPending   CommandStatus = "pending"
	CommandStatusConfirmed CommandStatus = "confirmed"
)

// Command 操作员下发给设备执行器的指令。
// 未确认的指令在每次轮询中重复可见（至少一次投递），
// 不会自动过期，撤销只能由操作员显式删除。
type Command struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	DeviceID    uint          `gorm:"not null;index" json:"device_id"`
	ActuatorID  string        `gorm:"type:varchar(50);not null" json:"actuator_id"` // 如 pump_1、fan_2
	CommandType string        `gorm:"type:varchar(30);not null" json:"command_type"`
	Value       float64       `json:"value"`
	Status      CommandStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ConfirmedAt *time.Time    `json:"confirmed_at"`
}
