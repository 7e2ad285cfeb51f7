package models

import (
	"time"
)

// HeartbeatEvent 记录设备的一次心跳上报，只追加、不修改
type HeartbeatEvent struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	DeviceID        uint      `gorm:"not null;index" json:"device_id"`
	ReceivedAt      time.Time `gorm:"not null;index" json:"received_at"` // 服务端接收时间，不信任客户端时间戳
	RSSI            int       `json:"rssi"`
	FirmwareVersion string    `gorm:"type:varchar(20)" json:"firmware_version"`
	IPAddress       string    `gorm:"type:varchar(45)" json:"ip_address"`
}

// TableName specifies the table name for HeartbeatEvent
func (HeartbeatEvent) TableName() string {
	return "heartbeat_events"
}
