package models

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeviceStatus represents the liveness state of a greenhouse device
type DeviceStatus string

const (
	DeviceStatusWaiting DeviceStatus = "waiting" // 已注册但从未上报心跳
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// 设备槽位范围，固件侧硬编码小编号，服务端只负责唯一性
const (
	SlotMin = 1
	SlotMax = 20
)

// CompositeIDPattern 校验组合设备ID格式，如 PROJ1-ESP5
var CompositeIDPattern = regexp.MustCompile(`^[A-Z0-9]{4,5}-ESP(1[0-9]|20|[1-9])$`)

var ErrMalformedCompositeID = errors.New("组合设备ID格式无效")

// Device represents an ESP8266 greenhouse controller bound to a project slot
type Device struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	UUID        string       `gorm:"type:varchar(36);unique;not null" json:"uuid"` // 设备内部UUID，固件v2.x使用
	ProjectID   uint         `gorm:"not null;uniqueIndex:idx_project_slot" json:"project_id"`
	Slot        int          `gorm:"not null;uniqueIndex:idx_project_slot" json:"slot"`
	CompositeID string       `gorm:"type:varchar(12);unique;not null" json:"composite_id"` // 项目公开ID + "-ESP" + 槽位号，分配后不可变
	Name        string       `gorm:"type:varchar(50);not null" json:"name"`
	SecretHash  string       `gorm:"type:varchar(100);not null" json:"-"` // 仅保存密钥哈希，明文只在注册时返回一次
	Status      DeviceStatus `gorm:"type:varchar(20);default:'waiting'" json:"status"`
	LastSeenAt  *time.Time   `json:"last_seen_at"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`

	// Relations
	Project         *Project         `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	HeartbeatEvents []HeartbeatEvent `gorm:"foreignKey:DeviceID" json:"heartbeat_events,omitempty"`
	Commands        []Command        `gorm:"foreignKey:DeviceID" json:"commands,omitempty"`
}

// BeforeCreate 确保设备UUID已生成
func (d *Device) BeforeCreate(tx *gorm.DB) error {
	if d.UUID == "" {
		d.UUID = uuid.NewString()
	}
	return nil
}

// MakeCompositeID 拼接组合设备ID
func MakeCompositeID(publicID string, slot int) string {
	return fmt.Sprintf("%s-ESP%d", publicID, slot)
}

// ValidateCompositeID 在访问存储之前校验组合设备ID格式
func ValidateCompositeID(id string) error {
	if !CompositeIDPattern.MatchString(id) {
		return ErrMalformedCompositeID
	}
	return nil
}

// DeviceIdentifier 设备标识的联合类型：内部UUID或组合ID，二者解析到同一设备
type DeviceIdentifier struct {
	UUID        string
	CompositeID string
}

// IsZero 判断是否未提供任何标识
func (i DeviceIdentifier) IsZero() bool {
	return i.UUID == "" && i.CompositeID == ""
}
