package services

import (
	"errors"
	"serra-http-service/config"
	"serra-http-service/models"

	"gorm.io/gorm"
)

var (
	// ErrCommandNotFound 指令不存在
	ErrCommandNotFound = errors.New("指令不存在")
	// ErrCommandInvalid 指令参数无效
	ErrCommandInvalid = errors.New("指令参数无效")
)

// InterfaceCommandService 定义指令分发服务接口
type InterfaceCommandService interface {
	Enqueue(deviceID uint, actuatorID, commandType string, value float64) (*models.Command, error)
	PendingForDevice(deviceID uint) ([]models.Command, error)
	Confirm(commandID uint) error
	Cancel(commandID uint) error
	ListForDevice(deviceID uint, status string) ([]models.Command, error)
}

// CommandService 每设备单消费者、多生产者的指令队列。
// FIFO 只在单个设备内按入队顺序保证；
// 未确认的指令在每次轮询中重复可见（至少一次投递），
// 不会自动过期——物理执行器指令要么最终执行，要么由操作员显式撤销。
type CommandService struct {
	DB     *gorm.DB
	Config *config.Config
}

// NewCommandService 创建一个新的指令服务
func NewCommandService(db *gorm.DB, cfg *config.Config) InterfaceCommandService {
	return &CommandService{
		DB:     db,
		Config: cfg,
	}
}

// 1 Enqueue 追加一条待执行指令。
// 不对语义重复的指令做去重，重复执行由设备侧执行器幂等性兜底。
func (s *CommandService) Enqueue(deviceID uint, actuatorID, commandType string, value float64) (*models.Command, error) {
	if actuatorID == "" || commandType == "" {
		return nil, ErrCommandInvalid
	}

	var device models.Device
	if err := s.DB.First(&device, deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	command := &models.Command{
		DeviceID:    deviceID,
		ActuatorID:  actuatorID,
		CommandType: commandType,
		Value:       value,
		Status:      models.CommandStatusPending,
	}

	if err := s.DB.Create(command).Error; err != nil {
		return nil, err
	}

	return command, nil
}

// 2 PendingForDevice 返回设备全部待执行指令，按入队顺序。
// 确认前的重复轮询会返回同一批指令。
func (s *CommandService) PendingForDevice(deviceID uint) ([]models.Command, error) {
	var commands []models.Command
	if err := s.DB.Where("device_id = ? AND status = ?", deviceID, models.CommandStatusPending).
		Order("id").
		Find(&commands).Error; err != nil {
		return nil, err
	}

	return commands, nil
}

// 3 Confirm 确认指令已执行：pending -> confirmed，最多发生一次。
// 未知ID或已确认的指令静默忽略——设备无法可靠得知
// 上一次确认是否在连接断开前到达服务端，重复确认必须无害。
func (s *CommandService) Confirm(commandID uint) error {
	now := models.CurrentTime()
	return s.DB.Model(&models.Command{}).
		Where("id = ? AND status = ?", commandID, models.CommandStatusPending).
		Updates(map[string]interface{}{
			"status":       models.CommandStatusConfirmed,
			"confirmed_at": now,
		}).Error
}

// 4 Cancel 操作员撤销待执行指令。
// 与设备确认并发竞争时先到者生效：指令已被确认则撤销退化为空操作，
// 不报冲突错误；完全不存在的ID返回 ErrCommandNotFound。
func (s *CommandService) Cancel(commandID uint) error {
	result := s.DB.Where("id = ? AND status = ?", commandID, models.CommandStatusPending).
		Delete(&models.Command{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := s.DB.Model(&models.Command{}).Where("id = ?", commandID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrCommandNotFound
	}

	// 指令已被设备确认，撤销方输掉竞争，按空操作处理
	return nil
}

// 5 ListForDevice 列出设备的指令，可按状态过滤
func (s *CommandService) ListForDevice(deviceID uint, status string) ([]models.Command, error) {
	query := s.DB.Where("device_id = ?", deviceID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var commands []models.Command
	if err := query.Order("id desc").Find(&commands).Error; err != nil {
		return nil, err
	}

	return commands, nil
}
