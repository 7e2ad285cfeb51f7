package services

import (
	"errors"
	"serra-http-service/config"
	"serra-http-service/models"

	"gorm.io/gorm"
)

var (
	// ErrDeviceNotFound 设备不存在
	ErrDeviceNotFound = errors.New("设备不存在")
	// ErrSlotTaken 槽位已被占用，由联合唯一索引在提交时检测
	ErrSlotTaken = errors.New("槽位已被占用")
	// ErrSlotOutOfRange 槽位编号超出1..20
	ErrSlotOutOfRange = errors.New("槽位编号超出范围")
	// ErrProjectArchived 项目已归档，不能注册新设备
	ErrProjectArchived = errors.New("项目已归档")
)

// SlotInfo 槽位占用情况
type SlotInfo struct {
	Slot      int  `json:"slot"`
	Available bool `json:"available"`
}

// InterfaceDeviceService 定义设备服务接口
type InterfaceDeviceService interface {
	GetAllDevices() ([]models.Device, error)
	GetDevicesByProject(projectID uint) ([]models.Device, error)
	GetDeviceByID(id uint) (*models.Device, error)
	ResolveDevice(ident models.DeviceIdentifier) (*models.Device, error)
	RegisterDevice(projectID uint, slot int, name string) (*models.Device, string, error)
	ListAvailableSlots(projectID uint) ([]SlotInfo, error)
	UpdateDevice(id uint, updates map[string]interface{}) (*models.Device, error)
	DeleteDevice(id uint) error
	GetRecentHeartbeats(deviceID uint, limit int) ([]models.HeartbeatEvent, error)
}

// DeviceService 提供设备相关的服务
type DeviceService struct {
	DB          *gorm.DB
	Config      *config.Config
	Credentials InterfaceCredentialService
}

// NewDeviceService 创建一个新的设备服务
func NewDeviceService(db *gorm.DB, cfg *config.Config, credentials InterfaceCredentialService) InterfaceDeviceService {
	return &DeviceService{
		DB:          db,
		Config:      cfg,
		Credentials: credentials,
	}
}

// 1 GetAllDevices 获取所有设备列表
func (s *DeviceService) GetAllDevices() ([]models.Device, error) {
	var devices []models.Device
	if err := s.DB.Preload("Project").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// 1.2 GetDevicesByProject 根据项目获取设备列表
func (s *DeviceService) GetDevicesByProject(projectID uint) ([]models.Device, error) {
	var devices []models.Device
	if err := s.DB.Where("project_id = ?", projectID).Order("slot").Find(&devices).Error; err != nil {
		return nil, err
	}

	return devices, nil
}

// 2 GetDeviceByID 根据ID获取设备
func (s *DeviceService) GetDeviceByID(id uint) (*models.Device, error) {
	var device models.Device
	if err := s.DB.Preload("Project").First(&device, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &device, nil
}

// 3 ResolveDevice 解析设备标识。
// 内部UUID和组合ID是同一设备的两种写法（固件迁移期并存），
// 统一走这一个入口，组合ID先做格式校验再查库。
func (s *DeviceService) ResolveDevice(ident models.DeviceIdentifier) (*models.Device, error) {
	query := s.DB
	switch {
	case ident.UUID != "":
		query = query.Where("uuid = ?", ident.UUID)
	case ident.CompositeID != "":
		if err := models.ValidateCompositeID(ident.CompositeID); err != nil {
			return nil, err
		}
		query = query.Where("composite_id = ?", ident.CompositeID)
	default:
		return nil, models.ErrMalformedCompositeID
	}

	var device models.Device
	if err := query.First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	return &device, nil
}

// 4 RegisterDevice 在项目的指定槽位注册设备。
// 槽位由操作员选定（固件侧硬编码小编号），服务端只负责唯一性；
// 冲突不做预检查，由联合唯一索引在提交时报出。
// 返回的明文密钥只出现这一次，之后只能显式轮换。
func (s *DeviceService) RegisterDevice(projectID uint, slot int, name string) (*models.Device, string, error) {
	if slot < models.SlotMin || slot > models.SlotMax {
		return nil, "", ErrSlotOutOfRange
	}

	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrProjectNotFound
		}
		return nil, "", err
	}
	if project.Status == models.ProjectStatusArchived {
		return nil, "", ErrProjectArchived
	}

	plaintext, hash, err := s.Credentials.IssueSecret()
	if err != nil {
		return nil, "", err
	}

	device := &models.Device{
		ProjectID:   projectID,
		Slot:        slot,
		CompositeID: models.MakeCompositeID(project.PublicID, slot),
		Name:        name,
		SecretHash:  hash,
		Status:      models.DeviceStatusWaiting,
	}

	if err := s.DB.Create(device).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrSlotTaken
		}
		return nil, "", err
	}

	return device, plaintext, nil
}

// 5 ListAvailableSlots 列出项目全部20个槽位及占用状态
func (s *DeviceService) ListAvailableSlots(projectID uint) ([]SlotInfo, error) {
	var project models.Project
	if err := s.DB.First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	var taken []int
	if err := s.DB.Model(&models.Device{}).
		Where("project_id = ?", projectID).
		Pluck("slot", &taken).Error; err != nil {
		return nil, err
	}

	takenSet := make(map[int]bool, len(taken))
	for _, slot := range taken {
		takenSet[slot] = true
	}

	slots := make([]SlotInfo, 0, models.SlotMax)
	for slot := models.SlotMin; slot <= models.SlotMax; slot++ {
		slots = append(slots, SlotInfo{Slot: slot, Available: !takenSet[slot]})
	}

	return slots, nil
}

// 6 UpdateDevice 更新设备显示名称。
// 槽位和组合ID分配后不可变，更新请求中的这些字段会被忽略。
func (s *DeviceService) UpdateDevice(id uint, updates map[string]interface{}) (*models.Device, error) {
	device, err := s.GetDeviceByID(id)
	if err != nil {
		return nil, err
	}

	delete(updates, "slot")
	delete(updates, "composite_id")
	delete(updates, "uuid")
	delete(updates, "project_id")
	delete(updates, "secret_hash")

	if err := s.DB.Model(device).Updates(updates).Error; err != nil {
		return nil, err
	}

	return s.GetDeviceByID(id)
}

// 7 DeleteDevice 删除设备及其心跳记录和指令
func (s *DeviceService) DeleteDevice(id uint) error {
	device, err := s.GetDeviceByID(id)
	if err != nil {
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", id).Delete(&models.Command{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id = ?", id).Delete(&models.HeartbeatEvent{}).Error; err != nil {
			return err
		}
		return tx.Delete(device).Error
	})
}

// 8 GetRecentHeartbeats 获取设备最近的心跳记录（按接收时间倒序）
func (s *DeviceService) GetRecentHeartbeats(deviceID uint, limit int) ([]models.HeartbeatEvent, error) {
	if _, err := s.GetDeviceByID(deviceID); err != nil {
		return nil, err
	}

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var events []models.HeartbeatEvent
	if err := s.DB.Where("device_id = ?", deviceID).
		Order("received_at desc").
		Limit(limit).
		Find(&events).Error; err != nil {
		return nil, err
	}

	return events, nil
}
