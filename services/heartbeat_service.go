package services

import (
	"serra-http-service/config"
	"serra-http-service/models"
	"time"

	"gorm.io/gorm"
)

// HeartbeatInput 心跳上报的遥测内容
type HeartbeatInput struct {
	RSSI            int    `json:"rssi"`
	FirmwareVersion string `json:"firmware_version"`
	IPAddress       string `json:"ip_address"`
}

// InterfaceHeartbeatService 定义心跳/在线状态服务接口
type InterfaceHeartbeatService interface {
	ProcessHeartbeat(ident models.DeviceIdentifier, key string, input HeartbeatInput) (*models.Device, error)
	Sweep() (int64, error)
	StartSweeper() chan struct{}
}

// HeartbeatService 维护设备在线状态。
// 状态机：waiting -> online -> offline -> online；
// waiting 不会直接变为 offline。
// 上线由心跳路径驱动，离线由周期扫描驱动，
// 读取方随时可以直接查状态字段，无需按时间戳现算。
type HeartbeatService struct {
	DB          *gorm.DB
	Config      *config.Config
	Devices     InterfaceDeviceService
	Credentials InterfaceCredentialService
	MQTT        InterfaceMQTTService
	Redis       InterfaceRedisService
}

// NewHeartbeatService 创建一个新的心跳服务
func NewHeartbeatService(
	db *gorm.DB,
	cfg *config.Config,
	devices InterfaceDeviceService,
	credentials InterfaceCredentialService,
	mqttService InterfaceMQTTService,
	redisService InterfaceRedisService,
) InterfaceHeartbeatService {
	return &HeartbeatService{
		DB:          db,
		Config:      cfg,
		Devices:     devices,
		Credentials: credentials,
		MQTT:        mqttService,
		Redis:       redisService,
	}
}

// 1 ProcessHeartbeat 处理一次设备心跳。
// 标识先校验格式再查库；密钥校验失败返回 ErrCredentialMismatch。
// LastSeenAt 使用服务端接收时间，乱序重试不会用旧数据覆盖新状态；
// 重复心跳只是再次确认在线，属于幂等操作。
func (s *HeartbeatService) ProcessHeartbeat(ident models.DeviceIdentifier, key string, input HeartbeatInput) (*models.Device, error) {
	device, err := s.Devices.ResolveDevice(ident)
	if err != nil {
		// 设备不存在时也执行一次密钥比较，保持耗时一致
		s.Credentials.VerifySecret(nil, key)
		return nil, err
	}

	if !s.Credentials.VerifySecret(device, key) {
		return nil, ErrCredentialMismatch
	}

	now := models.CurrentTime()
	prevStatus := device.Status

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(device).Updates(map[string]interface{}{
			"status":       models.DeviceStatusOnline,
			"last_seen_at": now,
		}).Error; err != nil {
			return err
		}

		event := &models.HeartbeatEvent{
			DeviceID:        device.ID,
			ReceivedAt:      now,
			RSSI:            input.RSSI,
			FirmwareVersion: input.FirmwareVersion,
			IPAddress:       input.IPAddress,
		}
		return tx.Create(event).Error
	})
	if err != nil {
		return nil, err
	}

	device.Status = models.DeviceStatusOnline
	device.LastSeenAt = &now

	// 状态变化时通知看板，缓存最新遥测；二者都是尽力而为
	if prevStatus != models.DeviceStatusOnline {
		config.Info("设备 %s 上线 (之前状态: %s)", device.CompositeID, prevStatus)
		if err := s.MQTT.PublishDeviceStatus(device.CompositeID, map[string]interface{}{
			"status":    string(models.DeviceStatusOnline),
			"timestamp": now.Unix(),
		}); err != nil {
			config.Warning("发布设备上线消息失败: %v", err)
		}
	}
	if err := s.Redis.CacheDeviceTelemetry(device.UUID, input, s.Config.OfflineThreshold); err != nil {
		config.Warning("缓存设备遥测失败: %v", err)
	}

	return device, nil
}

// 2 Sweep 离线扫描：把超过阈值未上报心跳的在线设备批量置为离线。
// 只处理 online 状态，waiting 设备永远不会被扫描置为 offline。
// 单条批量UPDATE一次处理所有过期设备，重复执行结果不变。
func (s *HeartbeatService) Sweep() (int64, error) {
	cutoff := models.CurrentTime().Add(-s.Config.OfflineThreshold)

	var staleIDs []uint
	if err := s.DB.Model(&models.Device{}).
		Where("status = ? AND last_seen_at < ?", models.DeviceStatusOnline, cutoff).
		Pluck("id", &staleIDs).Error; err != nil {
		return 0, err
	}
	if len(staleIDs) == 0 {
		return 0, nil
	}

	// UPDATE带完整条件重查：候选集取出后刚收到心跳的设备不会被置离线
	result := s.DB.Model(&models.Device{}).
		Where("id IN ? AND status = ? AND last_seen_at < ?", staleIDs, models.DeviceStatusOnline, cutoff).
		Update("status", models.DeviceStatusOffline)
	if result.Error != nil {
		return 0, result.Error
	}

	// 只为本轮真正被置离线的设备发布通知
	var flipped []models.Device
	if err := s.DB.Select("id", "uuid", "composite_id").
		Where("id IN ? AND status = ?", staleIDs, models.DeviceStatusOffline).
		Find(&flipped).Error; err != nil {
		return result.RowsAffected, err
	}

	for _, device := range flipped {
		config.Info("设备 %s 离线 (超过 %s 未收到心跳)", device.CompositeID, s.Config.OfflineThreshold)
		if err := s.MQTT.PublishDeviceStatus(device.CompositeID, map[string]interface{}{
			"status":    string(models.DeviceStatusOffline),
			"timestamp": models.CurrentTime().Unix(),
		}); err != nil {
			config.Warning("发布设备离线消息失败: %v", err)
		}
	}

	if len(flipped) > 0 {
		if err := s.MQTT.PublishSystemMessage("liveness_sweep", map[string]interface{}{
			"offline_count": len(flipped),
		}); err != nil {
			config.Warning("发布离线扫描消息失败: %v", err)
		}
	}

	return result.RowsAffected, nil
}

// 3 StartSweeper 启动周期离线扫描，返回停止通道。
// 扫描周期与请求流量无关，固定按墙钟间隔执行。
func (s *HeartbeatService) StartSweeper() chan struct{} {
	stop := make(chan struct{})
	ticker := time.NewTicker(s.Config.SweepInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				count, err := s.Sweep()
				if err != nil {
					config.Error("离线扫描失败: %v", err)
					continue
				}
				if count > 0 {
					config.Info("离线扫描完成，本轮置离线设备数: %d", count)
				}
			case <-stop:
				return
			}
		}
	}()

	return stop
}
