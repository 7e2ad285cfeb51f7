package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"serra-http-service/models"
)

// setLastSeen 把设备的最后心跳时间回拨，用于模拟心跳停止
func setLastSeen(t *testing.T, s *testServices, deviceID uint, at time.Time) {
	t.Helper()
	if err := s.DB.Model(&models.Device{}).
		Where("id = ?", deviceID).
		Update("last_seen_at", at).Error; err != nil {
		t.Fatalf("回拨心跳时间失败: %v", err)
	}
}

func TestProcessHeartbeatBringsDeviceOnline(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, secret := mustRegisterDevice(t, s, project.ID, 5)

	updated, err := s.Heartbeat.ProcessHeartbeat(
		models.DeviceIdentifier{UUID: device.UUID},
		secret,
		HeartbeatInput{RSSI: -62, FirmwareVersion: "3.1.0", IPAddress: "192.168.1.40"},
	)
	if err != nil {
		t.Fatalf("心跳处理失败: %v", err)
	}

	if updated.Status != models.DeviceStatusOnline {
		t.Fatalf("心跳后状态为 %q, 期望 online", updated.Status)
	}
	if updated.LastSeenAt == nil {
		t.Fatal("心跳后 LastSeenAt 为空")
	}

	var events []models.HeartbeatEvent
	if err := s.DB.Where("device_id = ?", device.ID).Find(&events).Error; err != nil {
		t.Fatalf("查询心跳记录失败: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("心跳记录数 %d, 期望 1", len(events))
	}
	if events[0].RSSI != -62 || events[0].FirmwareVersion != "3.1.0" {
		t.Fatalf("心跳记录内容错误: %+v", events[0])
	}
}

func TestProcessHeartbeatByCompositeID(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, secret := mustRegisterDevice(t, s, project.ID, 5)

	updated, err := s.Heartbeat.ProcessHeartbeat(
		models.DeviceIdentifier{CompositeID: device.CompositeID}, secret, HeartbeatInput{})
	if err != nil {
		t.Fatalf("组合ID心跳处理失败: %v", err)
	}
	if updated.ID != device.ID {
		t.Fatalf("心跳解析到了错误的设备: %d, 期望 %d", updated.ID, device.ID)
	}
}

func TestProcessHeartbeatCredentialMismatch(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, _ := mustRegisterDevice(t, s, project.ID, 5)

	_, err := s.Heartbeat.ProcessHeartbeat(
		models.DeviceIdentifier{UUID: device.UUID}, "wrong-secret", HeartbeatInput{})
	if !errors.Is(err, ErrCredentialMismatch) {
		t.Fatalf("错误密钥期望 ErrCredentialMismatch, 得到: %v", err)
	}

	// 校验失败不产生任何状态变化
	current, err := s.Device.GetDeviceByID(device.ID)
	if err != nil {
		t.Fatalf("查询设备失败: %v", err)
	}
	if current.Status != models.DeviceStatusWaiting || current.LastSeenAt != nil {
		t.Fatalf("密钥错误的心跳修改了设备状态: %q", current.Status)
	}
}

func TestProcessHeartbeatUnknownDevice(t *testing.T) {
	s := newTestServices(t)

	_, err := s.Heartbeat.ProcessHeartbeat(
		models.DeviceIdentifier{CompositeID: "PROJ1-ESP5"}, "any", HeartbeatInput{})
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("未注册设备期望 ErrDeviceNotFound, 得到: %v", err)
	}
}

func TestSweepMarksStaleDevicesOffline(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	stale, staleSecret := mustRegisterDevice(t, s, project.ID, 1)
	fresh, freshSecret := mustRegisterDevice(t, s, project.ID, 2)

	for _, hb := range []struct {
		device *models.Device
		secret string
	}{{stale, staleSecret}, {fresh, freshSecret}} {
		if _, err := s.Heartbeat.ProcessHeartbeat(
			models.DeviceIdentifier{UUID: hb.device.UUID}, hb.secret, HeartbeatInput{}); err != nil {
			t.Fatalf("心跳失败: %v", err)
		}
	}

	// 其中一台超过阈值未上报
	setLastSeen(t, s, stale.ID, time.Now().Add(-s.Config.OfflineThreshold-time.Minute))

	count, err := s.Heartbeat.Sweep()
	if err != nil {
		t.Fatalf("离线扫描失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("本轮置离线 %d 台, 期望 1 台", count)
	}

	staleNow, _ := s.Device.GetDeviceByID(stale.ID)
	freshNow, _ := s.Device.GetDeviceByID(fresh.ID)
	if staleNow.Status != models.DeviceStatusOffline {
		t.Fatalf("超时设备状态为 %q, 期望 offline", staleNow.Status)
	}
	if freshNow.Status != models.DeviceStatusOnline {
		t.Fatalf("正常设备状态为 %q, 期望仍为 online", freshNow.Status)
	}
}

func TestSweepIdempotent(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, secret := mustRegisterDevice(t, s, project.ID, 1)

	if _, err := s.Heartbeat.ProcessHeartbeat(
		models.DeviceIdentifier{UUID: device.UUID}, secret, HeartbeatInput{}); err != nil {
		t.Fatalf("心跳失败: %v", err)
	}
	setLastSeen(t, s, device.ID, time.Now().Add(-s.Config.OfflineThreshold-time.Minute))

	first, err := s.Heartbeat.Sweep()
	if err != nil {
		t.Fatalf("第一次扫描失败: %v", err)
	}
	if first != 1 {
		t.Fatalf("第一次扫描置离线 %d 台, 期望 1", first)
	}

	// 重复扫描不再产生变化
	second, err := s.Heartbeat.Sweep()
	if err != nil {
		t.Fatalf("第二次扫描失败: %v", err)
	}
	if second != 0 {
		t.Fatalf("第二次扫描置离线 %d 台, 期望 0", second)
	}
}

func TestSweepNeverTouchesWaitingDevices(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, _ := mustRegisterDevice(t, s, project.ID, 1)

	// 从未上报过心跳的设备保持 waiting，不会被扫描置为 offline
	if _, err := s.Heartbeat.Sweep(); err != nil {
		t.Fatalf("离线扫描失败: %v", err)
	}

	current, err := s.Device.GetDeviceByID(device.ID)
	if err != nil {
		t.Fatalf("查询设备失败: %v", err)
	}
	if current.Status != models.DeviceStatusWaiting {
		t.Fatalf("waiting设备被扫描修改为 %q", current.Status)
	}
}

func TestDeviceStatusRoundTrip(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, secret := mustRegisterDevice(t, s, project.ID, 5)
	ident := models.DeviceIdentifier{UUID: device.UUID}

	// waiting -> online
	if _, err := s.Heartbeat.ProcessHeartbeat(ident, secret, HeartbeatInput{}); err != nil {
		t.Fatalf("第一次心跳失败: %v", err)
	}

	// online -> offline
	setLastSeen(t, s, device.ID, time.Now().Add(-s.Config.OfflineThreshold-time.Minute))
	if _, err := s.Heartbeat.Sweep(); err != nil {
		t.Fatalf("离线扫描失败: %v", err)
	}
	offline, _ := s.Device.GetDeviceByID(device.ID)
	if offline.Status != models.DeviceStatusOffline {
		t.Fatalf("扫描后状态为 %q, 期望 offline", offline.Status)
	}

	// offline -> online：设备恢复上报后立即回到在线
	recovered, err := s.Heartbeat.ProcessHeartbeat(ident, secret, HeartbeatInput{})
	if err != nil {
		t.Fatalf("恢复心跳失败: %v", err)
	}
	if recovered.Status != models.DeviceStatusOnline {
		t.Fatalf("恢复后状态为 %q, 期望 online", recovered.Status)
	}
}

func TestRotateSecretInvalidatesOldSecret(t *testing.T) {
	s := newTestServices(t)

	project := mustCreateProject(t, s, "东区大棚")
	device, oldSecret := mustRegisterDevice(t, s, project.ID, 5)
	ident := models.DeviceIdentifier{UUID: device.UUID}

	newSecret, err := s.Credential.RotateSecret(device.ID)
	if err != nil {
		t.Fatalf("轮换密钥失败: %v", err)
	}
	if newSecret == oldSecret {
		t.Fatal("轮换后密钥未变化")
	}

	if _, err := s.Heartbeat.ProcessHeartbeat(ident, oldSecret, HeartbeatInput{}); !errors.Is(err, ErrCredentialMismatch) {
		t.Fatalf("旧密钥期望 ErrCredentialMismatch, 得到: %v", err)
	}
	if _, err := s.Heartbeat.ProcessHeartbeat(ident, newSecret, HeartbeatInput{}); err != nil {
		t.Fatalf("新密钥心跳失败: %v", err)
	}
}

// recordingMQTT 记录发布内容，用于断言状态变更通知
type recordingMQTT struct {
	mu             sync.Mutex
	statusMessages []statusMessage
	systemMessages []string
}

type statusMessage struct {
	compositeID string
	status      string
}

func (m *recordingMQTT) Connect() error { return nil }

func (m *recordingMQTT) Disconnect() {}

func (m *recordingMQTT) PublishDeviceStatus(compositeID string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, _ := payload["status"].(string)
	m.statusMessages = append(m.statusMessages, statusMessage{compositeID: compositeID, status: status})
	return nil
}

func (m *recordingMQTT) PublishSystemMessage(messageType string, message map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.systemMessages = append(m.systemMessages, messageType)
	return nil
}

func TestSweepNotifiesOnlyFlippedDevices(t *testing.T) {
	s := newTestServices(t)

	recorder := &recordingMQTT{}
	sweeper := NewHeartbeatService(s.DB, s.Config, s.Device, s.Credential, recorder, NewRedisService(s.Config))

	project := mustCreateProject(t, s, "南区大棚")
	staleDevice, staleSecret := mustRegisterDevice(t, s, project.ID, 1)
	freshDevice, freshSecret := mustRegisterDevice(t, s, project.ID, 2)
	sweptDevice, sweptSecret := mustRegisterDevice(t, s, project.ID, 3)

	for _, c := range []struct {
		uuid   string
		secret string
	}{
		{staleDevice.UUID, staleSecret},
		{freshDevice.UUID, freshSecret},
		{sweptDevice.UUID, sweptSecret},
	} {
		if _, err := s.Heartbeat.ProcessHeartbeat(
			models.DeviceIdentifier{UUID: c.uuid}, c.secret, HeartbeatInput{},
		); err != nil {
			t.Fatalf("心跳处理失败: %v", err)
		}
	}

	stale := time.Now().Add(-10 * time.Minute)
	setLastSeen(t, s, staleDevice.ID, stale)
	setLastSeen(t, s, sweptDevice.ID, stale)
	// 上一轮已置离线的设备不应再次收到通知
	if err := s.DB.Model(&models.Device{}).
		Where("id = ?", sweptDevice.ID).
		Update("status", models.DeviceStatusOffline).Error; err != nil {
		t.Fatalf("预置离线状态失败: %v", err)
	}

	count, err := sweeper.Sweep()
	if err != nil {
		t.Fatalf("离线扫描失败: %v", err)
	}
	if count != 1 {
		t.Fatalf("置离线数量 %d, 期望 1", count)
	}

	if len(recorder.statusMessages) != 1 {
		t.Fatalf("离线通知数量 %d, 期望 1: %+v", len(recorder.statusMessages), recorder.statusMessages)
	}
	if got := recorder.statusMessages[0]; got.compositeID != staleDevice.CompositeID || got.status != string(models.DeviceStatusOffline) {
		t.Fatalf("离线通知内容错误: %+v", got)
	}
	if len(recorder.systemMessages) != 1 || recorder.systemMessages[0] != "liveness_sweep" {
		t.Fatalf("系统消息错误: %v", recorder.systemMessages)
	}

	// 再次扫描没有新增离线设备，不应发布任何消息
	count, err = sweeper.Sweep()
	if err != nil {
		t.Fatalf("重复扫描失败: %v", err)
	}
	if count != 0 {
		t.Fatalf("重复扫描置离线数量 %d, 期望 0", count)
	}
	if len(recorder.statusMessages) != 1 || len(recorder.systemMessages) != 1 {
		t.Fatalf("重复扫描产生了额外消息: %+v %v", recorder.statusMessages, recorder.systemMessages)
	}
}
