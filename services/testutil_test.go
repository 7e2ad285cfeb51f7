package services

import (
	"path/filepath"
	"testing"
	"time"

	"serra-http-service/config"
	"serra-http-service/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB 创建一个独立的sqlite测试库并完成迁移。
// busy_timeout 让并发用例在写锁竞争时等待而不是直接报错。
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "serra_test.sqlite") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	err = db.AutoMigrate(
		&models.Admin{},
		&models.Project{},
		&models.Device{},
		&models.HeartbeatEvent{},
		&models.Command{},
		&models.Sequence{},
	)
	if err != nil {
		t.Fatalf("迁移测试数据库失败: %v", err)
	}

	if err := NewSequenceService(db).EnsureSequence(models.SequenceProjectPublicID); err != nil {
		t.Fatalf("初始化项目编号序列失败: %v", err)
	}

	return db
}

// testConfig 构造测试配置，MQTT和Redis留空表示禁用外部连接
func testConfig() *config.Config {
	return &config.Config{
		JWTSecretKey:     "test-secret-key",
		OfflineThreshold: 120 * time.Second,
		SweepInterval:    60 * time.Second,
	}
}

// newTestServices 组装一套指向同一测试库的服务
type testServices struct {
	DB         *gorm.DB
	Config     *config.Config
	Sequence   InterfaceSequenceService
	Credential InterfaceCredentialService
	Project    InterfaceProjectService
	Device     InterfaceDeviceService
	Heartbeat  InterfaceHeartbeatService
	Command    InterfaceCommandService
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	db := setupTestDB(t)
	cfg := testConfig()

	sequenceService := NewSequenceService(db)
	credentialService := NewCredentialService(db, cfg)
	deviceService := NewDeviceService(db, cfg, credentialService)
	mqttService := NewMQTTService(cfg)
	redisService := NewRedisService(cfg)

	return &testServices{
		DB:         db,
		Config:     cfg,
		Sequence:   sequenceService,
		Credential: credentialService,
		Project:    NewProjectService(db, cfg, sequenceService),
		Device:     deviceService,
		Heartbeat:  NewHeartbeatService(db, cfg, deviceService, credentialService, mqttService, redisService),
		Command:    NewCommandService(db, cfg),
	}
}

// mustCreateProject 建项目的快捷方式
func mustCreateProject(t *testing.T, s *testServices, name string) *models.Project {
	t.Helper()
	project, err := s.Project.CreateProject(name, "测试负责人")
	if err != nil {
		t.Fatalf("创建项目 %q 失败: %v", name, err)
	}
	return project
}

// mustRegisterDevice 注册设备的快捷方式，返回设备和明文密钥
func mustRegisterDevice(t *testing.T, s *testServices, projectID uint, slot int) (*models.Device, string) {
	t.Helper()
	device, secret, err := s.Device.RegisterDevice(projectID, slot, "测试设备")
	if err != nil {
		t.Fatalf("注册设备(项目%d 槽位%d)失败: %v", projectID, slot, err)
	}
	return device, secret
}
