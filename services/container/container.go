package container

import (
	"context"
	"log"
	"sync"
	"time"

	"serra-http-service/config"
	"serra-http-service/services"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// ServiceContainer 管理所有服务的依赖注入
type ServiceContainer struct {
	db     *gorm.DB
	config *config.Config
	redis  *redis.Client

	// 基础服务
	jwtService   services.InterfaceJWTService
	redisService services.InterfaceRedisService
	mqttService  services.InterfaceMQTTService

	// 标识分配与凭证服务
	sequenceService   services.InterfaceSequenceService
	credentialService services.InterfaceCredentialService

	// 业务服务
	projectService   services.InterfaceProjectService
	deviceService    services.InterfaceDeviceService
	heartbeatService services.InterfaceHeartbeatService
	commandService   services.InterfaceCommandService
	adminService     services.InterfaceAdminService

	mu sync.RWMutex
}

// NewServiceContainer 创建新的服务容器
func NewServiceContainer(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *ServiceContainer {
	if db == nil {
		panic("数据库连接为空")
	}

	if cfg == nil {
		panic("配置为空")
	}

	// 测试Redis连接
	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Redis连接测试失败: %v，将不使用Redis缓存", err)
		}
	}

	container := &ServiceContainer{
		db:     db,
		config: cfg,
		redis:  redisClient,
	}
	container.initializeServices()
	return container
}

// initializeServices 初始化所有服务
func (c *ServiceContainer) initializeServices() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// 初始化基础服务
	c.jwtService = services.NewJWTService(c.config)
	c.redisService = services.NewRedisService(c.config)
	c.mqttService = services.NewMQTTService(c.config)

	// 连接MQTT broker
	if err := c.mqttService.Connect(); err != nil {
		log.Printf("MQTT服务连接失败: %v", err)
	}

	// 初始化标识分配与凭证服务
	c.sequenceService = services.NewSequenceService(c.db)
	c.credentialService = services.NewCredentialService(c.db, c.config)

	// 初始化业务服务
	c.projectService = services.NewProjectService(c.db, c.config, c.sequenceService)
	c.deviceService = services.NewDeviceService(c.db, c.config, c.credentialService)
	c.heartbeatService = services.NewHeartbeatService(
		c.db, c.config, c.deviceService, c.credentialService, c.mqttService, c.redisService)
	c.commandService = services.NewCommandService(c.db, c.config)
	c.adminService = services.NewAdminService(c.db, c.config)
}

// GetService 获取指定名称的服务
func (c *ServiceContainer) GetService(name string) interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch name {
	case "config":
		return c.config
	case "db":
		return c.db
	case "jwt":
		return c.jwtService
	case "redis":
		return c.redisService
	case "mqtt":
		return c.mqttService
	case "sequence":
		return c.sequenceService
	case "credential":
		return c.credentialService
	case "project":
		return c.projectService
	case "device":
		return c.deviceService
	case "heartbeat":
		return c.heartbeatService
	case "command":
		return c.commandService
	case "admin":
		return c.adminService
	default:
		return nil
	}
}

// GetDB 获取数据库连接
func (c *ServiceContainer) GetDB() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
