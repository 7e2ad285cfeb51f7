package routes

import (
	"serra-http-service/config"
	"serra-http-service/controllers"
	_ "serra-http-service/docs"
	"serra-http-service/middleware"
	"serra-http-service/services/container"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// SetupRouter 初始化并返回配置好的路由和服务容器。
// 容器一并返回，调用方用它启动离线扫描等后台任务
func SetupRouter(db *gorm.DB, cfg *config.Config) (*gin.Engine, *container.ServiceContainer) {
	// 初始化 Gin
	r := gin.Default()

	// 添加 CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, Accept, Origin, Cache-Control, X-Requested-With, x-device-uuid, x-composite-device-id, x-api-key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})
	// 设置正确的Content-Type，确保UTF-8编码
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.Next()
	})
	// 创建服务容器
	serviceContainer := container.NewServiceContainer(db, cfg, nil)
	// 初始化中间件
	middleware.InitAuthMiddleware(cfg)
	// 添加 Swagger 文档路由
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 注册路由
	registerRoutes(r, serviceContainer)
	return r, serviceContainer
}

// registerRoutes 配置所有API路由
func registerRoutes(
	r *gin.Engine,
	container *container.ServiceContainer,
) {
	// API 路由根路径
	api := r.Group("/api")
	// 注册公共路由
	registerPublicRoutes(api, container)
	// 注册设备侧轮询路由
	registerDeviceAgentRoutes(api, container)
	// 注册需要认证的路由
	registerAuthenticatedRoutes(api, container)
}

// registerPublicRoutes 注册公共路由
func registerPublicRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 健康检查
	healthController := controllers.NewHealthCheckController()
	api.GET("/ping", healthController.Ping)

	// 认证路由，登录接口做IP限流
	api.POST("/auth/login",
		middleware.IPRateLimiter(5, 10),
		controllers.HandleJWTFunc(container, "login"))
}

// registerDeviceAgentRoutes 注册设备侧轮询路由。
// 设备不走JWT，身份和密钥在请求头里，由心跳服务校验
func registerDeviceAgentRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	device := api.Group("/device")
	// 心跳接口做IP限流，正常设备约30秒一次心跳
	device.POST("/heartbeat",
		middleware.IPRateLimiter(2, 30),
		controllers.HandleDeviceAgentFunc(container, "heartbeat"))
	device.POST("/commands/pending", controllers.HandleDeviceAgentFunc(container, "pendingCommands"))
	device.POST("/commands/confirm", controllers.HandleDeviceAgentFunc(container, "confirmCommand"))
}

// registerAuthenticatedRoutes 注册需要认证的路由
func registerAuthenticatedRoutes(
	api *gin.RouterGroup,
	container *container.ServiceContainer,
) {
	// 添加认证中间件
	auth := api.Group("/")
	auth.Use(middleware.AuthenticateAdmin())

	// 管理员路由
	auth.Group("/admin").GET("", controllers.HandleAdminFunc(container, "getAdmins"))
	auth.Group("/admin").GET("/:id", controllers.HandleAdminFunc(container, "getAdmin"))
	auth.Group("/admin").POST("", controllers.HandleAdminFunc(container, "createAdmin"))
	auth.Group("/admin").PUT("/:id", controllers.HandleAdminFunc(container, "updateAdmin"))
	auth.Group("/admin").DELETE("/:id", controllers.HandleAdminFunc(container, "deleteAdmin"))

	// 项目路由
	auth.Group("/projects").GET("", controllers.HandleProjectFunc(container, "getProjects"))
	auth.Group("/projects").GET("/:id", controllers.HandleProjectFunc(container, "getProject"))
	auth.Group("/projects").POST("", controllers.HandleProjectFunc(container, "createProject"))
	auth.Group("/projects").PUT("/:id", controllers.HandleProjectFunc(container, "updateProject"))
	auth.Group("/projects").DELETE("/:id", controllers.HandleProjectFunc(container, "deleteProject"))
	auth.Group("/projects").GET("/:id/slots", controllers.HandleProjectFunc(container, "getProjectSlots"))
	auth.Group("/projects").POST("/:id/devices", controllers.HandleDeviceFunc(container, "registerDevice"))

	// 设备路由
	auth.Group("/devices").GET("", controllers.HandleDeviceFunc(container, "getDevices"))
	auth.Group("/devices").GET("/:id", controllers.HandleDeviceFunc(container, "getDevice"))
	auth.Group("/devices").PUT("/:id", controllers.HandleDeviceFunc(container, "updateDevice"))
	auth.Group("/devices").DELETE("/:id", controllers.HandleDeviceFunc(container, "deleteDevice"))
	auth.Group("/devices").GET("/:id/status", controllers.HandleDeviceFunc(container, "getDeviceStatus"))
	auth.Group("/devices").GET("/:id/heartbeats", controllers.HandleDeviceFunc(container, "getDeviceHeartbeats"))
	auth.Group("/devices").POST("/:id/credential", controllers.HandleDeviceFunc(container, "rotateCredential"))

	// 指令路由
	auth.Group("/devices").POST("/:id/commands", controllers.HandleCommandFunc(container, "enqueueCommand"))
	auth.Group("/devices").GET("/:id/commands", controllers.HandleCommandFunc(container, "getDeviceCommands"))
	auth.Group("/commands").DELETE("/:id", controllers.HandleCommandFunc(container, "cancelCommand"))
}
