package controllers

import (
	"errors"
	"net/http"

	"serra-http-service/models"
	"serra-http-service/services"
	"serra-http-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceDeviceAgentController 定义设备侧轮询协议控制器接口
type InterfaceDeviceAgentController interface {
	Heartbeat()
	PendingCommands()
	ConfirmCommand()
}

// DeviceAgentController 处理固件侧的心跳与指令轮询请求。
// 设备身份通过请求头出示：x-device-uuid（内部UUID）或
// x-composite-device-id（组合ID，迁移期两种写法并存），
// 外加 x-device-key（注册时下发的明文密钥）。
type DeviceAgentController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceAgentController 创建一个新的设备协议控制器
func NewDeviceAgentController(ctx *gin.Context, container *container.ServiceContainer) *DeviceAgentController {
	return &DeviceAgentController{
		Ctx:       ctx,
		Container: container,
	}
}

// HeartbeatRequest 心跳请求体（遥测快照）
type HeartbeatRequest struct {
	RSSI            int    `json:"rssi" example:"-67"`
	FirmwareVersion string `json:"firmware_version" example:"v3.2.0"`
	IPAddress       string `json:"ip_address" example:"192.168.1.42"`
}

// ConfirmCommandRequest 指令确认请求体
type ConfirmCommandRequest struct {
	CommandID uint `json:"command_id" binding:"required" example:"1"`
}

// HandleDeviceAgentFunc 返回一个处理设备协议请求的Gin处理函数
func HandleDeviceAgentFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceAgentController(ctx, container)

		switch method {
		case "heartbeat":
			controller.Heartbeat()
		case "pendingCommands":
			controller.PendingCommands()
		case "confirmCommand":
			controller.ConfirmCommand()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "无效的方法",
			})
		}
	}
}

// identifierFromHeaders 从请求头读取设备标识
func (c *DeviceAgentController) identifierFromHeaders() models.DeviceIdentifier {
	return models.DeviceIdentifier{
		UUID:        c.Ctx.GetHeader("x-device-uuid"),
		CompositeID: c.Ctx.GetHeader("x-composite-device-id"),
	}
}

// failDeviceAuth 将协议错误映射到HTTP状态码：
// 400 标识格式无效，401 密钥校验失败，404 设备不存在
func (c *DeviceAgentController) failDeviceAuth(err error) {
	switch {
	case errors.Is(err, models.ErrMalformedCompositeID):
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "设备标识格式无效",
		})
	case errors.Is(err, services.ErrCredentialMismatch):
		c.Ctx.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "设备密钥校验失败",
		})
	case errors.Is(err, services.ErrDeviceNotFound):
		c.Ctx.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "设备不存在",
		})
	default:
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "服务器内部错误",
		})
	}
}

// 1. Heartbeat 设备心跳上报
// @Summary 设备心跳
// @Description 固件周期性上报心跳和遥测，服务端据此维持在线状态
// @Tags device-agent
// @Accept json
// @Produce json
// @Param x-device-uuid header string false "设备内部UUID"
// @Param x-composite-device-id header string false "组合设备ID，如 PROJ1-ESP5"
// @Param x-device-key header string true "设备密钥"
// @Param request body HeartbeatRequest false "遥测快照"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /device/heartbeat [post]
func (c *DeviceAgentController) Heartbeat() {
	var req HeartbeatRequest
	// 遥测字段全部可选，空请求体也是合法心跳
	_ = c.Ctx.ShouldBindJSON(&req)

	heartbeatService := c.Container.GetService("heartbeat").(services.InterfaceHeartbeatService)

	device, err := heartbeatService.ProcessHeartbeat(
		c.identifierFromHeaders(),
		c.Ctx.GetHeader("x-device-key"),
		services.HeartbeatInput{
			RSSI:            req.RSSI,
			FirmwareVersion: req.FirmwareVersion,
			IPAddress:       req.IPAddress,
		},
	)
	if err != nil {
		c.failDeviceAuth(err)
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"device_id": device.CompositeID,
		"status":    device.Status,
		"timestamp": models.CurrentTime().Unix(),
	})
}

// 2. PendingCommands 拉取待执行指令
// @Summary 拉取待执行指令
// @Description 返回该设备全部待执行指令；确认前重复轮询会返回同一批（至少一次投递）
// @Tags device-agent
// @Accept json
// @Produce json
// @Param x-device-uuid header string false "设备内部UUID"
// @Param x-composite-device-id header string false "组合设备ID"
// @Param x-device-key header string true "设备密钥"
// @Success 200 {array} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /device/commands/pending [post]
func (c *DeviceAgentController) PendingCommands() {
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	credentialService := c.Container.GetService("credential").(services.InterfaceCredentialService)
	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	device, err := deviceService.ResolveDevice(c.identifierFromHeaders())
	if err != nil {
		credentialService.VerifySecret(nil, c.Ctx.GetHeader("x-device-key"))
		c.failDeviceAuth(err)
		return
	}

	if !credentialService.VerifySecret(device, c.Ctx.GetHeader("x-device-key")) {
		c.failDeviceAuth(services.ErrCredentialMismatch)
		return
	}

	commands, err := commandService.PendingForDevice(device.ID)
	if err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "获取指令失败",
		})
		return
	}

	result := make([]gin.H, 0, len(commands))
	for _, command := range commands {
		result = append(result, gin.H{
			"id":           command.ID,
			"actuator_id":  command.ActuatorID,
			"command_type": command.CommandType,
			"value":        command.Value,
		})
	}

	c.Ctx.JSON(http.StatusOK, result)
}

// 3. ConfirmCommand 确认指令已执行
// @Summary 确认指令
// @Description 设备回报指令执行完成。设备无法得知上次确认是否送达，
// 所以未知ID或已确认的指令也返回成功
// @Tags device-agent
// @Accept json
// @Produce json
// @Param request body ConfirmCommandRequest true "指令ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /device/commands/confirm [post]
func (c *DeviceAgentController) ConfirmCommand() {
	var req ConfirmCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		c.Ctx.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "无效的请求参数: " + err.Error(),
		})
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	if err := commandService.Confirm(req.CommandID); err != nil {
		c.Ctx.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "确认指令失败",
		})
		return
	}

	c.Ctx.JSON(http.StatusOK, gin.H{
		"success":   true,
		"timestamp": models.CurrentTime().Unix(),
	})
}
