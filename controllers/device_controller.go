package controllers

import (
	"errors"
	"strconv"

	"serra-http-service/internal/error/code"
	"serra-http-service/internal/error/response"
	"serra-http-service/services"
	"serra-http-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceDeviceController 定义设备控制器接口
type InterfaceDeviceController interface {
	GetDevices()
	GetDevice()
	RegisterDevice()
	UpdateDevice()
	DeleteDevice()
	GetDeviceStatus()
	GetDeviceHeartbeats()
	RotateCredential()
}

// DeviceController 处理看板侧设备管理请求
type DeviceController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewDeviceController 创建一个新的设备控制器
func NewDeviceController(ctx *gin.Context, container *container.ServiceContainer) *DeviceController {
	return &DeviceController{
		Ctx:       ctx,
		Container: container,
	}
}

// RegisterDeviceRequest 设备注册请求
type RegisterDeviceRequest struct {
	Slot int    `json:"slot" binding:"required" example:"5"` // 操作员选定的槽位，1..20
	Name string `json:"name" binding:"required" example:"西侧大棚控制器"`
}

// DeviceUpdateRequest 设备更新请求（只允许改显示名称）
type DeviceUpdateRequest struct {
	Name string `json:"name" binding:"required" example:"西侧大棚控制器"`
}

// HandleDeviceFunc 返回一个处理设备请求的Gin处理函数
func HandleDeviceFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewDeviceController(ctx, container)

		switch method {
		case "getDevices":
			controller.GetDevices()
		case "getDevice":
			controller.GetDevice()
		case "registerDevice":
			controller.RegisterDevice()
		case "updateDevice":
			controller.UpdateDevice()
		case "deleteDevice":
			controller.DeleteDevice()
		case "getDeviceStatus":
			controller.GetDeviceStatus()
		case "getDeviceHeartbeats":
			controller.GetDeviceHeartbeats()
		case "rotateCredential":
			controller.RotateCredential()
		default:
			response.ParamError(ctx, "无效的方法")
		}
	}
}

// deviceIDParam 解析URL中的设备ID
func (c *DeviceController) deviceIDParam() (uint, bool) {
	id, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil || id <= 0 {
		response.ParamError(c.Ctx, "无效的设备ID")
		return 0, false
	}
	return uint(id), true
}

// failDevice 将设备服务错误映射为统一响应
func (c *DeviceController) failDevice(err error) {
	switch {
	case errors.Is(err, services.ErrDeviceNotFound):
		response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
	case errors.Is(err, services.ErrProjectNotFound):
		response.Fail(c.Ctx, code.ErrProjectNotFound, nil)
	case errors.Is(err, services.ErrSlotTaken):
		response.Fail(c.Ctx, code.ErrSlotTaken, nil)
	case errors.Is(err, services.ErrSlotOutOfRange):
		response.Fail(c.Ctx, code.ErrSlotOutOfRange, nil)
	case errors.Is(err, services.ErrProjectArchived):
		response.Fail(c.Ctx, code.ErrProjectArchived, nil)
	default:
		response.Fail(c.Ctx, code.ErrDatabase, nil)
	}
}

// 1. GetDevices 获取设备列表
// @Summary 获取所有设备
// @Description 获取所有设备，或用project_id过滤单个项目的设备
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param project_id query int false "项目ID"
// @Success 200 {array} models.Device
// @Failure 500 {object} response.Response
// @Router /devices [get]
func (c *DeviceController) GetDevices() {
	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	if projectIDStr := c.Ctx.Query("project_id"); projectIDStr != "" {
		projectID, err := strconv.Atoi(projectIDStr)
		if err != nil || projectID <= 0 {
			response.ParamError(c.Ctx, "无效的项目ID")
			return
		}

		devices, err := deviceService.GetDevicesByProject(uint(projectID))
		if err != nil {
			c.failDevice(err)
			return
		}
		response.Success(c.Ctx, devices)
		return
	}

	devices, err := deviceService.GetAllDevices()
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Success(c.Ctx, devices)
}

// 2. GetDevice 获取单个设备详情
// @Summary 获取单个设备
// @Description 根据ID获取设备信息
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} models.Device
// @Failure 404 {object} response.Response
// @Router /devices/{id} [get]
func (c *DeviceController) GetDevice() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.GetDeviceByID(id)
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Success(c.Ctx, device)
}

// 3. RegisterDevice 在项目槽位注册新设备
// @Summary 注册设备
// @Description 在项目的指定槽位注册设备。返回的明文密钥只出现这一次，
// 请立刻写入固件配置；之后只能通过轮换接口获取新密钥
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "项目ID"
// @Param device body RegisterDeviceRequest true "槽位和名称"
// @Success 201 {object} map[string]interface{} "composite_id、secret和设备信息"
// @Failure 400 {object} response.Response "槽位超出范围"
// @Failure 409 {object} response.Response "槽位已被占用"
// @Router /projects/{id}/devices [post]
func (c *DeviceController) RegisterDevice() {
	projectID, ok := c.deviceIDParam()
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "无效的请求参数: "+err.Error())
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, secret, err := deviceService.RegisterDevice(projectID, req.Slot, req.Name)
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Created(c.Ctx, gin.H{
		"composite_id": device.CompositeID,
		"uuid":         device.UUID,
		"secret":       secret, // 明文密钥只在这里返回一次
		"device":       device,
	})
}

// 4. UpdateDevice 更新设备显示名称
// @Summary 更新设备
// @Description 更新设备显示名称；槽位和组合ID分配后不可变
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Param device body DeviceUpdateRequest true "新名称"
// @Success 200 {object} models.Device
// @Failure 404 {object} response.Response
// @Router /devices/{id} [put]
func (c *DeviceController) UpdateDevice() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	var req DeviceUpdateRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "无效的请求参数: "+err.Error())
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	device, err := deviceService.UpdateDevice(id, map[string]interface{}{"name": req.Name})
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Success(c.Ctx, device)
}

// 5. DeleteDevice 删除设备
// @Summary 删除设备
// @Description 删除设备及其心跳记录和待执行指令，槽位随之释放
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /devices/{id} [delete]
func (c *DeviceController) DeleteDevice() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	redisService := c.Container.GetService("redis").(services.InterfaceRedisService)

	device, err := deviceService.GetDeviceByID(id)
	if err != nil {
		c.failDevice(err)
		return
	}

	if err := deviceService.DeleteDevice(id); err != nil {
		c.failDevice(err)
		return
	}

	// 清理遥测缓存，失败不影响删除结果
	_ = redisService.DeleteDeviceTelemetry(device.UUID)

	response.Success(c.Ctx, nil)
}

// 6. GetDeviceStatus 获取设备状态
// @Summary 获取设备状态
// @Description 获取设备在线状态、最后心跳时间和最新遥测快照。
// 状态字段由心跳和离线扫描维护，读取时无需计算
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.Response
// @Router /devices/{id}/status [get]
func (c *DeviceController) GetDeviceStatus() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)
	redisService := c.Container.GetService("redis").(services.InterfaceRedisService)

	device, err := deviceService.GetDeviceByID(id)
	if err != nil {
		c.failDevice(err)
		return
	}

	// 遥测缓存未命中不是错误，看板只是少一块数据
	var telemetry services.HeartbeatInput
	hasTelemetry := redisService.GetDeviceTelemetry(device.UUID, &telemetry) == nil

	data := gin.H{
		"id":           device.ID,
		"composite_id": device.CompositeID,
		"name":         device.Name,
		"status":       device.Status,
		"last_seen_at": device.LastSeenAt,
	}
	if hasTelemetry {
		data["telemetry"] = telemetry
	}

	response.Success(c.Ctx, data)
}

// 7. GetDeviceHeartbeats 获取设备心跳历史
// @Summary 获取心跳历史
// @Description 按接收时间倒序返回设备最近的心跳记录
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Param limit query int false "返回条数，默认100"
// @Success 200 {array} models.HeartbeatEvent
// @Failure 404 {object} response.Response
// @Router /devices/{id}/heartbeats [get]
func (c *DeviceController) GetDeviceHeartbeats() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Ctx.DefaultQuery("limit", "100"))

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	events, err := deviceService.GetRecentHeartbeats(id, limit)
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Success(c.Ctx, events)
}

// 8. RotateCredential 轮换设备密钥
// @Summary 轮换设备密钥
// @Description 为设备签发新密钥并立即作废旧密钥。
// 新明文密钥只在本次响应中返回一次
// @Tags device
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} response.Response
// @Router /devices/{id}/credential [post]
func (c *DeviceController) RotateCredential() {
	id, ok := c.deviceIDParam()
	if !ok {
		return
	}

	credentialService := c.Container.GetService("credential").(services.InterfaceCredentialService)

	secret, err := credentialService.RotateSecret(id)
	if err != nil {
		c.failDevice(err)
		return
	}

	response.Success(c.Ctx, gin.H{
		"secret": secret, // 明文密钥只在这里返回一次
	})
}
