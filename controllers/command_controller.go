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

// InterfaceCommandController 定义指令控制器接口
type InterfaceCommandController interface {
	EnqueueCommand()
	GetDeviceCommands()
	CancelCommand()
}

// CommandController 处理看板侧指令下发和管理请求
type CommandController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewCommandController 创建一个新的指令控制器
func NewCommandController(ctx *gin.Context, container *container.ServiceContainer) *CommandController {
	return &CommandController{
		Ctx:       ctx,
		Container: container,
	}
}

// EnqueueCommandRequest 指令下发请求
type EnqueueCommandRequest struct {
	ActuatorID  string  `json:"actuator_id" binding:"required" example:"pump_1"`
	CommandType string  `json:"command_type" binding:"required" example:"turn_on"`
	Value       float64 `json:"value" example:"0"`
}

// HandleCommandFunc 返回一个处理指令请求的Gin处理函数
func HandleCommandFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewCommandController(ctx, container)

		switch method {
		case "enqueueCommand":
			controller.EnqueueCommand()
		case "getDeviceCommands":
			controller.GetDeviceCommands()
		case "cancelCommand":
			controller.CancelCommand()
		default:
			response.ParamError(ctx, "无效的方法")
		}
	}
}

// idParam 解析URL中的数字ID
func (c *CommandController) idParam() (uint, bool) {
	id, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil || id <= 0 {
		response.ParamError(c.Ctx, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// failCommand 将指令服务错误映射为统一响应
func (c *CommandController) failCommand(err error) {
	switch {
	case errors.Is(err, services.ErrCommandNotFound):
		response.Fail(c.Ctx, code.ErrCommandNotFound, nil)
	case errors.Is(err, services.ErrCommandInvalid):
		response.Fail(c.Ctx, code.ErrCommandInvalid, nil)
	case errors.Is(err, services.ErrDeviceNotFound):
		response.Fail(c.Ctx, code.ErrDeviceNotFound, nil)
	default:
		response.Fail(c.Ctx, code.ErrDatabase, nil)
	}
}

// 1. EnqueueCommand 向设备队列追加指令
// @Summary 下发指令
// @Description 向设备的待执行队列追加一条指令。
// 指令按入队顺序投递，设备确认执行前会一直保留在队列中
// @Tags command
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Param command body EnqueueCommandRequest true "指令内容"
// @Success 201 {object} models.Command
// @Failure 404 {object} response.Response "设备不存在"
// @Router /devices/{id}/commands [post]
func (c *CommandController) EnqueueCommand() {
	deviceID, ok := c.idParam()
	if !ok {
		return
	}

	var req EnqueueCommandRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "无效的请求参数: "+err.Error())
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	command, err := commandService.Enqueue(deviceID, req.ActuatorID, req.CommandType, req.Value)
	if err != nil {
		c.failCommand(err)
		return
	}

	response.Created(c.Ctx, command)
}

// 2. GetDeviceCommands 获取设备指令列表
// @Summary 获取设备指令
// @Description 获取设备的指令列表，可用status过滤pending或confirmed
// @Tags command
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "设备ID"
// @Param status query string false "状态过滤 pending/confirmed"
// @Success 200 {array} models.Command
// @Failure 404 {object} response.Response
// @Router /devices/{id}/commands [get]
func (c *CommandController) GetDeviceCommands() {
	deviceID, ok := c.idParam()
	if !ok {
		return
	}

	status := c.Ctx.Query("status")

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	commands, err := commandService.ListForDevice(deviceID, status)
	if err != nil {
		c.failCommand(err)
		return
	}

	response.Success(c.Ctx, commands)
}

// 3. CancelCommand 撤销待执行指令
// @Summary 撤销指令
// @Description 撤销一条尚未执行的指令。指令已被设备确认时撤销不生效，
// 也不报错，以设备侧的实际执行结果为准
// @Tags command
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "指令ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response "指令不存在"
// @Router /commands/{id} [delete]
func (c *CommandController) CancelCommand() {
	id, ok := c.idParam()
	if !ok {
		return
	}

	commandService := c.Container.GetService("command").(services.InterfaceCommandService)

	if err := commandService.Cancel(id); err != nil {
		c.failCommand(err)
		return
	}

	response.Success(c.Ctx, nil)
}
