package controllers

import (
	"errors"
	"strconv"

	"serra-http-service/internal/error/code"
	"serra-http-service/internal/error/response"
	"serra-http-service/models"
	"serra-http-service/services"
	"serra-http-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceProjectController 定义项目控制器接口
type InterfaceProjectController interface {
	GetProjects()
	GetProject()
	CreateProject()
	UpdateProject()
	DeleteProject()
	GetProjectSlots()
}

// ProjectController 处理项目相关的请求
type ProjectController struct {
	Ctx       *gin.Context
	Container *container.ServiceContainer
}

// NewProjectController 创建一个新的项目控制器
func NewProjectController(ctx *gin.Context, container *container.ServiceContainer) *ProjectController {
	return &ProjectController{
		Ctx:       ctx,
		Container: container,
	}
}

// ProjectRequest 项目创建/更新请求
type ProjectRequest struct {
	Name  string `json:"name" binding:"required" example:"阳台大棚"`
	Owner string `json:"owner" example:"operator1"`
}

// ProjectUpdateRequest 项目更新请求
type ProjectUpdateRequest struct {
	Name   string `json:"name" example:"阳台大棚"`
	Owner  string `json:"owner" example:"operator1"`
	Status string `json:"status" example:"archived"` // active, archived
}

// HandleProjectFunc 返回一个处理项目请求的Gin处理函数
func HandleProjectFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		controller := NewProjectController(ctx, container)

		switch method {
		case "getProjects":
			controller.GetProjects()
		case "getProject":
			controller.GetProject()
		case "createProject":
			controller.CreateProject()
		case "updateProject":
			controller.UpdateProject()
		case "deleteProject":
			controller.DeleteProject()
		case "getProjectSlots":
			controller.GetProjectSlots()
		default:
			response.ParamError(ctx, "无效的方法")
		}
	}
}

// projectIDParam 解析URL中的项目ID
func (c *ProjectController) projectIDParam() (uint, bool) {
	id, err := strconv.Atoi(c.Ctx.Param("id"))
	if err != nil || id <= 0 {
		response.ParamError(c.Ctx, "无效的项目ID")
		return 0, false
	}
	return uint(id), true
}

// 1. GetProjects 获取项目列表
// @Summary 获取项目列表
// @Description 分页获取所有项目
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param pageNum query int false "页码"
// @Param pageSize query int false "每页数量"
// @Success 200 {array} models.Project
// @Failure 500 {object} response.Response
// @Router /projects [get]
func (c *ProjectController) GetProjects() {
	var query models.PaginationQuery
	if err := c.Ctx.ShouldBindQuery(&query); err != nil {
		response.ParamError(c.Ctx, "无效的分页参数")
		return
	}
	if query.PageNum <= 0 {
		query.PageNum = 1
	}
	if query.PageSize <= 0 || query.PageSize > 100 {
		query.PageSize = 20
	}

	projectService := c.Container.GetService("project").(services.InterfaceProjectService)

	projects, total, err := projectService.GetAllProjects(query.PageNum, query.PageSize)
	if err != nil {
		response.Fail(c.Ctx, code.ErrDatabase, nil)
		return
	}

	response.Success(c.Ctx, gin.H{
		"projects":   projects,
		"pagination": models.NewPaginationResult(int(total), query.PageNum, query.PageSize),
	})
}

// 2. GetProject 获取单个项目详情
// @Summary 获取单个项目
// @Description 根据ID获取项目及其设备列表
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "项目ID"
// @Success 200 {object} models.Project
// @Failure 404 {object} response.Response
// @Router /projects/{id} [get]
func (c *ProjectController) GetProject() {
	id, ok := c.projectIDParam()
	if !ok {
		return
	}

	projectService := c.Container.GetService("project").(services.InterfaceProjectService)

	project, err := projectService.GetProjectByID(id)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			response.Fail(c.Ctx, code.ErrProjectNotFound, nil)
		} else {
			response.Fail(c.Ctx, code.ErrDatabase, nil)
		}
		return
	}

	response.Success(c.Ctx, project)
}

// 3. CreateProject 创建新项目
// @Summary 创建新项目
// @Description 创建项目并分配公开ID（PROJ1..PROJ999，之后P1000..P9999）。
// 名称冲突返回结构化失败，由操作员更换名称后重试
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param project body ProjectRequest true "项目信息"
// @Success 201 {object} models.Project
// @Failure 409 {object} response.Response "项目名称已存在"
// @Failure 500 {object} response.Response "公开ID容量耗尽"
// @Router /projects [post]
func (c *ProjectController) CreateProject() {
	var req ProjectRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "无效的请求参数: "+err.Error())
		return
	}

	projectService := c.Container.GetService("project").(services.InterfaceProjectService)

	project, err := projectService.CreateProject(req.Name, req.Owner)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProjectNameExists):
			response.Fail(c.Ctx, code.ErrProjectNameExists, nil)
		case errors.Is(err, services.ErrCapacityExhausted):
			response.Fail(c.Ctx, code.ErrProjectCapacityExhausted, nil)
		default:
			response.Fail(c.Ctx, code.ErrDatabase, nil)
		}
		return
	}

	response.Created(c.Ctx, gin.H{
		"id":         project.ID,
		"public_id":  project.PublicID,
		"name":       project.Name,
		"created_at": project.CreatedAt,
	})
}

// 4. UpdateProject 更新项目信息
// @Summary 更新项目
// @Description 更新项目名称、负责人或状态（active/archived）；公开ID不可修改
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "项目ID"
// @Param project body ProjectUpdateRequest true "更新字段"
// @Success 200 {object} models.Project
// @Failure 404 {object} response.Response
// @Router /projects/{id} [put]
func (c *ProjectController) UpdateProject() {
	id, ok := c.projectIDParam()
	if !ok {
		return
	}

	var req ProjectUpdateRequest
	if err := c.Ctx.ShouldBindJSON(&req); err != nil {
		response.ParamError(c.Ctx, "无效的请求参数: "+err.Error())
		return
	}

	updates := make(map[string]interface{})
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Owner != "" {
		updates["owner"] = req.Owner
	}
	if req.Status == "active" || req.Status == "archived" {
		updates["status"] = req.Status
	}

	projectService := c.Container.GetService("project").(services.InterfaceProjectService)

	project, err := projectService.UpdateProject(id, updates)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProjectNotFound):
			response.Fail(c.Ctx, code.ErrProjectNotFound, nil)
		case errors.Is(err, services.ErrProjectNameExists):
			response.Fail(c.Ctx, code.ErrProjectNameExists, nil)
		default:
			response.Fail(c.Ctx, code.ErrDatabase, nil)
		}
		return
	}

	response.Success(c.Ctx, project)
}

// 5. DeleteProject 删除项目
// @Summary 删除项目
// @Description 删除项目并级联删除其设备、心跳记录和指令；公开ID不回收
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "项目ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /projects/{id} [delete]
func (c *ProjectController) DeleteProject() {
	id, ok := c.projectIDParam()
	if !ok {
		return
	}

	projectService := c.Container.GetService("project").(services.InterfaceProjectService)

	if err := projectService.DeleteProject(id); err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			response.Fail(c.Ctx, code.ErrProjectNotFound, nil)
		} else {
			response.Fail(c.Ctx, code.ErrDatabase, nil)
		}
		return
	}

	response.Success(c.Ctx, nil)
}

// 6. GetProjectSlots 获取项目槽位占用情况
// @Summary 获取槽位列表
// @Description 返回项目全部20个槽位及可用状态，供注册设备时选择
// @Tags project
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "项目ID"
// @Success 200 {array} services.SlotInfo
// @Failure 404 {object} response.Response
// @Router /projects/{id}/slots [get]
func (c *ProjectController) GetProjectSlots() {
	id, ok := c.projectIDParam()
	if !ok {
		return
	}

	deviceService := c.Container.GetService("device").(services.InterfaceDeviceService)

	slots, err := deviceService.ListAvailableSlots(id)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			response.Fail(c.Ctx, code.ErrProjectNotFound, nil)
		} else {
			response.Fail(c.Ctx, code.ErrDatabase, nil)
		}
		return
	}

	response.Success(c.Ctx, slots)
}
