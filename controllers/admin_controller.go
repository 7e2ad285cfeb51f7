package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"serra-http-service/models"
	"serra-http-service/services"
	"serra-http-service/services/container"

	"github.com/gin-gonic/gin"
)

// InterfaceAdminController 定义管理员控制器接口
type InterfaceAdminController interface {
	GetAdmins()
	GetAdmin()
	CreateAdmin()
	UpdateAdmin()
	DeleteAdmin()
}

// AdminController 管理员控制器
type AdminController struct {
	BaseControllerImpl
}

// NewAdminController 创建一个新的管理员控制器
func (f *ControllerFactory) NewAdminController(ctx *gin.Context) *AdminController {
	return &AdminController{
		BaseControllerImpl: BaseControllerImpl{
			Container: f.Container,
			Context:   ctx,
		},
	}
}

// CreateAdminRequest 创建管理员请求
type CreateAdminRequest struct {
	Username string `json:"username" binding:"required" example:"admin123"`
	Password string `json:"password" binding:"required" example:"Admin@123"`
	Phone    string `json:"phone" example:"13800138000"`
	Email    string `json:"email" binding:"required,email" example:"admin@example.com"`
}

// UpdateAdminRequest 更新管理员请求
type UpdateAdminRequest struct {
	Phone    string `json:"phone" example:"13800138000"`
	Email    string `json:"email" binding:"omitempty,email" example:"admin@example.com"`
	Password string `json:"password" example:"NewPassword@123"`
}

// HandleAdminFunc 返回一个处理管理员请求的Gin处理函数
func HandleAdminFunc(container *container.ServiceContainer, method string) gin.HandlerFunc {
	factory := NewControllerFactory(container)

	return func(ctx *gin.Context) {
		controller := factory.NewAdminController(ctx)

		switch method {
		case "getAdmins":
			controller.GetAdmins()
		case "getAdmin":
			controller.GetAdmin()
		case "createAdmin":
			controller.CreateAdmin()
		case "updateAdmin":
			controller.UpdateAdmin()
		case "deleteAdmin":
			controller.DeleteAdmin()
		default:
			ctx.JSON(http.StatusBadRequest, gin.H{
				"code":    400,
				"message": "无效的方法",
				"data":    nil,
			})
		}
	}
}

// 1. GetAdmins 获取管理员列表
// @Summary      获取管理员列表
// @Description  分页获取所有管理员用户列表
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        page query int false "页码, 默认为1"
// @Param        page_size query int false "每页条数, 默认为10"
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  ErrorResponse
// @Router       /admins [get]
// @Security     BearerAuth
func (c *AdminController) GetAdmins() {
	page, _ := strconv.Atoi(c.Context.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.Context.DefaultQuery("page_size", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	adminService := c.Container.GetService("admin").(services.InterfaceAdminService)
	admins, total, err := adminService.GetAllAdmins(page, pageSize)
	if err != nil {
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询管理员列表失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "获取管理员列表成功",
		"data": gin.H{
			"admins":     admins,
			"pagination": models.NewPaginationResult(int(total), page, pageSize),
		},
	})
}

// 2. GetAdmin 获取单个管理员详情
// @Summary      获取单个管理员
// @Description  根据ID获取管理员信息
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "管理员ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /admins/{id} [get]
// @Security     BearerAuth
func (c *AdminController) GetAdmin() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil || id <= 0 {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	adminService := c.Container.GetService("admin").(services.InterfaceAdminService)
	admin, err := adminService.GetAdminByID(uint(id))
	if err != nil {
		if errors.Is(err, services.ErrAdminNotFound) {
			c.Context.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "管理员不存在",
				"data":    nil,
			})
			return
		}
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "查询管理员失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "获取管理员成功",
		"data":    admin,
	})
}

// 3. CreateAdmin 创建管理员
// @Summary      创建管理员
// @Description  创建新的管理员账号
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        admin body CreateAdminRequest true "管理员信息"
// @Success      201  {object}  map[string]interface{}
// @Failure      409  {object}  ErrorResponse  "用户名已存在"
// @Router       /admins [post]
// @Security     BearerAuth
func (c *AdminController) CreateAdmin() {
	var req CreateAdminRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	// 密码哈希由服务层负责
	admin := models.Admin{
		Username: req.Username,
		Password: req.Password,
		Phone:    req.Phone,
		Email:    req.Email,
	}

	adminService := c.Container.GetService("admin").(services.InterfaceAdminService)
	if err := adminService.CreateAdmin(&admin); err != nil {
		if errors.Is(err, services.ErrAdminNameExists) {
			c.Context.JSON(http.StatusConflict, gin.H{
				"code":    409,
				"message": "用户名已存在",
				"data":    nil,
			})
			return
		}
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "创建管理员失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusCreated, gin.H{
		"code":    0,
		"message": "创建管理员成功",
		"data":    admin,
	})
}

// 4. UpdateAdmin 更新管理员
// @Summary      更新管理员
// @Description  更新管理员的联系方式或密码
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "管理员ID"
// @Param        admin body UpdateAdminRequest true "更新内容"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /admins/{id} [put]
// @Security     BearerAuth
func (c *AdminController) UpdateAdmin() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil || id <= 0 {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	var req UpdateAdminRequest
	if err := c.Context.ShouldBindJSON(&req); err != nil {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的请求参数: " + err.Error(),
			"data":    nil,
		})
		return
	}

	updates := map[string]interface{}{}
	if req.Phone != "" {
		updates["phone"] = req.Phone
	}
	if req.Email != "" {
		updates["email"] = req.Email
	}
	if req.Password != "" {
		updates["password"] = req.Password
	}

	adminService := c.Container.GetService("admin").(services.InterfaceAdminService)
	admin, err := adminService.UpdateAdmin(uint(id), updates)
	if err != nil {
		if errors.Is(err, services.ErrAdminNotFound) {
			c.Context.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "管理员不存在",
				"data":    nil,
			})
			return
		}
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "更新管理员失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "更新管理员成功",
		"data":    admin,
	})
}

// 5. DeleteAdmin 删除管理员
// @Summary      删除管理员
// @Description  根据ID删除管理员账号
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id path int true "管理员ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  ErrorResponse
// @Router       /admins/{id} [delete]
// @Security     BearerAuth
func (c *AdminController) DeleteAdmin() {
	id, err := strconv.Atoi(c.Context.Param("id"))
	if err != nil || id <= 0 {
		c.Context.JSON(http.StatusBadRequest, gin.H{
			"code":    400,
			"message": "无效的管理员ID",
			"data":    nil,
		})
		return
	}

	adminService := c.Container.GetService("admin").(services.InterfaceAdminService)
	if err := adminService.DeleteAdmin(uint(id)); err != nil {
		if errors.Is(err, services.ErrAdminNotFound) {
			c.Context.JSON(http.StatusNotFound, gin.H{
				"code":    404,
				"message": "管理员不存在",
				"data":    nil,
			})
			return
		}
		c.Context.JSON(http.StatusInternalServerError, gin.H{
			"code":    500,
			"message": "删除管理员失败: " + err.Error(),
			"data":    nil,
		})
		return
	}

	c.Context.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "删除管理员成功",
		"data":    nil,
	})
}
