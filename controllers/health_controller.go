package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ServiceName 服务标识
const ServiceName = "serra-http-service"

// ServiceVersion 当前服务版本
const ServiceVersion = "1.0"

// HealthCheckController 健康检查控制器
type HealthCheckController struct{}

// NewHealthCheckController 创建健康检查控制器实例
func NewHealthCheckController() *HealthCheckController {
	return &HealthCheckController{}
}

// Ping 健康检查端点，返回服务标识和版本
func (h *HealthCheckController) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
		"status":  "healthy",
		"service": ServiceName,
		"version": ServiceVersion,
	})
}
