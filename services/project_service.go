package services

import (
	"errors"
	"serra-http-service/config"
	"serra-http-service/models"

	"gorm.io/gorm"
)

var (
	// ErrProjectNameExists 项目名称冲突，由数据库唯一约束在提交时检测
	ErrProjectNameExists = errors.New("项目名称已存在")
	// ErrProjectNotFound 项目不存在
	ErrProjectNotFound = errors.New("项目不存在")
)

// InterfaceProjectService 定义项目服务接口
type InterfaceProjectService interface {
	GetAllProjects(page, pageSize int) ([]models.Project, int64, error)
	GetProjectByID(id uint) (*models.Project, error)
	CreateProject(name, owner string) (*models.Project, error)
	UpdateProject(id uint, updates map[string]interface{}) (*models.Project, error)
	DeleteProject(id uint) error
}

// ProjectService 提供项目相关的服务
type ProjectService struct {
	DB        *gorm.DB
	Config    *config.Config
	Sequences InterfaceSequenceService
}

// NewProjectService 创建一个新的项目服务
func NewProjectService(db *gorm.DB, cfg *config.Config, sequences InterfaceSequenceService) InterfaceProjectService {
	return &ProjectService{
		DB:        db,
		Config:    cfg,
		Sequences: sequences,
	}
}

// 1 GetAllProjects 获取所有项目，支持分页
func (s *ProjectService) GetAllProjects(page, pageSize int) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	if err := s.DB.Model(&models.Project{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	if err := s.DB.Limit(pageSize).Offset(offset).Order("id desc").Find(&projects).Error; err != nil {
		return nil, 0, err
	}

	return projects, total, nil
}

// 2 GetProjectByID 根据ID获取项目
func (s *ProjectService) GetProjectByID(id uint) (*models.Project, error) {
	var project models.Project
	if err := s.DB.Preload("Devices").First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	return &project, nil
}

// 3 CreateProject 创建新项目。
// 公开ID从存储侧序列分配，分配一次后永不复用；
// 名称冲突不做预检查，由唯一约束在提交时报出，避免并发下的检查-写入竞态。
// 插入失败时已分配的编号作废，编号出现空洞是允许的。
func (s *ProjectService) CreateProject(name, owner string) (*models.Project, error) {
	publicID, err := s.Sequences.NextProjectPublicID()
	if err != nil {
		return nil, err
	}

	project := &models.Project{
		Name:     name,
		PublicID: publicID,
		Owner:    owner,
		Status:   models.ProjectStatusActive,
	}

	if err := s.DB.Create(project).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrProjectNameExists
		}
		return nil, err
	}

	return project, nil
}

// 4 UpdateProject 更新项目信息（名称、负责人、状态）
func (s *ProjectService) UpdateProject(id uint, updates map[string]interface{}) (*models.Project, error) {
	project, err := s.GetProjectByID(id)
	if err != nil {
		return nil, err
	}

	// 公开ID分配后不可变
	delete(updates, "public_id")

	if err := s.DB.Model(project).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrProjectNameExists
		}
		return nil, err
	}

	return s.GetProjectByID(id)
}

// 5 DeleteProject 删除项目，级联删除其设备、心跳记录和指令。
// 公开ID不回收，之后创建的项目继续使用新编号。
func (s *ProjectService) DeleteProject(id uint) error {
	var project models.Project
	if err := s.DB.First(&project, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return err
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		deviceIDs := tx.Model(&models.Device{}).Select("id").Where("project_id = ?", id)

		if err := tx.Where("device_id IN (?)", deviceIDs).Delete(&models.Command{}).Error; err != nil {
			return err
		}
		if err := tx.Where("device_id IN (?)", deviceIDs).Delete(&models.HeartbeatEvent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.Device{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}
