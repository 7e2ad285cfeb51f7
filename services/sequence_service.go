package services

import (
	"errors"
	"fmt"
	"serra-http-service/models"

	"gorm.io/gorm"
)

// 项目公开ID分配上限，超过后需要运维介入
const ProjectIDCeiling = 9999

var (
	// ErrCapacityExhausted 项目公开ID容量耗尽
	ErrCapacityExhausted = errors.New("项目公开ID容量已耗尽")
	// ErrSequenceMissing 序列行不存在（启动时未初始化）
	ErrSequenceMissing = errors.New("序列不存在")
)

// InterfaceSequenceService 定义序列分配服务接口
type InterfaceSequenceService interface {
	NextProjectPublicID() (string, error)
	EnsureSequence(name string) error
}

// SequenceService 提供存储侧单调计数器。
// 计数器保存在数据库行中，多个服务实例并发分配也不会重复；
// 事务中止产生的空洞是允许的，编号永不回收。
type SequenceService struct {
	DB *gorm.DB
}

// NewSequenceService 创建一个新的序列分配服务
func NewSequenceService(db *gorm.DB) InterfaceSequenceService {
	return &SequenceService{DB: db}
}

// EnsureSequence 确保序列行存在，值从0开始
func (s *SequenceService) EnsureSequence(name string) error {
	seq := models.Sequence{Name: name, Value: 0}
	return s.DB.Where(models.Sequence{Name: name}).FirstOrCreate(&seq).Error
}

// next 在单个事务内递增并读取序列值。
// UPDATE 持有行锁直到提交，并发调用者拿到的值互不相同。
func (s *SequenceService) next(name string) (uint, error) {
	var value uint
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Sequence{}).
			Where("name = ?", name).
			Update("value", gorm.Expr("value + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrSequenceMissing
		}

		var seq models.Sequence
		if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
			return err
		}
		value = seq.Value
		return nil
	})
	return value, err
}

// FormatProjectPublicID 将序列值格式化为项目公开ID：
// 1..999 -> PROJ<n>，1000及以上 -> P<n>
func FormatProjectPublicID(n uint) string {
	if n <= 999 {
		return fmt.Sprintf("PROJ%d", n)
	}
	return fmt.Sprintf("P%d", n)
}

// NextProjectPublicID 分配下一个未使用的项目公开ID
func (s *SequenceService) NextProjectPublicID() (string, error) {
	n, err := s.next(models.SequenceProjectPublicID)
	if err != nil {
		return "", err
	}
	if n > ProjectIDCeiling {
		return "", ErrCapacityExhausted
	}
	return FormatProjectPublicID(n), nil
}
