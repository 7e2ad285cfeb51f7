package models

// 序列名称常量
const (
	SequenceProjectPublicID = "project_public_id"
)

// Sequence 存储侧单调递增计数器。
// 使用数据库行而非进程内变量，保证多实例并发分配不冲突。
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(50)" json:"name"`
	Value uint   `gorm:"not null" json:"value"`
}
