// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// User 对应 users 表。核心流程只读取，不修改。
type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	CredentialHash string    `gorm:"type:varchar(255);not null;column:credential_hash" json:"-"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}
