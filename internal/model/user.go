package model

import "time"

// User 代表一个注册用户。Credits 为剩余使用额度，
// 每次成功的对话回合按模式扣减，但不做最低余额的硬性校验。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Name      string    `gorm:"size:128" json:"name"`
	Credits   int       `gorm:"not null;default:50" json:"credits"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
