package models

import "time"

// DefaultProfilePicture is stored for users who never uploaded a picture.
const DefaultProfilePicture = "/Images/DefaultProfile.png"

// User 代表系统中的用户。
type User struct {
	BaseModel
	Name           string     `gorm:"type:varchar(50);not null" json:"name"`
	LastName       string     `gorm:"type:varchar(50);not null" json:"lastName"`
	Email          string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"type:varchar(255);not null" json:"-"`
	BirthDay       *time.Time `json:"birthDay,omitempty"`
	AboutMe        string     `gorm:"type:varchar(500)" json:"aboutMe,omitempty"`
	ProfilePicture string     `gorm:"type:varchar(255);not null;default:'/Images/DefaultProfile.png'" json:"profilePicture"`
}

// TableName 指定 User 模型的表名。
func (User) TableName() string {
	return "users"
}

// DisplayInfo returns the public fields used by relation and search views.
func (u *User) DisplayInfo() UserDisplayInfo {
	return UserDisplayInfo{
		ID:             u.ID,
		Name:           u.Name,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}

// HasCustomPicture reports whether the user replaced the default picture.
func (u *User) HasCustomPicture() bool {
	return u.ProfilePicture != "" && u.ProfilePicture != DefaultProfilePicture
}

// UserDisplayInfo holds minimal public information about a user.
type UserDisplayInfo struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture"`
}
