package model

// Role 用户角色（封闭枚举）
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid 是否为已知角色
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// IsAdmin 是否具备管理员能力
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// User 用户表，对应 users
type User struct {
	UserID           string      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name             string      `gorm:"type:varchar(100);not null"                     json:"name"`
	Email            string      `gorm:"type:varchar(255);not null"                     json:"email"`
	PasswordHash     string      `gorm:"type:varchar(255);not null"                     json:"-"`
	Role             Role        `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	Bio              *string     `gorm:"type:text"                                      json:"bio"`
	College          *string     `gorm:"type:varchar(200)"                              json:"college"`
	Major            *string     `gorm:"type:varchar(200)"                              json:"major"`
	GraduationYear   *string     `gorm:"type:varchar(20)"                               json:"graduationYear"`
	Preferences      StringArray `gorm:"type:text[];not null;default:'{}'"              json:"preferences"`
	RegisteredEvents StringArray `gorm:"type:text[];not null;default:'{}'"              json:"registeredEvents"`
	VersionedModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// IsAdmin 是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}
