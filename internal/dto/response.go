package dto

// ── 认证模块响应 ──

// TokenResponse Token 对响应
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// ── 用户 ──

// UserResponse 用户信息响应（脱敏）
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// UserSummary 嵌入其他资源的用户简要信息
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
