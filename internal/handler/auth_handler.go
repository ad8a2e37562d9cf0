package handler

import (
	"net/http"

	"stenagrafist-go/internal/service"
	"stenagrafist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责签发 access token。
type AuthHandler struct {
	userService service.UserService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// Login 接受表单或 JSON 格式的凭证，成功时返回 bearer token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "无效的请求负载：用户名和密码不能为空", err)
		return
	}

	accessToken, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			log.Warnf("Login: User authentication failed for '%s'", req.Username)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    http.StatusUnauthorized,
				"message": "无效的凭证",
			})
			return
		}
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	log.Infof("User '%s' logged in successfully", req.Username)
	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "bearer",
	})
}
