package handler

import (
	"net/http"

	"stenagrafist-go/internal/model"
	"stenagrafist-go/internal/service"
	"stenagrafist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UserHandler 负责处理所有与用户相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CredentialsRequest 定义了携带用户名和密码的请求体结构。
type CredentialsRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

// OrderResponse 是任务对外展示的结构。
type OrderResponse struct {
	ID         uint             `json:"id"`
	Name       string           `json:"name"`
	Status     model.TaskStatus `json:"status"`
	ObjectKey  string           `json:"file_path"`
	PreviousID *uint            `json:"previous_id,omitempty"`
	CreatedAt  model.LocalTime  `json:"created_at"`
}

// Create 处理用户注册请求。除请求体非法外，任何失败都返回 500。
func (h *UserHandler) Create(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：用户名和密码不能为空", err)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	log.Infof("User '%s' registered successfully", user.Username)
	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"username": user.Username,
	})
}

// Get 校验凭证并返回用户名。
func (h *UserHandler) Get(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "无效的请求负载：用户名和密码不能为空", err)
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if service.KindOf(err) == service.KindNotFound {
			abortWithError(c, http.StatusNotFound, err)
			return
		}
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"username": user.Username})
}

// Orders 返回 token 所属用户的全部任务。任何失败都返回 400。
func (h *UserHandler) Orders(c *gin.Context) {
	accessToken := c.Query("token")
	if accessToken == "" {
		badRequest(c, "缺少 token 参数", nil)
		return
	}

	tasks, err := h.userService.ListOrders(c.Request.Context(), accessToken)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	orders := make([]OrderResponse, 0, len(tasks))
	for _, t := range tasks {
		orders = append(orders, OrderResponse{
			ID:         t.ID,
			Name:       t.Name,
			Status:     t.Status,
			ObjectKey:  t.ObjectKey,
			PreviousID: t.PreviousID,
			CreatedAt:  model.LocalTime(t.CreatedAt),
		})
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
