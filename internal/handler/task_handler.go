package handler

import (
	"net/http"
	"strconv"

	"stenagrafist-go/internal/service"

	"github.com/gin-gonic/gin"
)

// TaskHandler 负责处理任务状态变更请求。
type TaskHandler struct {
	taskService service.TaskService
}

// NewTaskHandler 创建一个新的 TaskHandler 实例。
func NewTaskHandler(taskService service.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// Change 为 order_id 对应的任务追加一条新状态记录，返回新记录的 ID。
func (h *TaskHandler) Change(c *gin.Context) {
	userID, err := parseID(c.Query("user_id"))
	if err != nil {
		badRequest(c, "无效的 user_id", err)
		return
	}
	orderID, err := parseID(c.Query("order_id"))
	if err != nil {
		badRequest(c, "无效的 order_id", err)
		return
	}

	newID, err := h.taskService.Transition(c.Request.Context(), userID, orderID, c.Query("status_name"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": newID})
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 0)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
