package handler

import (
	"net/http"

	"stenagrafist-go/internal/service"
	"stenagrafist-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理文件上传和任务消息重放的请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Load 处理 multipart 上传：写入对象存储、创建任务并发布任务消息。
func (h *UploadHandler) Load(c *gin.Context) {
	username := c.Query("username")
	orderName := c.Query("order_name")
	if username == "" || orderName == "" {
		badRequest(c, "缺少必要的参数", nil)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "缺少上传文件", err)
		return
	}
	file, err := header.Open()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	defer file.Close()

	orderID, err := h.uploadService.SubmitUpload(c.Request.Context(), service.UploadRequest{
		Username:    username,
		OrderName:   orderName,
		File:        file,
		Size:        header.Size,
		ContentType: header.Header.Get("Content-Type"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	log.Infof("Load: 上传完成, 用户: %s, 文件: %s, 任务ID: %d", username, header.Filename, orderID)
	c.JSON(http.StatusOK, gin.H{
		"message":  "User",
		"order_id": orderID,
	})
}

// Republish 重放记录在案的未发布任务消息。
func (h *UploadHandler) Republish(c *gin.Context) {
	n, err := h.uploadService.RepublishPending(c.Request.Context())
	if err != nil {
		log.Warnf("Republish: 重放中断, 已重放 %d 条", n)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"republished": n})
}
