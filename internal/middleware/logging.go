package middleware

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"stenagrafist-go/pkg/log"
	"stenagrafist-go/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader 是请求 ID 的请求头和响应头名称。
	RequestIDHeader = "X-Request-ID"
	// RequestIDKey 是请求 ID 在 gin.Context 中的键。
	RequestIDKey = "requestID"

	// 超过该长度的请求体和响应体只记录前缀
	maxLoggedBody = 4 << 10
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 将响应写入 gin.ResponseWriter，并在 buffer 未满时保留一份副本
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，为每个请求分配 X-Request-ID，记录请求日志并上报耗时指标。
// multipart 请求体（上传的文件）不会被读取和记录。
func RequestLogger(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(RequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		// 读取并重新缓存请求体，以便后续处理函数可以正常读取
		var requestBody []byte
		if c.Request.Body != nil && !isMultipart(c.ContentType()) {
			var readErr error
			requestBody, readErr = io.ReadAll(c.Request.Body)
			var body io.Reader = bytes.NewReader(requestBody)
			if readErr != nil {
				// 读取失败（例如超过 BodyLimit）时把错误留给处理函数，由其决定状态码
				body = io.MultiReader(body, errReader{err: readErr})
			}
			c.Request.Body = io.NopCloser(body)
		}

		blw := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, strconv.Itoa(statusCode), latency)

		log.Infow("HTTP Request Log",
			"requestID", requestID,
			"statusCode", statusCode,
			"latency", latency.String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"requestBody", truncate(requestBody),
			"responseBody", blw.body.String(),
		)
	}
}

// errReader 在已缓存的内容读完后返回原始读取错误。
type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func isMultipart(contentType string) bool {
	return strings.HasPrefix(contentType, "multipart/")
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
