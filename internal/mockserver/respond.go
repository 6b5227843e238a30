package mockserver

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/luthfiadilal/front-end-CBT-sub000/internal/api"
)

// contextKeyRequestID is the Gin context key for the request ID.
const contextKeyRequestID = "request_id"

// requestIDMiddleware generates a unique request ID for every request.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(contextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// success sends a successful envelope with the given status code and data.
func success(c *gin.Context, statusCode int, data any) {
	raw, _ := json.Marshal(data)
	c.JSON(statusCode, api.Envelope{
		Data:     raw,
		Metadata: buildMetadata(c),
	})
}

// successWithPagination sends a successful envelope with pagination metadata.
func successWithPagination(c *gin.Context, statusCode int, data any, pagination *api.Pagination) {
	raw, _ := json.Marshal(data)
	c.JSON(statusCode, api.Envelope{
		Data:       raw,
		Pagination: pagination,
		Metadata:   buildMetadata(c),
	})
}

// fail sends an error envelope with an error code and no field details.
func fail(c *gin.Context, statusCode int, code api.ErrCode) {
	c.JSON(statusCode, api.Envelope{
		Error:    &api.ErrorBody{Code: code, Message: api.GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// failWithFields sends an error envelope with field-level validation details.
func failWithFields(c *gin.Context, statusCode int, code api.ErrCode, fields map[string]string) {
	c.JSON(statusCode, api.Envelope{
		Error:    &api.ErrorBody{Code: code, Message: api.GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	})
}

// abortFail aborts the middleware chain and sends an error envelope.
func abortFail(c *gin.Context, statusCode int, code api.ErrCode) {
	c.AbortWithStatusJSON(statusCode, api.Envelope{
		Error:    &api.ErrorBody{Code: code, Message: api.GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

func buildMetadata(c *gin.Context) api.Metadata {
	reqID, _ := c.Get(contextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return api.Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
