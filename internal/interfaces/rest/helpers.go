package rest

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nexusportal/backend/pkg/constants"
	"github.com/nexusportal/backend/pkg/errors"
	"github.com/nexusportal/backend/pkg/models"
)

// GetUserFromContext extracts the authenticated visitor from gin.Context.
// Anonymous visitors have no entry; callers get nil and treat the request
// as anonymous.
func GetUserFromContext(c *gin.Context) *models.PortalUser {
	userInterface, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil
	}
	user, ok := userInterface.(*models.PortalUser)
	if !ok {
		return nil
	}
	return user
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	code := errors.GetHTTPStatus(err)
	errorCode := errors.GetErrorCode(err)
	message := err.Error()

	if code >= 500 {
		log.Printf("❌ ERROR [%d] %s %s: %s", code, c.Request.Method, c.Request.URL.Path, message)
	}

	c.JSON(code, gin.H{
		constants.ResponseError:   message,
		constants.ResponseMessage: message,
		"code":                    errorCode,
		constants.ResponseData:    nil,
	})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}
