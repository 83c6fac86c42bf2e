package response

import (
	"github.com/gin-gonic/gin"
)

// JSON writes the uniform response envelope. Every handler replies through
// this, success and failure alike.
func JSON(c *gin.Context, message string, status int, data interface{}, err error) {
	responsedata := gin.H{
		"message": message,
		"data":    data,
		"status":  status,
	}
	if err != nil {
		responsedata["errors"] = err.Error()
	}
	c.JSON(status, responsedata)
}
