package httpapi

import "github.com/gin-gonic/gin"

// Envelope is the wire shape every endpoint responds with.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

func respondMsg(c *gin.Context, status int, data any, message string) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

func respondErr(c *gin.Context, status int, err error) {
	c.JSON(status, Envelope{Success: false, Error: err.Error()})
}
