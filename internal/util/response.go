package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Success writes {success:true, data}.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// Created is Success with 201.
func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}

// List writes the list envelope shared by every collection endpoint.
// count is the size of this page, total the number of matches overall.
func List(c *gin.Context, data any, count int, total int64, pagination any) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      count,
		"pagination": pagination,
		"total":      total,
		"data":       data,
	})
}

// Error records err on the context and stops the chain; the error
// middleware renders the envelope.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// WriteError renders {success:false, error:{message}} immediately.
// stack is only included when non-empty.
func WriteError(c *gin.Context, status int, message, stack string) {
	body := gin.H{"message": message}
	if stack != "" {
		body["stack"] = stack
	}
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   body,
	})
}

// Collection writes {success, count, data} for unpaginated lists.
func Collection(c *gin.Context, data any, count int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   count,
		"data":    data,
	})
}
