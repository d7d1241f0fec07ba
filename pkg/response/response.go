// Package response writes the {success, data, error} envelope every endpoint returns.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Body{Success: true, Data: data})
}

// Fail writes an error envelope with status.
func Fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Body{Error: msg})
}

// Abort writes an error envelope and stops the handler chain. For middleware.
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Body{Error: msg})
}

// OK sends 200 with data.
func OK(c *gin.Context, data interface{}) { success(c, http.StatusOK, data) }

// Created sends 201 with data.
func Created(c *gin.Context, data interface{}) { success(c, http.StatusCreated, data) }

// Accepted sends 202 for work handed to the worker.
func Accepted(c *gin.Context, data interface{}) { success(c, http.StatusAccepted, data) }

// NoContent sends 204.
func NoContent(c *gin.Context) { c.Status(http.StatusNoContent) }

func BadRequest(c *gin.Context, msg string)         { Fail(c, http.StatusBadRequest, msg) }
func Unauthorized(c *gin.Context, msg string)       { Fail(c, http.StatusUnauthorized, msg) }
func Forbidden(c *gin.Context, msg string)          { Fail(c, http.StatusForbidden, msg) }
func NotFound(c *gin.Context, msg string)           { Fail(c, http.StatusNotFound, msg) }
func Conflict(c *gin.Context, msg string)           { Fail(c, http.StatusConflict, msg) }
func ServiceUnavailable(c *gin.Context, msg string) { Fail(c, http.StatusServiceUnavailable, msg) }

// Internal sends 500. Callers log the cause; msg is what the client sees.
func Internal(c *gin.Context, msg string) { Fail(c, http.StatusInternalServerError, msg) }
