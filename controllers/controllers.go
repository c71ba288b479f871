// Package controllers holds the gin handlers of the HTTP API.
package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/models"
)

// RegisterValidators adds the custom binding tags used by request bodies.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("shardid", func(fl validator.FieldLevel) bool {
		return models.ValidShardID(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
}

// renderError writes {"error": message} with the status of the error class.
// Internal failures are logged and hidden from the caller.
func renderError(c *gin.Context, log *zap.Logger, err error) {
	status := apperr.Status(err)
	if !apperr.Public(err) {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "Something went wrong"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// queryInt parses an optional non-negative integer query value.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.BadInput.New("%s must be a non-negative integer", name)
	}
	return n, nil
}

// queryBool parses an optional boolean query value; nil when absent.
func queryBool(c *gin.Context, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.BadInput.New("%s must be true or false", name)
	}
	return &b, nil
}

func checkRegion(c *gin.Context) error {
	if r := c.Query("region"); r != "" && !models.ValidRegion(r) {
		return apperr.BadInput.New("unknown region %q", r)
	}
	return nil
}

type visibilityInput struct {
	Public *bool `json:"public" binding:"required"`
}

type uploadInput struct {
	Ext string `json:"ext" binding:"required"`
}

type imageSetInput struct {
	Key string `json:"key" binding:"required"`
}
