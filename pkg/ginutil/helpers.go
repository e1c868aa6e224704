package ginutil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

// QueryInt extracts an integer from query parameters with default value
func QueryInt(c *gin.Context, key string, defaultValue int) int {
	valueStr := c.Query(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// QueryPositiveInt extracts a required integer >= 1 from query parameters
func QueryPositiveInt(c *gin.Context, key string) (int, error) {
	valueStr := c.Query(key)
	if valueStr == "" {
		return 0, fmt.Errorf("query parameter %q is required", key)
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 1 {
		return 0, fmt.Errorf("query parameter %q must be a positive integer", key)
	}
	return value, nil
}

// ParamPositiveInt extracts an integer >= 1 from path parameters
func ParamPositiveInt(c *gin.Context, key string) (int, error) {
	value, err := strconv.Atoi(c.Param(key))
	if err != nil || value < 1 {
		return 0, fmt.Errorf("path parameter %q must be a positive integer", key)
	}
	return value, nil
}
