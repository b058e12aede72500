// Package validate 进程内共享的 validator 实例
package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	instance *validator.Validate
	once     sync.Once
)

// Get 返回单例（validator 会缓存结构体信息，不应重复创建）
func Get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Struct 校验结构体，把字段错误拼成一行便于写日志
func Struct(v interface{}) error {
	err := Get().Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s(%s=%s)", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("字段校验失败: %s", strings.Join(parts, ", "))
}
