package steam

import (
	"errors"
	"fmt"
)

// statusError 非 200 响应
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("Steam接口返回状态码%d: %s", e.code, e.body)
}

func asStatus(err error, target **statusError) bool {
	return errors.As(err, target)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}
