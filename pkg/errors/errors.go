// Package errors 提供统一错误辅助，不依赖 internal
package errors

import (
	"errors"
	"fmt"
)

// 常用哨兵错误（协商引擎错误分类：路由/决策/配置/协议）
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArg        = errors.New("invalid argument")
	ErrRecipientUnknown  = errors.New("recipient not registered")
	ErrDecisionFailed    = errors.New("decision provider failed")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrSessionNotActive  = errors.New("negotiation is not active")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 透出标准库 errors.Is，调用方无需双导入
func Is(err, target error) bool {
	return errors.Is(err, target)
}
