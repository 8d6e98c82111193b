package logic

import (
	"errors"
)

// 业务错误的封闭集合，handler 层通过 errors.Is 映射到 HTTP 状态码。
// 账本层的并发冲突（ledger.ErrConcurrentModification）在状态机内部
// 通过重新读取、重新校验消化，不会出现在这里。
var (
	// ErrNotFound 托管或争议记录不存在
	ErrNotFound = errors.New("托管记录不存在")
	// ErrUnauthorized 调用方身份与操作要求的角色不匹配
	ErrUnauthorized = errors.New("无权执行该操作")
	// ErrInvalidStateTransition 当前状态不允许该操作
	ErrInvalidStateTransition = errors.New("当前状态不允许该操作")
	// ErrValidation 入参校验失败
	ErrValidation = errors.New("参数校验失败")
	// ErrDisputeExists 托管已存在未处理的争议
	ErrDisputeExists = errors.New("该托管已存在未处理的争议")
)
