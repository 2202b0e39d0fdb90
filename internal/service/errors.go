package service

import "errors"

var (
	// ErrUpstreamEmpty 上游返回空数据
	ErrUpstreamEmpty = errors.New("上游未返回数据")
	// ErrUpstreamCall 上游调用失败或超时，不重试
	ErrUpstreamCall = errors.New("上游调用失败")
	// ErrNotFound 同步后库中仍无请求区间的数据
	ErrNotFound = errors.New("未找到数据")
	// ErrStore 数据库访问失败
	ErrStore = errors.New("数据库访问失败")
)
