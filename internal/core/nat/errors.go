package nat

import "errors"

var (
	// ErrNATDisabled 所有映射后端均被禁用
	ErrNATDisabled = errors.New("nat: port mapping disabled")

	// ErrNoGateway 未发现可用网关
	ErrNoGateway = errors.New("nat: no gateway found")

	// ErrMappingFailed 所有后端映射均失败
	ErrMappingFailed = errors.New("nat: port mapping failed")

	// ErrServiceClosed 服务已关闭
	ErrServiceClosed = errors.New("nat: service closed")
)
