package mse

import "errors"

var (
	// ErrUnsupportedAlgorithm 不支持的流密码算法
	ErrUnsupportedAlgorithm = errors.New("mse: unsupported cipher algorithm")

	// ErrEncryptionRequired 协商结果要求加密但未提供共享密钥
	ErrEncryptionRequired = errors.New("mse: encryption required but no shared secret")
)
