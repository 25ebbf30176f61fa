// Package mse 实现 MSE（Message Stream Encryption）流密码协商
//
// 由共享密钥 S 与内容标识 SKEY 派生两把方向密钥：
//
//	keyA = SHA1("keyA" || S || SKEY)  发起方出站 / 接收方入站
//	keyB = SHA1("keyB" || S || SKEY)  接收方出站 / 发起方入站
//
// 每把密钥初始化一个独立的 RC4 实例，使用前丢弃 1024 字节密钥流。
// 入站与出站实例互不共享状态。
//
// 共享密钥由上层 Diffie-Hellman 交换得到，本包不负责交换过程。
//
// # 使用示例
//
//	c, err := mse.NewCipher(secret, contentID, true)
//	if err != nil {
//	    return err
//	}
//	conn = c.WrapConn(conn)
package mse
