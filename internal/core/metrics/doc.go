// Package metrics 提供发现与握手相关的 prometheus 指标
//
// 所有指标注册在私有的 prometheus.Registry 上，由 Node.MetricsRegistry 暴露，
// 调用方自行决定是否挂到 HTTP 端点。
//
// Recorder 的方法对 nil 接收者安全：禁用指标时各组件拿到 nil，调用即为空操作。
package metrics
