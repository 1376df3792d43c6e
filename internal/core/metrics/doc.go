// Package metrics 提供联邦成员运行时的 Prometheus 指标
//
// 指标：
//   - federate_callbacks_total{kind}：收到的 RTI 回调
//   - federate_dispatch_discarded_total{reason}：被丢弃的回调
//   - federate_gate_wait_seconds{cycle}：闸门等待时长
//   - federate_gate_failures_total{cycle}：中断或超时的等待
//   - federate_logical_time_microseconds：当前逻辑时间
//   - federate_time_advance_grants_total：时间推进许可
//   - federate_instances{origin}：映射中的实例数
//   - federate_events_dropped_total：事件总线慢消费者丢弃
//
// 所有方法对 nil *Metrics 安全，nil 表示禁用指标。
package metrics
