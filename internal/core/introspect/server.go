// Package introspect 提供本地自省 HTTP 服务
//
// 该服务运行在本地端口，提供 JSON 格式的联邦成员诊断信息与 Prometheus 指标，
// 用于调试和监控。默认绑定到 127.0.0.1，不暴露到网络。
//
// 端点：
//   - GET /debug/introspect           - 完整诊断报告 (JSON)
//   - GET /debug/introspect/instances - 对象实例映射
//   - GET /metrics                    - Prometheus 指标
//   - GET /debug/pprof/*              - Go pprof 端点
//   - GET /health                     - 健康检查
package introspect

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-federate/internal/core/execution"
	"github.com/dep2p/go-federate/internal/core/fedctx"
	"github.com/dep2p/go-federate/internal/core/instance"
	"github.com/dep2p/go-federate/internal/core/timing"
	"github.com/dep2p/go-federate/pkg/lib/log"
	"github.com/dep2p/go-federate/pkg/types"
)

var logger = log.Logger("core/introspect")

// DefaultAddr 默认监听地址
const DefaultAddr = "127.0.0.1:6060"

// Server 本地自省 HTTP 服务
type Server struct {
	// 依赖组件
	fc        *fedctx.Context
	instances *instance.Manager
	timing    *timing.Coordinator
	tracker   *execution.Tracker
	gatherer  prometheus.Gatherer

	// 配置
	addr string

	// HTTP 服务器
	server   *http.Server
	listener net.Listener

	// 状态
	running bool
	mu      sync.Mutex
}

// Config 服务配置
type Config struct {
	// Addr 监听地址，默认 "127.0.0.1:6060"
	Addr string

	// Context 必需的联邦成员上下文
	Context *fedctx.Context

	// Instances 必需的实例管理器
	Instances *instance.Manager

	// Timing 必需的时间协调器
	Timing *timing.Coordinator

	// Tracker 可选的执行配置跟踪器
	Tracker *execution.Tracker

	// Gatherer 可选的指标采集器；为空时不挂载 /metrics
	Gatherer prometheus.Gatherer
}

// New 创建自省服务
func New(cfg Config) *Server {
	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	return &Server{
		fc:        cfg.Context,
		instances: cfg.Instances,
		timing:    cfg.Timing,
		tracker:   cfg.Tracker,
		gatherer:  cfg.Gatherer,
		addr:      addr,
	}
}

// Handler 返回服务路由
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// 自省端点
	mux.HandleFunc("/debug/introspect", s.handleIntrospect)
	mux.HandleFunc("/debug/introspect/instances", s.handleInstances)

	if s.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// pprof 端点
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 健康检查
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

// Start 启动服务
func (s *Server) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("自省服务异常退出", "error", err)
		}
	}()

	s.running = true
	logger.Info("自省服务已启动", "addr", listener.Addr().String())
	return nil
}

// Stop 停止服务
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Error("关闭自省服务失败", "error", err)
		return err
	}

	s.running = false
	logger.Info("自省服务已停止")
	return nil
}

// Addr 返回实际监听地址
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ============================================================================
//                              诊断报告
// ============================================================================

// Report 完整诊断报告
type Report struct {
	Timestamp time.Time      `json:"timestamp"`
	Federate  FederateInfo   `json:"federate"`
	Time      TimeInfo       `json:"time"`
	Execution *ExecutionInfo `json:"execution,omitempty"`
	Instances InstanceCounts `json:"instances"`
}

// FederateInfo 联邦成员信息
type FederateInfo struct {
	Federation     string `json:"federation"`
	Type           string `json:"type"`
	Phase          string `json:"phase"`
	Connected      bool   `json:"connected"`
	ShutdownReason string `json:"shutdown_reason,omitempty"`
}

// TimeInfo 时间管理信息（微秒）
type TimeInfo struct {
	Present     int64 `json:"present"`
	Lookahead   int64 `json:"lookahead"`
	Constrained bool  `json:"constrained"`
	Regulating  bool  `json:"regulating"`
}

// ExecutionInfo 执行配置信息；未配置锚对象或尚未收到首次更新时省略
type ExecutionInfo struct {
	Mode string `json:"mode"`
	LCTS int64  `json:"lcts"`
}

// InstanceCounts 实例计数
type InstanceCounts struct {
	Local  int `json:"local"`
	Remote int `json:"remote"`
}

// InstanceInfo 单个实例的映射信息
type InstanceInfo struct {
	Name   string `json:"name"`
	Handle uint64 `json:"handle"`
	Class  string `json:"class"`
	Entity uint64 `json:"entity"`
	Origin string `json:"origin"`
}

// Report 生成诊断报告
func (s *Server) Report() Report {
	cfg := s.fc.Config
	lc := s.fc.Lifecycle

	r := Report{
		Timestamp: s.fc.Clock.Now(),
		Federate: FederateInfo{
			Federation:     cfg.Federation.Name,
			Type:           cfg.Federation.FederateType,
			Phase:          lc.Phase().String(),
			Connected:      s.fc.Connected(),
			ShutdownReason: lc.ShutdownReason(),
		},
		Time: TimeInfo{
			Present:     int64(s.timing.Present()),
			Lookahead:   int64(s.timing.Lookahead()),
			Constrained: s.timing.Constrained(),
			Regulating:  s.timing.Regulating(),
		},
	}

	if s.tracker != nil {
		if c, ok := s.tracker.Snapshot(); ok && c.Complete() {
			r.Execution = &ExecutionInfo{
				Mode: c.CurrentMode.String(),
				LCTS: int64(c.LeastCommonTimeStep),
			}
		}
	}

	for _, e := range s.instances.Mapping().Entries(0) {
		switch e.Origin {
		case types.OriginLocal:
			r.Instances.Local++
		case types.OriginRemote:
			r.Instances.Remote++
		}
	}
	return r
}

// Instances 返回按名字排序的实例映射
func (s *Server) Instances() []InstanceInfo {
	entries := s.instances.Mapping().Entries(0)
	out := make([]InstanceInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, InstanceInfo{
			Name:   e.Name,
			Handle: uint64(e.Handle),
			Class:  e.Class,
			Entity: uint64(e.Entity),
			Origin: e.Origin.String(),
		})
	}
	return out
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

func (s *Server) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.Report())
}

func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.Instances())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]string{
		"status": "ok",
		"phase":  s.fc.Lifecycle.Phase().String(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		logger.Error("JSON 编码失败", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
