// Package federate 提供 HLA 联邦成员运行时
//
// 联邦成员通过 RTI（运行时基础设施）加入联邦执行，与其他成员共享对象实例
// 和交互，并以保守的时间管理协议逐步推进逻辑时间。本包把 RTI 的回调式
// 接口转换为一个顺序驱动的生命周期，状态保存在实体组件引擎（World）中。
//
// # 核心概念
//
//   - Federate: 联邦成员，用户交互的主入口
//   - 类声明: 对象类/交互类与转换器的绑定，由配置或选项给出
//   - 执行配置（锚对象）: 联邦的最小公共时间步长与执行模式
//
// # 快速开始
//
//	import "github.com/dep2p/go-federate"
//
//	fed, err := federate.New(
//	    federate.WithRTI(rti),
//	    federate.WithFederation("SpaceFederation", "Lander"),
//	    federate.WithObjectClass(landerClass),
//	    federate.WithConverter("position", newPositionConverter),
//	    federate.WithArchetype("lander", newLander),
//	    federate.WithSetup(func(ctx context.Context, f *federate.Federate) error {
//	        _, err := f.RegisterInstance(ctx, "HLAobjectRoot.Lander", lander, "Lander-1")
//	        return err
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer fed.Close()
//
//	if err := fed.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	if err := fed.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # 启动序列
//
// Start 依次执行：连接 RTI、创建并加入联邦执行、订阅锚对象类并等待锚对象
// 的首次完整更新、发布所有类、执行启动钩子、订阅所有类、等待必需对象、
// 启用时间受限与时间调节、推进到第一个时间边界。每个需要 RTI 异步确认的
// 步骤都经过同一个会合闸门，同一时刻最多只有一个未完成的请求。
//
// # 线程模型
//
// RTI 回调在回调线程上到达，只修改 World 和实例映射；Start、Run 以及实例
// 与交互操作在驱动线程上执行。两者对 World 的修改由同一把锁串行化。
package federate
