// Package main 提供 btpeer 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dep2p/go-btpeer"
	"github.com/dep2p/go-btpeer/internal/core/torrents"
	"github.com/dep2p/go-btpeer/internal/discovery/source"
	pkgif "github.com/dep2p/go-btpeer/pkg/interfaces"
	"github.com/dep2p/go-btpeer/pkg/lib/log"
	"github.com/dep2p/go-btpeer/pkg/types"
)

var logger = log.Logger("btpeer/cmd")

// listFlag 可重复的字符串参数
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//	命令行参数：运行时覆盖 / 快速测试
//	JSON 配置文件：持久化配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	port       = flag.Int("port", -1, "对外宣告的监听端口（-1 = 使用配置）")
	configFile = flag.String("config", "", "配置文件路径")
	encryption = flag.String("encryption", "", "加密策略 (require-plaintext/prefer-plaintext/prefer-encrypted/require-encrypted)")
	enableDHT  = flag.Bool("dht", true, "启用 DHT 发现")
	enableNAT  = flag.Bool("nat", true, "启用 NAT 端口映射")
	seed       = flag.Bool("seed", false, "以做种状态登记内容（触发 DHT 公告）")
	once       = flag.Bool("once", false, "只执行一次发现，打印结果后退出")
	wait       = flag.Duration("wait", 30*time.Second, "-once 模式下等待结果的时长")

	logLevel = flag.String("log-level", "", "日志级别 (debug/info/warn/error)")
	logJSON  = flag.Bool("log-json", false, "以 JSON 格式输出日志")

	showVersion = flag.Bool("version", false, "显示版本信息")

	contents listFlag
	peers    listFlag
)

func init() {
	flag.Var(&contents, "content", "要发现节点的内容 ID（40 位十六进制，可重复）")
	flag.Var(&peers, "peer", "静态节点 host:port（可重复）")
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("btpeer %s\n", btpeer.Version)
		return nil
	}
	setupLogging()

	ids, err := parseContents(contents)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("至少需要一个 -content")
	}

	exec := source.NewExecutor(source.DefaultWorkers)
	defer exec.Close(context.Background())

	opts, err := buildOptions(exec)
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	node, err := btpeer.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() { _ = node.Close() }()

	for _, id := range ids {
		if err := node.RegisterContent(id, torrents.State{Active: true, Seed: *seed}); err != nil {
			return err
		}
	}

	sub, err := node.EventBus().Subscribe(new(types.EvtPeerDiscovered))
	if err != nil {
		return err
	}
	defer sub.Close()

	fmt.Printf("btpeer %s 已启动，节点 ID %s，端口 %d\n", btpeer.Version, node.PeerID(), node.LocalPeer().Port)

	if *once {
		return discoverOnce(ctx, node, sub)
	}
	fmt.Println("按 Ctrl+C 退出")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Out():
			if !ok {
				return nil
			}
			printEvent(ev.(types.EvtPeerDiscovered))
		}
	}
}

// discoverOnce 反复轮询直到拿到结果或超时
func discoverOnce(ctx context.Context, node *btpeer.Node, sub pkgif.Subscription) error {
	ctx, cancel := context.WithTimeout(ctx, *wait)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	found := 0
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("共发现 %d 个节点\n", found)
			return nil
		case ev := <-sub.Out():
			printEvent(ev.(types.EvtPeerDiscovered))
			found++
		case <-ticker.C:
			stats := node.PollOnce(ctx)
			if stats.Peers == 0 && found > 0 {
				// 给订阅通道留出时间交付剩余事件
				drain(sub, &found)
				fmt.Printf("共发现 %d 个节点\n", found)
				return nil
			}
		}
	}
}

func drain(sub pkgif.Subscription, found *int) {
	for {
		select {
		case ev := <-sub.Out():
			printEvent(ev.(types.EvtPeerDiscovered))
			*found++
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}

func printEvent(evt types.EvtPeerDiscovered) {
	src := evt.Source
	if src == "" {
		src = "-"
	}
	fmt.Printf("%s\t%s\t%s\n", evt.ContentID.ShortString(), evt.Peer.Addr(), src)
}

func setupLogging() {
	if *logLevel != "" {
		if level, ok := log.ParseLevel(*logLevel); ok {
			log.SetLevel(level)
		} else {
			fmt.Fprintf(os.Stderr, "警告: 未知日志级别 %q\n", *logLevel)
		}
	}
	if *logJSON {
		log.SetJSON(true)
	}
}

func parseContents(values []string) ([]types.ContentID, error) {
	ids := make([]types.ContentID, 0, len(values))
	for _, v := range values {
		id, err := types.ContentIDFromHex(v)
		if err != nil {
			return nil, fmt.Errorf("内容 ID %q: %w", v, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// buildOptions 根据命令行参数构建节点选项
func buildOptions(exec *source.Executor) ([]btpeer.Option, error) {
	var opts []btpeer.Option
	if *configFile != "" {
		opts = append(opts, btpeer.WithConfigFile(*configFile))
	}
	if *port >= 0 {
		opts = append(opts, btpeer.WithListenPort(*port))
	}
	if *encryption != "" {
		p, err := types.ParseEncryptionPolicy(*encryption)
		if err != nil {
			return nil, err
		}
		opts = append(opts, btpeer.WithEncryptionPolicy(p))
	}
	opts = append(opts, btpeer.WithDHT(*enableDHT), btpeer.WithNAT(*enableNAT))

	if len(peers) > 0 {
		static := make([]*types.Peer, 0, len(peers))
		for _, addr := range peers {
			p, err := types.ParsePeer(addr)
			if err != nil {
				return nil, err
			}
			static = append(static, p)
		}
		logger.Info("使用静态节点", "count", len(static))
		opts = append(opts, btpeer.WithPeerSourceFactory(
			source.NewMemoizedFactory("static", func(types.ContentID) pkgif.PeerSource {
				return source.NewScheduled("static", source.NewStaticCollector(static...), exec)
			}),
		))
	}
	return opts, nil
}
