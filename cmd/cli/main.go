package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"negotiation-platform/internal/app"
	"negotiation-platform/internal/protocol"
	"negotiation-platform/internal/runtime/negotiation"
	"negotiation-platform/pkg/config"
)

// 本地演示：装配一场完整的买卖协商并打印成交记录，不依赖 HTTP 服务
func main() {
	var (
		configPath = flag.String("config", "configs/api.yaml", "API 配置文件路径")
		title      = flag.String("title", "Leica M3 Rangefinder Camera", "商品标题")
		price      = flag.Float64("price", 1800, "挂牌价（USD）")
	)
	flag.Parse()

	var cfg *config.Config
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
		cfg = loaded
	}

	bootstrap, err := app.NewBootstrap(cfg)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	ctx := context.Background()
	sess, err := bootstrap.Manager.Create(ctx, *title, *price)
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}
	if err := sess.Start(ctx); err != nil {
		log.Fatalf("开局失败: %v", err)
	}
	sess.Settle()

	// 持续续推直到成交或轮次预算耗尽
	for sess.Status() == negotiation.StatusActive {
		if err := sess.ContinueRound(ctx); err != nil {
			break
		}
		sess.Settle()
	}

	fmt.Printf("协商 %s（%s，挂牌 $%.2f）\n", sess.ID, sess.Topic, sess.ListedPrice)
	fmt.Printf("状态: %s，报价轮次: %d\n\n", sess.Status(), sess.RoundCount())
	for _, m := range sess.History() {
		line := fmt.Sprintf("[%s] %s -> %s", m.Type, m.From, m.To)
		if p, ok := m.Payload.Price(); ok {
			line += fmt.Sprintf(" $%.2f", p)
		}
		if m.Reasoning != "" {
			line += "  // " + m.Reasoning
		}
		fmt.Println(line)
	}

	if sess.Status() == negotiation.StatusCompleted {
		merged := sess.History()
		for i := len(merged) - 1; i >= 0; i-- {
			m := merged[i]
			if m.Type == protocol.TypeAcceptance || m.Type == protocol.TypeCommitment {
				if p, ok := m.Payload.Price(); ok {
					fmt.Printf("\n成交价: $%.2f\n", p)
				}
				break
			}
		}
	}
}
