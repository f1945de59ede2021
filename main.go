package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ByLCY/quotecard/background"
	"github.com/ByLCY/quotecard/card"
	"github.com/ByLCY/quotecard/layout"
	canvasrenderer "github.com/ByLCY/quotecard/renderer/canvas"
	"github.com/ByLCY/quotecard/server"
)

const defaultPort = "10000"

type options struct {
	addr         string
	stylePath    string
	assetsDir    string
	unsplashKey  string
	unsplashURL  string
	fetchTimeout time.Duration
	logLevel     string

	// 单次渲染模式
	text    string
	author  string
	keyword string
	out     string
	debug   string
}

func main() {
	opts := parseFlags(os.Args[1:])

	logger := newLogger(opts.logLevel)
	gen, err := newGenerator(opts, logger)
	if err != nil {
		log.Fatalf("初始化失败: %v", err)
	}

	if opts.text != "" || opts.author != "" {
		if err := renderOnce(context.Background(), gen, opts); err != nil {
			log.Fatalf("生成卡片失败: %v", err)
		}
		fmt.Printf("已生成卡片：%s\n", opts.out)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx, server.Config{Addr: opts.addr}, server.New(gen, logger), logger); err != nil {
		log.Fatalf("服务退出: %v", err)
	}
}

func parseFlags(args []string) options {
	fs := flag.NewFlagSet("quotecard", flag.ExitOnError)
	var o options
	port := envOr("PORT", defaultPort)
	fs.StringVar(&o.addr, "addr", "0.0.0.0:"+port, "监听地址（默认取 PORT 环境变量）")
	fs.StringVar(&o.stylePath, "style", os.Getenv("QUOTECARD_STYLE"), "卡片样式表路径，留空使用默认样式")
	fs.StringVar(&o.assetsDir, "assets", ".", "字体等相对路径资源的根目录")
	fs.StringVar(&o.unsplashKey, "unsplash-key", os.Getenv("UNSPLASH_ACCESS_KEY"), "Unsplash 访问密钥，留空时使用纯色背景")
	fs.StringVar(&o.unsplashURL, "unsplash-url", envOr("UNSPLASH_API_URL", background.DefaultUnsplashURL), "Unsplash API 根地址")
	fs.DurationVar(&o.fetchTimeout, "fetch-timeout", 0, "背景获取超时，0 表示不限")
	fs.StringVar(&o.logLevel, "log-level", envOr("LOG_LEVEL", "info"), "日志级别 debug/info/warn/error")
	fs.StringVar(&o.text, "text", "", "单次渲染：引文内容")
	fs.StringVar(&o.author, "author", "", "单次渲染：作者")
	fs.StringVar(&o.keyword, "keyword", "", "单次渲染：背景关键词")
	fs.StringVar(&o.out, "out", "output/quote.png", "单次渲染：PNG 输出路径")
	fs.StringVar(&o.debug, "debug", "", "单次渲染：排版调试 JSON 输出路径")
	fs.Parse(args)
	return o
}

// newGenerator 串联样式、字体渲染器与背景来源。
func newGenerator(o options, logger *slog.Logger) (*card.Generator, error) {
	style := layout.DefaultStyle()
	if o.stylePath != "" {
		s, err := layout.LoadStyle(o.stylePath)
		if err != nil {
			return nil, err
		}
		style = s
	}

	r := canvasrenderer.NewRendererWithOptions(canvasrenderer.Options{BaseDir: o.assetsDir, Logger: logger})
	gen := &card.Generator{Style: style, Typesetter: r, Renderer: r, Logger: logger}
	if o.unsplashKey == "" {
		logger.Warn("UNSPLASH_ACCESS_KEY 未设置，背景将使用纯色填充")
		return gen, nil
	}
	gen.Backgrounds = &background.Unsplash{
		AccessKey: o.unsplashKey,
		BaseURL:   o.unsplashURL,
		Client:    &http.Client{Timeout: o.fetchTimeout},
	}
	return gen, nil
}

func renderOnce(ctx context.Context, gen *card.Generator, o options) error {
	out, err := gen.Generate(ctx, card.Request{Text: o.text, Author: o.author, Keyword: o.keyword})
	if err != nil {
		return err
	}
	if o.debug != "" {
		if err := layout.WriteDebugJSON(out.Layout, o.debug); err != nil {
			return fmt.Errorf("输出调试 JSON 失败: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(o.out), 0o755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(o.out, out.PNG, 0o644); err != nil {
		return fmt.Errorf("写入 PNG 文件失败: %w", err)
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
