package main

import (
	"context"
	"fmt"
	"os"

	"talent-match-go/internal/config"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/tracing"

	"github.com/spf13/pflag"
)

// 命令行参数定义
var (
	configPath string
	command    string

	// ingest
	inputPath  string
	idStrategy string

	// ingest-jd / rerank
	jdFile string
	jobID  string
	topK   int

	// match
	outputCSV string

	// unify
	fromPrefix string
	toID       string
	deleteOld  bool
)

func main() {
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径 (留空使用默认值+环境变量)")
	pflag.StringVar(&command, "cmd", "", "执行的命令: ingest, ingest-jd, match, rerank, list, unify")

	pflag.StringVarP(&inputPath, "input", "i", "", "简历分块JSON文件或目录 (ingest)")
	pflag.StringVar(&idStrategy, "id-strategy", "content_hash", "候选人ID策略: uuid, email, name, content_hash (ingest)")

	pflag.StringVar(&jdFile, "jd", "", "岗位描述JSON文件 (ingest-jd)")
	pflag.StringVar(&jobID, "job-id", "", "岗位ID (rerank)")
	pflag.IntVar(&topK, "top-k", 0, "相似度查询返回数量，0表示使用配置值 (rerank)")

	pflag.StringVarP(&outputCSV, "output", "o", "resume_jd_scores.csv", "匹配结果CSV输出路径 (match)")

	pflag.StringVar(&fromPrefix, "from-prefix", "", "待归并的历史ID前缀 (unify)")
	pflag.StringVar(&toID, "to-id", "", "归并目标的规范候选人ID (unify)")
	pflag.BoolVar(&deleteOld, "delete-old", false, "归并后删除旧向量，需要交互确认 (unify)")

	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("配置校验失败")
	}

	ctx := logger.WithContext(context.Background())

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracerProvider(ctx, "talent-match-go", cfg.Tracing.Endpoint)
		if err != nil {
			logger.Fatal().Err(err).Msg("初始化链路追踪失败")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("关闭TracerProvider失败")
			}
		}()
	}

	switch command {
	case "ingest":
		handleIngestCommand(ctx, cfg)
	case "ingest-jd":
		handleIngestJDCommand(ctx, cfg)
	case "match":
		handleMatchCommand(ctx, cfg)
	case "rerank":
		handleRerankCommand(ctx, cfg)
	case "list":
		handleListCommand(ctx, cfg)
	case "unify":
		handleUnifyCommand(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "错误: 未知命令 '%s'。支持的命令: ingest, ingest-jd, match, rerank, list, unify\n", command)
		pflag.Usage()
		os.Exit(1)
	}
}
