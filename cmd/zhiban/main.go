// zhiban 值班排班命令行工具与HTTP服务入口。
//
// 子命令:
//
//	serve     启动HTTP服务（排班、协作、归档）
//	generate  从配置文件生成值班表并保存为文档
//	verify    校验值班表文档是否满足全部约束
//	holidays  列出内置节假日方案
//	version   打印版本信息
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhiban/zhiban/pkg/backup"
	"github.com/zhiban/zhiban/pkg/holiday"
	"github.com/zhiban/zhiban/pkg/model"
	"github.com/zhiban/zhiban/pkg/scheduler"
)

// 构建信息，通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "zhiban",
		Short: "值班排班引擎与协作服务",
		Long:  "zhiban 根据人员约束生成公平的值班表，提供校验、换班建议与多人协作编辑能力。",
	}

	var (
		outputPath    string
		holidayPreset string
		timeout       time.Duration
		parallelism   int
	)
	generateCmd := &cobra.Command{
		Use:          "generate <config.json>",
		Short:        "从配置文件生成值班表",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(args[0], outputPath, holidayPreset, timeout, parallelism)
		},
	}
	generateCmd.Flags().StringVarP(&outputPath, "output", "o", "schedule.json", "输出文档路径")
	generateCmd.Flags().StringVar(&holidayPreset, "holidays", "", "节假日方案，可用值见 zhiban holidays")
	generateCmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "生成超时")
	generateCmd.Flags().IntVar(&parallelism, "parallel", 0, "初始阶段并行度，0 取CPU核数")

	verifyCmd := &cobra.Command{
		Use:          "verify <schedule.json>",
		Short:        "校验值班表文档",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0])
		},
	}

	holidaysCmd := &cobra.Command{
		Use:   "holidays",
		Short: "列出内置节假日方案",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range holiday.Presets() {
				fmt.Println(name)
			}
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "打印版本信息",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("zhiban %s\n", Version)
			fmt.Printf("构建时间: %s\n", BuildTime)
			fmt.Printf("提交: %s\n", GitCommit)
		},
	}

	rootCmd.AddCommand(newServeCmd(), generateCmd, verifyCmd, holidaysCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGenerate(configPath, outputPath, holidayPreset string, timeout time.Duration, parallelism int) error {
	cfg, err := loadConfigFile(configPath)
	if err != nil {
		return err
	}

	if holidayPreset != "" {
		cal, ok := holiday.Get(holidayPreset)
		if !ok {
			return fmt.Errorf("未知的节假日方案: %s", holidayPreset)
		}
		if err := cal.ApplyTo(cfg); err != nil {
			return fmt.Errorf("应用节假日方案失败: %w", err)
		}
		fmt.Printf("已应用节假日方案 %s\n", holidayPreset)
	}

	fmt.Printf("排班周期 %s ~ %s，人员 %d 名，每日 %d 班\n\n",
		cfg.StartDate, cfg.EndDate, len(cfg.Workers), cfg.NumShifts)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	engine := scheduler.NewEngine(parallelism)
	result, err := engine.Generate(ctx, cfg)
	if err != nil {
		return fmt.Errorf("生成失败: %w", err)
	}

	printResult(cfg, result, time.Since(start))

	doc := backup.New(cfg, result.Schedule)
	if err := backup.Save(outputPath, doc); err != nil {
		return fmt.Errorf("保存文档失败: %w", err)
	}
	fmt.Printf("\n值班表已保存到 %s\n", outputPath)

	if result.Cancelled {
		return fmt.Errorf("生成超时，输出为截止时的最优草稿")
	}
	return nil
}

func runVerify(path string) error {
	doc, err := backup.Load(path)
	if err != nil {
		return fmt.Errorf("读取文档失败: %w", err)
	}

	report, err := scheduler.Check(doc.Config(), doc.Schedule)
	if err != nil {
		return fmt.Errorf("校验失败: %w", err)
	}

	for _, v := range report.Violations {
		fmt.Printf("✗ %s 班次%d [%s] %s\n", v.Date, v.Post, v.Kind, v.Message)
	}

	if !report.Valid {
		fmt.Printf("\n评分 %.1f\n", report.Score)
		return fmt.Errorf("值班表存在 %d 处违规", len(report.Violations))
	}
	fmt.Printf("✓ 值班表有效，评分 %.1f\n", report.Score)
	return nil
}

// loadConfigFile 在默认配置之上解析JSON配置文件
func loadConfigFile(path string) (*model.SchedulerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	cfg := model.DefaultSchedulerConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return cfg, nil
}

func printResult(cfg *model.SchedulerConfig, result *model.Result, elapsed time.Duration) {
	if s := result.Stats; s != nil {
		fmt.Printf("槽位 %d 个，已填 %d 个，覆盖率 %.1f%%，公平性 %.1f，耗时 %s\n",
			s.TotalSlots, s.FilledSlots, s.CoverageRate, s.FairnessScore, elapsed.Round(time.Millisecond))
		fmt.Println("\n人员工作量:")
		fmt.Printf("  %-10s %4s %4s %4s %4s %4s\n", "人员", "目标", "实际", "偏差", "周末", "节日")
		for _, w := range cfg.Workers {
			st := s.Workers[w.ID]
			if st == nil {
				continue
			}
			name := w.Name
			if name == "" {
				name = w.ID
			}
			fmt.Printf("  %-10s %4d %4d %+4d %4d %4d\n",
				name, st.Target, st.Assigned, st.Deviation, st.WeekendShifts, st.HolidayShifts)
		}
	}

	if len(result.UnresolvedMandatories) > 0 {
		fmt.Printf("\n⚠ 无法满足的强制值班 (%d):\n", len(result.UnresolvedMandatories))
		for _, um := range result.UnresolvedMandatories {
			fmt.Printf("  %s %s: %s\n", um.Date, um.WorkerID, um.Reason)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Printf("\n⚠ 约束违规 (%d):\n", len(result.Violations))
		for _, v := range result.Violations {
			fmt.Printf("  %s [%s] %s\n", v.Date, v.Kind, v.Message)
		}
	} else {
		fmt.Println("\n✓ 全部约束满足")
	}
}
