package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stock_analysis/internal/api"
	"stock_analysis/internal/database"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stockdata",
	Short: "A 股日线缓存服务",
	Long:  `按需从 akshare 拉取股票与指数日线并缓存到数据库，提供查询、搜索与同步接口。`,
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "迁移表结构并回填拼音",
	RunE:  runMigrate,
}

var syncListCmd = &cobra.Command{
	Use:   "sync-list",
	Short: "同步 A 股股票列表",
	RunE:  runSyncList,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config/config.yaml", "配置文件路径")
	rootCmd.AddCommand(serveCmd, migrateCmd, syncListCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	// 设置 Gin 模式
	gin.SetMode(a.cfg.Server.Mode)

	handler := api.NewHandler(a.bars, a.stocks, func(ctx context.Context) error {
		return database.Ping(ctx, a.db)
	}, a.logger)
	r := api.NewRouter(a.cfg, handler, a.metrics, a.logger)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler: r,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("服务器启动", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		a.logger.Error("服务器启动失败", zap.Error(err))
		return err
	}

	a.logger.Info("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("服务器强制关闭", zap.Error(err))
		return err
	}

	a.logger.Info("服务器已关闭")
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	updated, err := a.stocks.BackfillPinyin(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("迁移完成，更新了 %d 条拼音数据\n", updated)
	return nil
}

func runSyncList(cmd *cobra.Command, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.stocks.SyncStockList(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("%s，共 %d 支股票，失败 %d 支\n", result.Message, result.TotalStocks, result.Failed)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
