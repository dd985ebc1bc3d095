package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"socialnet/internal/config"
	"socialnet/internal/logging"
	"socialnet/internal/relation"
	"socialnet/internal/storage"
)

const exitDuplicates = 2

func usage() {
	fmt.Println("使用方法:")
	fmt.Println("  ./admin check-pairs - 列出存在多条关系记录的用户对")
	fmt.Println("  ./admin show-relations <userID> - 显示用户的所有关系及其状态")
	fmt.Println("  ./admin mutual <userA> <userB> - 显示两个用户的共同好友数量")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法加载配置: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法初始化日志: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// 数据库连接
	sqlDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer sqlDB.Close()

	db, err := storage.OpenWithConn(sqlDB, cfg.Database.LogSQL, logger)
	if err != nil {
		logger.Fatal("Failed to create GORM instance", zap.Error(err))
	}
	repo := storage.NewGormUserRelationRepository(db)
	ctx := context.Background()

	// 执行指定的命令
	switch os.Args[1] {
	case "check-pairs":
		found, err := checkPairs(ctx, repo, os.Stdout)
		if err != nil {
			logger.Fatal("检查用户对失败", zap.Error(err))
		}
		if found {
			os.Exit(exitDuplicates)
		}

	case "show-relations":
		userID := parseID(logger, os.Args, 2, "需要指定用户ID")
		if err := showRelations(ctx, repo, userID, os.Stdout); err != nil {
			logger.Fatal("获取关系失败", zap.Error(err))
		}

	case "mutual":
		userA := parseID(logger, os.Args, 2, "需要指定两个用户ID")
		userB := parseID(logger, os.Args, 3, "需要指定两个用户ID")
		if err := showMutual(ctx, repo, userA, userB, os.Stdout); err != nil {
			logger.Fatal("计算共同好友失败", zap.Error(err))
		}

	default:
		usage()
		logger.Fatal("未知命令", zap.String("command", os.Args[1]))
	}
}

func parseID(logger *zap.Logger, args []string, pos int, missing string) uint {
	if len(args) <= pos {
		logger.Fatal(missing)
	}
	id, err := strconv.ParseUint(args[pos], 10, 32)
	if err != nil || id == 0 {
		logger.Fatal("无效的用户ID", zap.String("value", args[pos]))
	}
	return uint(id)
}

// checkPairs reports whether any unordered pair has more than one row.
func checkPairs(ctx context.Context, repo storage.UserRelationRepository, out io.Writer) (bool, error) {
	pairs, err := repo.FindDuplicatePairs(ctx)
	if err != nil {
		return false, err
	}
	if len(pairs) == 0 {
		fmt.Fprintln(out, "未发现重复的用户对")
		return false, nil
	}
	fmt.Fprintf(out, "发现 %d 个重复的用户对:\n", len(pairs))
	fmt.Fprintln(out, "--------------------------------------")
	for _, p := range pairs {
		fmt.Fprintf(out, "用户 %d <-> 用户 %d: %d 条记录\n", p.UserLow, p.UserHigh, p.Rows)
	}
	return true, nil
}

func showRelations(ctx context.Context, repo storage.UserRelationRepository, userID uint, out io.Writer) error {
	rows, err := repo.ListTouching(ctx, userID)
	if err != nil {
		return err
	}
	idx := relation.NewIndex(userID, rows)

	fmt.Fprintf(out, "用户 %d 的关系 (%d 条):\n", userID, len(rows))
	fmt.Fprintln(out, "--------------------------------------")
	for _, rel := range rows {
		other := rel.UserAID
		if other == userID {
			other = rel.UserBID
		}
		status, err := idx.Status(other)
		label := status.String()
		if err != nil {
			label = fmt.Sprintf("%s (%v)", label, err)
		}
		fmt.Fprintf(out, "#%d %d -> %d, 已通过: %v, 状态: %d %s, 创建时间: %s\n",
			rel.ID, rel.UserAID, rel.UserBID, rel.Approved, status, label,
			rel.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func showMutual(ctx context.Context, repo storage.UserRelationRepository, userA, userB uint, out io.Writer) error {
	if userA == userB {
		return errors.New("需要两个不同的用户ID")
	}
	rows, err := repo.ListApprovedTouching(ctx, []uint{userA, userB})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "用户 %d 与用户 %d 的共同好友: %d\n", userA, userB, relation.NewFriendGraph(rows).Mutual(userA, userB))
	return nil
}
