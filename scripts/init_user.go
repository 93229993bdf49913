package main

import (
	"fmt"
	"log"
	"os"

	"github.com/intakeplan/internal/config"
	"github.com/intakeplan/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("配置读取失败:", err)
	}

	// 初始化数据库
	if err := db.Init(db.Options{Driver: cfg.DatabaseDriver, Path: cfg.DatabasePath, DSN: cfg.DatabaseDSN}); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	// 检查是否已存在用户
	var count int64
	db.DB.Model(&db.User{}).Count(&count)
	if count > 0 {
		fmt.Println("用户已存在，无需初始化")
		return
	}

	username := cfg.SuperRootUserName
	if username == "" {
		username = "admin"
	}
	password := cfg.SuperRootPassword
	if password == "" {
		password = "admin123" // 默认密码
	}

	if err := db.EnsureUser(db.DB, username, password); err != nil {
		log.Fatal("创建用户失败:", err)
	}

	fmt.Println("默认用户创建成功")
	fmt.Println("用户名:", username)
	if cfg.SuperRootPassword == "" {
		fmt.Fprintln(os.Stderr, "使用默认密码 admin123，请尽快修改")
	}
}
