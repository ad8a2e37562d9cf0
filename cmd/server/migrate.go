package main

import (
	"fmt"

	"stenagrafist-go/internal/config"
	"stenagrafist-go/internal/model"
	"stenagrafist-go/pkg/database"
	"stenagrafist-go/pkg/log"
)

func migrate(cfg *config.Config) error {
	db, err := database.NewMySQL(cfg.Database.MySQL.DSN)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(&model.User{}, &model.Task{}); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	log.Info("数据库迁移完成")
	return nil
}
