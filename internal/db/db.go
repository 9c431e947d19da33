package db

import (
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/derslik/tutor/internal/conversation"
	"github.com/derslik/tutor/internal/models"
	"github.com/derslik/tutor/internal/turn"
)

// Connect opens the database named by driver ("sqlite" or "mysql") and
// exits the process on failure, consistent with startup wiring.
func Connect(driver, dsn string) *gorm.DB {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		log.Fatalf("db connect (%s): %v", driver, err)
	}
	return gdb
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(&models.User{}, &conversation.Turn{}, &turn.AskJob{})
}
