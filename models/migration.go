package models

import (
	"log"

	"github.com/mmdatafocus/audit_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&LedgerTransaction{}, &AccountClassification{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
