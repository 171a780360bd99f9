package models

import (
	"bitbucket.org/mmdatafocus/receivables_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&User{},
		&Account{},
		&Contact{},
		&Invoice{},
		&InvoiceAgingSnapshot{},
		&EmailTemplate{},
		&EmailActivity{},
	)
}
