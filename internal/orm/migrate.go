package orm

import "gorm.io/gorm"

// Models lists every table of the broker.
func Models() []interface{} {
	return []interface{}{
		&Session{},
		&Network{},
		&Account{},
		&Setting{},
		&Batch{},
		&Transaction{},
		&Token{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
