package model

import "gorm.io/gorm"

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Record{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&ClusterPosition{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&LinkTree{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&LinkTreeEntry{}); err != nil {
		return err
	}

	return nil
}
