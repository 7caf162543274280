package store

import (
	"fmt"

	"github.com/emrgen/linkstore/internal/config"
	"github.com/sirupsen/logrus"
)

// NewStore opens the store selected by the configured driver and migrates it.
func NewStore(cfg *config.Config) (Store, error) {
	var s Store
	switch cfg.DB.Driver {
	case config.DriverSqlite, config.DriverPostgres:
		s = NewGormStore(config.GetDb(cfg))
	case config.DriverBadger:
		bs, err := NewBadgerStore(cfg.DB.Path)
		if err != nil {
			return nil, err
		}
		s = bs
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.DB.Driver)
	}

	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}

	logrus.Infof("opened %s store", cfg.DB.Driver)

	return s, nil
}
