package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/devicekeeper/internal/dbx"
	"github.com/dmitrijs2005/devicekeeper/internal/server/repositories/devices"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Devices(db dbx.DBTX) devices.Repository
}
