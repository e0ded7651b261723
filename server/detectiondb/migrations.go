package detectiondb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE batch(
			id INTEGER PRIMARY KEY,
			received_at INT NOT NULL,
			timestamp TEXT NOT NULL
		);

		CREATE TABLE detection(
			id INTEGER PRIMARY KEY,
			batch_id INT NOT NULL,
			class TEXT NOT NULL,
			confidence REAL NOT NULL,
			hits INT NOT NULL,
			age INT NOT NULL,
			x1 INT NOT NULL,
			y1 INT NOT NULL,
			x2 INT NOT NULL,
			y2 INT NOT NULL,
			verified BOOLEAN NOT NULL
		);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE INDEX idx_detection_batch_id ON detection(batch_id);
		CREATE INDEX idx_detection_class ON detection(class);
	`))

	return migs
}
