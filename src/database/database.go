package database

import (
	"database/sql"
	stdlog "log"

	"github.com/kaizhangyahoo/st-my-investment/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	} else {
		stdlog.Println("Checking database migrations for:", databasePath)
	}
	migrateInstrumentRecords()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS instrument_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		date TEXT,
		display_name TEXT NOT NULL,
		ticker TEXT,
		direction TEXT,
		quantity REAL,
		price REAL,
		currency TEXT,
		amount REAL,
		hash_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(hash_id)
	);

	CREATE TABLE IF NOT EXISTS resolution_audit (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		display_name TEXT NOT NULL,
		ticker TEXT NOT NULL,
		stage TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	} else {
		stdlog.Println("Database tables ensured/created.")
	}
}

// migrateInstrumentRecords backfills columns added after early deployments.
// The table may predate the ticker/hash columns; everything else is covered
// by CREATE TABLE IF NOT EXISTS above.
func migrateInstrumentRecords() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='instrument_records'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			if logger.L != nil {
				logger.L.Info("'instrument_records' table does not exist, no migration needed as table will be created.")
			} else {
				stdlog.Println("'instrument_records' table does not exist, no migration needed as table will be created.")
			}
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'instrument_records' table", "error", err)
		} else {
			stdlog.Printf("Error checking for 'instrument_records' table: %v", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(instrument_records)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error querying table schema for 'instrument_records'", "error", err)
		} else {
			stdlog.Printf("Error querying table schema for 'instrument_records': %v", err)
		}
		return
	}
	defer rows.Close()

	columnExists := make(map[string]bool)
	for rows.Next() {
		var cid, pk int
		var name, dataType string
		var notnullVal int
		var dfltValue interface{}

		if err := rows.Scan(&cid, &name, &dataType, &notnullVal, &dfltValue, &pk); err != nil {
			if logger.L != nil {
				logger.L.Error("Error scanning column info for 'instrument_records'", "error", err)
			} else {
				stdlog.Printf("Error scanning column info for 'instrument_records': %v", err)
			}
			return
		}
		columnExists[name] = true
	}
	if err = rows.Err(); err != nil {
		if logger.L != nil {
			logger.L.Error("Error iterating over column info for 'instrument_records'", "error", err)
		} else {
			stdlog.Printf("Error iterating over column info for 'instrument_records': %v", err)
		}
		return
	}

	if _, ok := columnExists["ticker"]; !ok {
		_, err := DB.Exec("ALTER TABLE instrument_records ADD COLUMN ticker TEXT")
		if err != nil {
			logger.L.Error("Error adding 'ticker' column to 'instrument_records' table", "error", err)
		} else {
			logger.L.Info("Added 'ticker' column to 'instrument_records' table")
		}
	}

	if _, ok := columnExists["hash_id"]; !ok {
		_, err := DB.Exec("ALTER TABLE instrument_records ADD COLUMN hash_id TEXT")
		if err != nil {
			logger.L.Error("Error adding 'hash_id' column to 'instrument_records' table", "error", err)
		} else {
			logger.L.Info("Added 'hash_id' column to 'instrument_records' table")
		}
	}
}
