package database

import (
	"database/sql"
	stdlog "log"

	"github.com/tugsousa/fundfolio/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if _, err := DB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		stdlog.Fatalf("failed to enable foreign keys: %v", err)
	}

	if logger.L != nil {
		logger.L.Info("Ensuring database schema", "databasePath", databasePath)
	} else {
		stdlog.Println("Ensuring database schema for:", databasePath)
	}

	// Monetary and share columns are TEXT holding decimal strings; floats
	// never reach storage. Day-keyed dates are YYYY-MM-DD TEXT.
	createTableStatement := `
	CREATE TABLE IF NOT EXISTS directions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		expected_amount TEXT NOT NULL DEFAULT '0',
		actual_amount TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS funds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		confirm_days INTEGER NOT NULL DEFAULT 1,
		buy_fee_rate TEXT NOT NULL DEFAULT '0',
		sell_fee_rate TEXT NOT NULL DEFAULT '0',
		latest_net_worth TEXT,
		latest_net_worth_date TEXT,
		net_worth_updated_at TEXT,
		FOREIGN KEY(direction_id) REFERENCES directions(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('BUY','SELL','DIVIDEND')),
		amount TEXT NOT NULL,
		shares TEXT NOT NULL DEFAULT '0',
		price TEXT NOT NULL DEFAULT '0',
		fee TEXT NOT NULL DEFAULT '0',
		date TEXT NOT NULL,
		dividend_reinvest INTEGER NOT NULL DEFAULT 0,
		remark TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(fund_id) REFERENCES funds(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS pending_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('BUY','SELL')),
		apply_date TEXT NOT NULL,
		apply_amount TEXT NOT NULL DEFAULT '0',
		apply_shares TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'WAITING' CHECK (status IN ('WAITING','CONFIRMED')),
		FOREIGN KEY(fund_id) REFERENCES funds(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS planned_purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fund_id INTEGER NOT NULL,
		planned_amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING' CHECK (status IN ('PENDING','COMPLETED')),
		created_at TEXT NOT NULL,
		purchased_at TEXT,
		FOREIGN KEY(fund_id) REFERENCES funds(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS category_targets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		target_percent TEXT NOT NULL,
		FOREIGN KEY(direction_id) REFERENCES directions(id) ON DELETE CASCADE,
		UNIQUE(direction_id, category)
	);

	CREATE TABLE IF NOT EXISTS direction_daily_profits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		direction_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		daily_profit TEXT NOT NULL,
		cumulative_profit TEXT NOT NULL,
		cumulative_profit_rate TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		current_value TEXT NOT NULL,
		FOREIGN KEY(direction_id) REFERENCES directions(id) ON DELETE CASCADE,
		UNIQUE(direction_id, date)
	);

	CREATE TABLE IF NOT EXISTS holidays (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL CHECK (type IN ('HOLIDAY','WORKDAY')),
		remark TEXT NOT NULL DEFAULT ''
	);
	`

	if _, err = DB.Exec(createTableStatement); err != nil {
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
