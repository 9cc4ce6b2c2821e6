package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single pooled connection avoids SQLITE_BUSY
	// and keeps ":memory:" databases alive for the process lifetime.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}
	// Ensure users exist (idempotent; safe to run every start)
	if err := seedUsers(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

CREATE TABLE IF NOT EXISTS categories(
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_name_nocase ON categories(LOWER(name));

CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  category_id TEXT NOT NULL REFERENCES categories(id) ON DELETE RESTRICT,
  name TEXT NOT NULL,
  description TEXT,
  price NUMERIC NOT NULL CHECK (price >= 0),
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  images_json TEXT,
  active INTEGER NOT NULL DEFAULT 1,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_category ON products(category_id);
CREATE INDEX IF NOT EXISTS idx_products_name     ON products(LOWER(name));

CREATE TABLE IF NOT EXISTS color_variants(
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  name TEXT NOT NULL COLLATE NOCASE,
  code TEXT NOT NULL DEFAULT '',
  stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
  is_available INTEGER NOT NULL DEFAULT 1,
  PRIMARY KEY(product_id, name)
);

-- Backend carts belong to signed-in customers; guest carts live in the browser.
CREATE TABLE IF NOT EXISTS carts(
  id TEXT PRIMARY KEY,
  customer_id TEXT UNIQUE NOT NULL,
  updated_at TEXT
);

CREATE TABLE IF NOT EXISTS cart_items(
  cart_id    TEXT NOT NULL REFERENCES carts(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
  color_name TEXT NOT NULL DEFAULT '' COLLATE NOCASE,
  color_code TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  price_at_add NUMERIC NOT NULL,
  created_at TEXT,
  updated_at TEXT,
  PRIMARY KEY (cart_id, product_id, color_name)
);

CREATE TABLE IF NOT EXISTS orders(
  id TEXT PRIMARY KEY,
  customer_id TEXT,
  session_id TEXT,
  shipping_json TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending'
    CHECK (status IN ('pending','processing','shipped','delivered','cancelled')),
  total NUMERIC NOT NULL,
  client_total NUMERIC NOT NULL DEFAULT 0,
  needs_review INTEGER NOT NULL DEFAULT 0,
  stock_released INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_customer   ON orders(customer_id);

CREATE TABLE IF NOT EXISTS order_items(
  order_id  TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  line_no INTEGER NOT NULL,
  product_id TEXT NOT NULL,
  name TEXT NOT NULL,
  price NUMERIC NOT NULL,
  qty INTEGER NOT NULL CHECK (qty >= 1),
  color_name TEXT NOT NULL DEFAULT '',
  color_code TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (order_id, line_no)
);

-- Append-only; rows are never updated or deleted.
CREATE TABLE IF NOT EXISTS stock_adjustments(
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  color TEXT NOT NULL DEFAULT '',
  delta INTEGER NOT NULL,
  old_stock INTEGER NOT NULL,
  new_stock INTEGER NOT NULL,
  order_id TEXT NOT NULL DEFAULT '',
  reason TEXT NOT NULL,
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stock_adjustments_product ON stock_adjustments(product_id, created_at);
CREATE INDEX IF NOT EXISTS idx_stock_adjustments_order   ON stock_adjustments(order_id);

CREATE TABLE IF NOT EXISTS users(
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  password_hash TEXT NOT NULL,
  role TEXT NOT NULL CHECK (role IN ('CUSTOMER','ADMIN')),
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));

CREATE TABLE IF NOT EXISTS sessions(
  id TEXT PRIMARY KEY,               -- same value as the 'sid' cookie
  user_id TEXT NULL REFERENCES users(id) ON DELETE SET NULL,
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  last_seen  TEXT
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM categories`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo categories/products/variants")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO categories(id,name) VALUES
	  ('totes','Totes'),
	  ('backpacks','Backpacks'),
	  ('clutches','Clutches'),
	  ('travel','Travel Bags')`)

	tx.MustExec(`INSERT INTO products(id,category_id,name,description,price,stock,images_json) VALUES
	  ('tote-01','totes','Canvas Market Tote','Heavy cotton canvas with leather handles',1499.00,12,'["products/tote-01/main.jpg"]'),
	  ('pack-01','backpacks','Roll-top Backpack','Waxed canvas, fits a 15 inch laptop',3299.00,6,'["products/pack-01/main.jpg"]'),
	  ('clutch-01','clutches','Beaded Evening Clutch','Hand-beaded, detachable chain strap',999.00,3,'["products/clutch-01/main.jpg"]'),
	  ('duffel-01','travel','Weekender Duffel','Full-grain leather trim, shoe pocket',4599.00,0,'["products/duffel-01/main.jpg"]')`)

	tx.MustExec(`INSERT INTO color_variants(product_id,name,code,stock,is_available) VALUES
	  ('tote-01','Tan','#d2b48c',7,1),
	  ('tote-01','Black','#000000',5,1),
	  ('pack-01','Olive','#708238',4,1),
	  ('pack-01','Navy','#000080',2,1)`)

	return tx.Commit()
}

// seedUsers ensures demo customers and one ADMIN exist (idempotent).
func seedUsers(db *sqlx.DB) error {
	type u struct {
		ID, Email, Name, Role, Hash string
	}
	mk := func(id, email, name, role, raw string) u {
		h, _ := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
		return u{ID: id, Email: email, Name: name, Role: role, Hash: string(h)}
	}

	users := []u{
		mk("u-asha", "asha@satchel.test", "Asha", "CUSTOMER", "Passw0rd!"),
		mk("u-ravi", "ravi@satchel.test", "Ravi", "CUSTOMER", "Passw0rd!"),
		mk("u-admin", "admin@satchel.test", "Admin", "ADMIN", "Passw0rd!"),
	}

	tx := db.MustBegin()
	defer func() { _ = tx.Rollback() }()

	for _, x := range users {
		if _, err := tx.Exec(`
			INSERT INTO users(id,email,name,password_hash,role)
			VALUES(?,?,?,?,?)
			ON CONFLICT(email) DO NOTHING
		`, x.ID, x.Email, x.Name, x.Hash, x.Role); err != nil {
			return err
		}
	}

	return tx.Commit()
}
