package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

var tables = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id {{id}} PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		username VARCHAR(100) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		phone VARCHAR(20),
		address VARCHAR(500),
		bio VARCHAR(500),
		profile_image VARCHAR(500),
		is_admin {{bool}} NOT NULL DEFAULT FALSE,
		is_verified {{bool}} NOT NULL DEFAULT FALSE,
		is_deleted {{bool}} NOT NULL DEFAULT FALSE,
		rating {{float}} NOT NULL DEFAULT 0,
		total_sales INTEGER NOT NULL DEFAULT 0,
		last_login_at {{ts}},
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS sessions (
		id {{id}} PRIMARY KEY,
		user_id {{id}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token VARCHAR(512) NOT NULL UNIQUE,
		expires_at {{ts}} NOT NULL,
		ip_address VARCHAR(64),
		user_agent VARCHAR(512),
		created_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS login_attempts (
		id {{serial}},
		email VARCHAR(255) NOT NULL,
		ip_address VARCHAR(64) NOT NULL,
		success {{bool}} NOT NULL,
		fail_reason VARCHAR(50),
		attempted_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS products (
		id {{id}} PRIMARY KEY,
		title VARCHAR(200) NOT NULL,
		description TEXT NOT NULL,
		price BIGINT NOT NULL,
		category VARCHAR(30) NOT NULL,
		seller_id {{id}} NOT NULL REFERENCES users(id),
		stock INTEGER NOT NULL DEFAULT 1,
		location VARCHAR(100),
		is_negotiable {{bool}} NOT NULL DEFAULT FALSE,
		condition_status VARCHAR(20),
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		view_count INTEGER NOT NULL DEFAULT 0,
		rating {{float}} NOT NULL DEFAULT 0,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS product_images (
		id {{id}} PRIMARY KEY,
		product_id {{id}} NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		image_url VARCHAR(500) NOT NULL,
		display_order INTEGER NOT NULL DEFAULT 0,
		is_thumbnail {{bool}} NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS recently_viewed (
		user_id {{id}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id {{id}} NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		viewed_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, product_id)
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS search_history (
		id {{id}} PRIMARY KEY,
		user_id {{id}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		search_query VARCHAR(200) NOT NULL,
		result_count INTEGER NOT NULL,
		searched_at {{ts}} NOT NULL
	){{table_opts}}`,

	`CREATE TABLE IF NOT EXISTS cart_items (
		user_id {{id}} NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id {{id}} NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		quantity INTEGER NOT NULL,
		added_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL,
		PRIMARY KEY (user_id, product_id)
	){{table_opts}}`,
}

var indexes = [][3]string{
	{"idx_sessions_user_id", "sessions", "user_id"},
	{"idx_sessions_expires_at", "sessions", "expires_at"},
	{"idx_login_attempts_email", "login_attempts", "email"},
	{"idx_login_attempts_ip", "login_attempts", "ip_address"},
	{"idx_login_attempts_attempted_at", "login_attempts", "attempted_at"},
	{"idx_products_seller_id", "products", "seller_id"},
	{"idx_products_status_created", "products", "status, created_at"},
	{"idx_products_category", "products", "category"},
	{"idx_product_images_product_id", "product_images", "product_id"},
	{"idx_search_history_user_id", "search_history", "user_id"},
}

// InitTables creates all tables and indexes if they don't exist.
func (db *DB) InitTables(ctx context.Context) error {
	types := db.dialect.columnTypes()
	for _, ddl := range tables {
		if _, err := db.pool.ExecContext(ctx, types.Replace(ddl)); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	for _, idx := range indexes {
		_, err := db.pool.ExecContext(ctx, db.dialect.createIndex(idx[0], idx[1], idx[2]))
		if err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("create index %s: %w", idx[0], err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == 1061
}
