package storage

// Catalog tables. The index tables (see index.Schema) share the same
// database file: that pairing is the unit of consistency, one transaction
// covers a row mutation and its index maintenance.
const Schema = `
CREATE TABLE IF NOT EXISTS user (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	email TEXT UNIQUE NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS book (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	isbn TEXT NOT NULL,
	title TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_book_title ON book(title);

CREATE TABLE IF NOT EXISTS author (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_author_name ON author(name);

CREATE TABLE IF NOT EXISTS author_book (
	author_id INTEGER NOT NULL REFERENCES author(id) ON DELETE CASCADE,
	book_id INTEGER NOT NULL REFERENCES book(id) ON DELETE CASCADE,
	PRIMARY KEY (author_id, book_id)
);

CREATE TABLE IF NOT EXISTS user_book (
	user_id INTEGER NOT NULL REFERENCES user(id) ON DELETE CASCADE,
	book_id INTEGER NOT NULL REFERENCES book(id) ON DELETE CASCADE,
	status TEXT NOT NULL DEFAULT 'recommended'
		CHECK (status IN ('recommended', 'reading', 'completed')),
	PRIMARY KEY (user_id, book_id)
);
`
