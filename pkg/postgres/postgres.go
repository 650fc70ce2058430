package postgres

import (
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

type Config struct {
	URL             string `split_words:"true" required:"true"`
	MaxOpenConns    int    `split_words:"true" default:"10"`
	MaxIdleConns    int    `split_words:"true" default:"5"`
	ConnMaxLifetime int    `split_words:"true" default:"300"`
}

func (c *Config) New() (*sql.DB, error) {
	db, err := sql.Open("postgres", c.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetime) * time.Second)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func (c *Config) MustNew() *sql.DB {
	db, err := c.New()
	if err != nil {
		panic(err)
	}

	return db
}
