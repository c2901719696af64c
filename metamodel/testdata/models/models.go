package models

import "time"

type Person struct {
	ID      int64     `db:"id,primaryKey"`
	Name    string    `db:"name"`
	Address Address   `relation:"embedded"`
	Friend  *Person   `relation:"manyToOne"`
	Created time.Time `db:"created_at"`
}

type Address struct {
	Street string `db:"street"`
	City   string `db:"city"`
}

type Document struct {
	ID       int64               `db:"id,primaryKey"`
	Name     string              `db:"name,naturalId"`
	Owner    *Person             `relation:"manyToOne,required"`
	Versions []*Version          `relation:"oneToMany,mappedBy:document,collection:list"`
	Partners []*Person           `relation:"manyToMany"`
	Contacts map[string]*Person  `relation:"oneToMany"`
	Tags     []string            `relation:"elementCollection"`
	Cache    map[string]struct{} `db:"-"`
}

type Version struct {
	ID       int64     `db:"id,primaryKey"`
	Number   int       `db:"number"`
	Document *Document `relation:"belongsTo"`
}

type SpecialDocument struct {
	Document
	Secret string `db:"secret"`
}

// not a model: no tags
type helper struct {
	n int
}
