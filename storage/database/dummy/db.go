package dummydb

import (
	"sync"

	"github.com/blockward/blockward/core/award"
	"github.com/blockward/blockward/core/user"
)

type (
	DB struct {
		user  *userTable
		award *awardTables
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	awardTables struct {
		sync.RWMutex
		categories  map[string]*award.Category
		credentials map[string]*award.Credential
		entries     []*award.PointEntry
		entryPK     int64
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		award: &awardTables{
			categories:  make(map[string]*award.Category),
			credentials: make(map[string]*award.Credential),
		},
	}
	return db, nil
}
