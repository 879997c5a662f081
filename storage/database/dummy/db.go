package dummydb

import (
	"sync"

	"github.com/Paul-Halasan/lasalumni-clone-no-git-sub002/core/user"
)

type (
	// DB is an in-memory store for tests and local demos.
	DB struct {
		user *userTable
	}

	userTable struct {
		sync.RWMutex
		table    map[string]*user.User
		profiles map[string]*user.AlumniProfile // {userID: profile}
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{
			table:    make(map[string]*user.User),
			profiles: make(map[string]*user.AlumniProfile),
		},
	}
}
