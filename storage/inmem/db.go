// Package inmem provides map-backed repositories mirroring the mongodb
// package's semantics; used by tests and local development without a database.
package inmem

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kazimoto/mipango/core/chat"
	"github.com/kazimoto/mipango/core/event"
	"github.com/kazimoto/mipango/core/plan"
	"github.com/kazimoto/mipango/core/policy"
	"github.com/kazimoto/mipango/core/user"
)

type DB struct {
	mu            sync.RWMutex
	users         map[string]user.User
	plans         map[string]plan.ProgramPlan
	events        map[string]event.Event
	policies      map[string]policy.Policy
	conversations map[string]chat.Conversation
}

func Open() *DB {
	return &DB{
		users:         make(map[string]user.User),
		plans:         make(map[string]plan.ProgramPlan),
		events:        make(map[string]event.Event),
		policies:      make(map[string]policy.Policy),
		conversations: make(map[string]chat.Conversation),
	}
}

// newID mints Mongo-style hex IDs so inmem and mongodb stores are interchangeable.
func newID() string {
	return primitive.NewObjectID().Hex()
}
