package inmemdb

import (
	"sync"

	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/notify"
	"github.com/DexterJames00/EduTrack360/core/school"
)

type (
	// DB is a mutex-guarded in-memory store with the same uniqueness rules as the SQL schema.
	DB struct {
		school     *schoolTable
		channel    *channelTable
		credential *credentialTable
		outbox     *outboxTable
	}

	schoolTable struct {
		sync.RWMutex
		schools  map[string]school.School  // {id: School}
		students map[string]school.Student // {id: Student}
	}

	channelTable struct {
		sync.RWMutex
		byStudent map[string]channel.Link
		byChannel map[string]string // {channelID: studentID}
	}

	credentialTable struct {
		sync.RWMutex
		table    map[string]credential.Credential // {id: Credential}
		activeID string
	}

	outboxTable struct {
		sync.RWMutex
		table map[outboxKey]notify.Record
	}

	outboxKey struct {
		studentID string
		eventKey  string
	}
)

func Open() *DB {
	return &DB{
		school: &schoolTable{
			schools:  make(map[string]school.School),
			students: make(map[string]school.Student),
		},
		channel: &channelTable{
			byStudent: make(map[string]channel.Link),
			byChannel: make(map[string]string),
		},
		credential: &credentialTable{table: make(map[string]credential.Credential)},
		outbox:     &outboxTable{table: make(map[outboxKey]notify.Record)},
	}
}
