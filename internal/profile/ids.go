package profile

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// IDSource assigns ids to application records that arrive without one.
type IDSource interface {
	RecordID(group string, index int, record ApplicationRecord) string
}

// IDGenerator hands out ids for records created by a save. Each id combines a
// process-wide counter with a random suffix, so ids never repeat within a
// document even across restarts.
type IDGenerator struct {
	counter atomic.Uint64
}

func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.counter.Store(uint64(time.Now().UnixMilli()))
	return g
}

func (g *IDGenerator) RecordID(string, int, ApplicationRecord) string {
	n := g.counter.Add(1)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return "app_" + strconv.FormatUint(n, 36) + "_" + suffix
}

var legacyNamespace = uuid.MustParse("6f0d3c8e-5b7a-4e0c-9a51-2d9e8f4b7c10")

// LegacyIDs derives ids for stored records written before records carried
// one. The id depends only on the owner, group, position and name, so every
// read of the same stored document agrees until a save persists it.
type LegacyIDs string

func (l LegacyIDs) RecordID(group string, index int, record ApplicationRecord) string {
	key := strings.Join([]string{string(l), group, strconv.Itoa(index), record.Name}, "\x00")
	return "app_" + strings.ReplaceAll(uuid.NewSHA1(legacyNamespace, []byte(key)).String(), "-", "")[:20]
}
