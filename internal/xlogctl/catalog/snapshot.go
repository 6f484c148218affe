package catalog

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Database is one pg_database row.
type Database struct {
	OID  uint32 `toml:"oid" json:"oid"`
	Name string `toml:"name" json:"name"`
}

// Relation is one pg_class row. RelFileNode differs from OID once the
// relation has been rewritten.
type Relation struct {
	RelFileNode uint32 `toml:"relfilenode" json:"relfilenode"`
	OID         uint32 `toml:"oid" json:"oid"`
	Name        string `toml:"name" json:"name"`
}

// Snapshot is an offline copy of the catalog rows needed to label relations.
//
//	[[database]]
//	oid = 5
//	name = "postgres"
//
//	[[relation]]
//	relfilenode = 16384
//	oid = 16384
//	name = "accounts"
type Snapshot struct {
	Databases []Database `toml:"database" json:"databases"`
	Relations []Relation `toml:"relation" json:"relations"`
}

func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := toml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse catalog snapshot: %w", err)
	}
	return &s, nil
}
