package catalog

import (
	"strconv"
	"strings"

	"github.com/ankur-anand/xlogview/pkg/xlog"
)

// Resolver turns relation identifiers into display labels.
type Resolver interface {
	Label(node xlog.RelFileNode, raw bool) string
}

// compile time check.
var _ Resolver = (*Names)(nil)

// Names resolves labels from in-memory maps. A nil *Names renders numbers
// only.
type Names struct {
	databases  map[uint32]string
	byFilenode map[uint32]string
	byOID      map[uint32]string
}

func NewNames(s *Snapshot) *Names {
	n := &Names{
		databases:  make(map[uint32]string, len(s.Databases)),
		byFilenode: make(map[uint32]string, len(s.Relations)),
		byOID:      make(map[uint32]string, len(s.Relations)),
	}
	for _, db := range s.Databases {
		n.databases[db.OID] = db.Name
	}
	for _, rel := range s.Relations {
		n.byFilenode[rel.RelFileNode] = rel.Name
		n.byOID[rel.OID] = rel.Name
	}
	return n
}

// Len returns the number of known databases and relations.
func (n *Names) Len() (databases, relations int) {
	if n == nil {
		return 0, 0
	}
	return len(n.databases), len(n.byFilenode)
}

func (n *Names) database(oid uint32) (string, bool) {
	if n == nil {
		return "", false
	}
	name, ok := n.databases[oid]
	return name, ok
}

// relation looks the relnode up by filenode first, then by OID. The second
// result is true for an OID match, which is only a guess.
func (n *Names) relation(relNode uint32) (name string, byOID bool, ok bool) {
	if n == nil {
		return "", false, false
	}
	if name, ok := n.byFilenode[relNode]; ok {
		return name, false, true
	}
	if name, ok := n.byOID[relNode]; ok {
		return name, true, true
	}
	return "", false, false
}

// Label renders "db:rel", or "spc/db(dbname)/rel(relname)" when raw is set.
// Unknown parts fall back to their number and OID matches carry a "*".
func (n *Names) Label(node xlog.RelFileNode, raw bool) string {
	dbName, dbOK := n.database(node.DBNode)
	relName, byOID, relOK := n.relation(node.RelNode)
	if byOID {
		relName += "*"
	}

	if !raw {
		db := strconv.FormatUint(uint64(node.DBNode), 10)
		if dbOK {
			db = dbName
		}
		rel := strconv.FormatUint(uint64(node.RelNode), 10)
		if relOK {
			rel = relName
		}
		return db + ":" + rel
	}

	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(node.SpcNode), 10))
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatUint(uint64(node.DBNode), 10))
	if dbOK {
		sb.WriteString("(" + dbName + ")")
	}
	sb.WriteByte('/')
	sb.WriteString(strconv.FormatUint(uint64(node.RelNode), 10))
	if relOK {
		sb.WriteString("(" + relName + ")")
	}
	return sb.String()
}
