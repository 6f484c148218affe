package xlog

import (
	"fmt"
	"strings"
)

// RmgrID identifies the resource manager that produced a record.
type RmgrID uint8

const (
	RmgrXLOG RmgrID = iota
	RmgrXact
	RmgrSmgr
	RmgrCLOG
	RmgrDatabase
	RmgrTablespace
	RmgrMultiXact
	RmgrRelMap
	RmgrStandby
	RmgrHeap2
	RmgrHeap
	RmgrBtree
	RmgrHash
	RmgrGin
	RmgrGist
	RmgrSeq
	RmgrSPGist
	RmgrBRIN
	RmgrCommitTs
	RmgrReplOrigin
	RmgrGeneric
	RmgrLogicalMsg
)

// indexed by RmgrID.
var rmgrNames = [...]string{
	"XLOG", "Transaction", "Storage", "CLOG", "Database",
	"Tablespace", "MultiXact", "RelMap", "Standby", "Heap2",
	"Heap", "Btree", "Hash", "Gin", "Gist",
	"Seq", "SPGist", "BRIN", "CommitTS", "ReplOrigin",
	"Generic", "LogicalMsg",
}

// operation masks applied to xl_info.
const (
	heapOpMask uint8 = 0x70
	xactOpMask uint8 = 0xF0
)

const (
	heapInsert    uint8 = 0x00
	heapDelete    uint8 = 0x10
	heapUpdate    uint8 = 0x20
	heapHotUpdate uint8 = 0x40

	heap2Clean       uint8 = 0x00
	heap2FreezePage  uint8 = 0x10
	heap2MultiInsert uint8 = 0x40

	xactCommit  uint8 = 0x00
	xactAbort   uint8 = 0x10
	xactPrepare uint8 = 0x20
)

// NumRmgrs is the number of resource managers with a known name.
const NumRmgrs = len(rmgrNames)

func (id RmgrID) String() string {
	return NameOf(id)
}

// NameOf returns the resource manager name, or "Unknown (<id>)" for ids
// outside the table.
func NameOf(id RmgrID) string {
	if int(id) < len(rmgrNames) {
		return rmgrNames[id]
	}
	return fmt.Sprintf("Unknown (%d)", id)
}

// RmgrByName is the case-insensitive inverse of NameOf for known managers.
func RmgrByName(name string) (RmgrID, bool) {
	name = strings.TrimSpace(name)
	for i, n := range rmgrNames {
		if strings.EqualFold(n, name) {
			return RmgrID(i), true
		}
	}
	return 0, false
}

// OperationOf decodes the operation encoded in info for the heap, heap2 and
// transaction managers. Every other manager yields "".
//
// Transaction records are classified by the high nibble only, so COMMIT is
// reported whenever no other high bit is set. This is an approximation of
// the real xact info layout.
func OperationOf(id RmgrID, info uint8) string {
	switch id {
	case RmgrHeap:
		switch info & heapOpMask {
		case heapInsert:
			return "INSERT"
		case heapDelete:
			return "DELETE"
		case heapUpdate:
			return "UPDATE"
		case heapHotUpdate:
			return "HOT_UPDATE"
		}
	case RmgrHeap2:
		switch info & heapOpMask {
		case heap2Clean:
			return "CLEAN"
		case heap2FreezePage:
			return "FREEZE_PAGE"
		case heap2MultiInsert:
			return "MULTI_INSERT"
		}
	case RmgrXact:
		switch info & xactOpMask {
		case xactCommit:
			return "COMMIT"
		case xactAbort:
			return "ABORT"
		case xactPrepare:
			return "PREPARE"
		default:
			return "XACT"
		}
	}
	return ""
}

// Describe renders "<name>" or "<name>: <operation>".
func Describe(id RmgrID, info uint8) string {
	name := NameOf(id)
	if op := OperationOf(id, info); op != "" {
		return name + ": " + op
	}
	return name
}
