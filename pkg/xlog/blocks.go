package xlog

import (
	"encoding/binary"
	"fmt"
)

// RelFileNode identifies the storage of a relation.
type RelFileNode struct {
	SpcNode uint32 `json:"spc_node"`
	DBNode  uint32 `json:"db_node"`
	RelNode uint32 `json:"rel_node"`
}

func (n RelFileNode) String() string {
	return fmt.Sprintf("%d/%d/%d", n.SpcNode, n.DBNode, n.RelNode)
}

// UnpackRelations walks the block references at the start of a record
// payload and appends the relation of every block header to refs.
//
// A block header flagged "same relation" reuses the last relation seen in
// this payload (zero before the first one). Unpacking stops silently at the
// main data tags, at an unknown tag, or as soon as the next field does not
// fit; relations gathered up to that point are kept.
func UnpackRelations(payload []byte, refs []RelFileNode) []RelFileNode {
	var last RelFileNode
	n := len(payload)
	off := 0

	for off < n {
		id := payload[off]

		switch {
		case id <= maxBlockID:
			if off+blockHeaderSize > n {
				return refs
			}
			forkFlags := payload[off+1]
			off += blockHeaderSize

			if forkFlags&bkpBlockHasImage != 0 {
				if off+imageHeaderSize > n {
					return refs
				}
				bimgInfo := payload[off+4]
				off += imageHeaderSize

				if bimgInfo&bkpImageHasHole != 0 && bimgInfo&bkpImageCompressed != 0 {
					if off+compressHeaderSize > n {
						return refs
					}
					off += compressHeaderSize
				}
			}

			if forkFlags&bkpBlockSameRel == 0 {
				if off+relFileNodeSize > n {
					return refs
				}
				last = RelFileNode{
					SpcNode: binary.LittleEndian.Uint32(payload[off : off+4]),
					DBNode:  binary.LittleEndian.Uint32(payload[off+4 : off+8]),
					RelNode: binary.LittleEndian.Uint32(payload[off+8 : off+12]),
				}
				off += relFileNodeSize
			}

			refs = append(refs, last)

			if off+blockNumberSize > n {
				return refs
			}
			off += blockNumberSize

		case id == blockIDDataShort, id == blockIDDataLong:
			return refs

		case id == blockIDOrigin:
			if off+1+originSize > n {
				return refs
			}
			off += 1 + originSize

		case id == blockIDTopLevelXID:
			if off+1+topLevelXIDSize > n {
				return refs
			}
			off += 1 + topLevelXIDSize

		default:
			return refs
		}
	}
	return refs
}
