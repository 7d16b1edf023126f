package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// StateDigest hashes the observable simulation state: costmap cells, rover
// pose, path shape and index. Two worlds fed the same seed and the same
// input sequence must produce identical digests on every tick.
func (w *World) StateDigest() string {
	h := sha256.New()
	var buf [8]byte

	writeU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	writeF64 := func(v float64) {
		writeU64(math.Float64bits(v))
	}

	writeU64(w.tick.Load())
	writeU64(w.seed)
	writeU64(w.store.Version())

	cm := w.store.Current()
	writeU64(uint64(cm.Width))
	writeU64(uint64(cm.Height))
	for _, c := range cm.Cells {
		writeU64(uint64(int64(c)))
	}

	pos := w.ctrl.Position()
	writeF64(pos.X)
	writeF64(pos.Y)
	writeF64(pos.Z)
	writeF64(w.ctrl.Heading())
	writeU64(uint64(w.ctrl.PathIndex()))
	writeU64(uint64(w.ctrl.PathLength()))

	for _, p := range w.rawPath {
		writeU64(uint64(int64(p.X)))
		writeU64(uint64(int64(p.Y)))
	}

	return hex.EncodeToString(h.Sum(nil))
}
