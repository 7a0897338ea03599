package server

import (
	"encoding/binary"

	"github.com/armandparker/cachesrv/internal/store"
	"github.com/armandparker/cachesrv/internal/wire"
)

// dispatch processes one decoded request against st and returns the
// response to write back. It never returns an error: every outcome,
// including an unknown opcode, is expressed as a status code in the
// response instead.
func dispatch(st *store.Store, req *wire.Message) *wire.Message {
	resp := &wire.Message{
		Magic:    wire.MagicResponse,
		Opcode:   req.Opcode,
		Opaque:   req.Opaque,
		DataType: 0,
		CAS:      0,
	}

	switch req.Opcode {
	case wire.OpGet:
		handleGet(st, req, resp)
	case wire.OpSet:
		handleSet(st, req, resp)
	default:
		resp.StatusOrVBucket = wire.StatusUnknownCommand
		resp.Value = []byte("unknown command, only get and set allowed")
	}

	return resp
}

func handleGet(st *store.Store, req *wire.Message, resp *wire.Message) {
	if len(req.Extras) != 0 || len(req.Value) != 0 || len(req.Key) == 0 {
		resp.StatusOrVBucket = wire.StatusInvalidArguments
		resp.Value = []byte("invalid arguments")
		return
	}

	entry, err := st.Get(string(req.Key))
	if err != nil {
		resp.StatusOrVBucket = wire.StatusKeyNotFound
		resp.Value = []byte("key not found")
		return
	}

	extras := make([]byte, 4)
	binary.BigEndian.PutUint32(extras, entry.Flags)
	resp.Extras = extras
	resp.Value = entry.Value
	resp.StatusOrVBucket = wire.StatusOK
}

func handleSet(st *store.Store, req *wire.Message, resp *wire.Message) {
	if len(req.Extras) == 0 || len(req.Key) == 0 || len(req.Value) == 0 {
		resp.StatusOrVBucket = wire.StatusInvalidArguments
		resp.Value = []byte("invalid arguments")
		return
	}

	if len(req.Value) > wire.MaxSetValueLen {
		resp.StatusOrVBucket = wire.StatusValueTooLarge
		resp.Value = []byte("value too large")
		return
	}

	// extras: [flags:4][expiration:4]; expiration is accepted and ignored.
	if len(req.Extras) < 8 {
		resp.StatusOrVBucket = wire.StatusInvalidArguments
		resp.Value = []byte("invalid arguments")
		return
	}
	flags := binary.BigEndian.Uint32(req.Extras[0:4])

	if err := st.Put(string(req.Key), flags, req.Value); err != nil {
		resp.StatusOrVBucket = wire.StatusOutOfMemory
		resp.Value = []byte("out of memory")
		return
	}

	resp.StatusOrVBucket = wire.StatusOK
}
