package backend

import (
	"bagua-net/pkg/errs"
	"bagua-net/pkg/handles"
	"bagua-net/pkg/transfer"
)

// Send queues data on a send communicator and returns a request ID at once.
// data must stay untouched until Test reports a terminal state.
func (b *Backend) Send(id handles.ID, data []byte) (handles.ID, error) {
	return b.submit("send", id, KindSend, data)
}

// Recv queues buf to be filled from a recv communicator. buf must stay
// untouched until Test reports a terminal state.
func (b *Backend) Recv(id handles.ID, buf []byte) (handles.ID, error) {
	return b.submit("recv", id, KindRecv, buf)
}

func (b *Backend) submit(op string, id handles.ID, kind Kind, buf []byte) (handles.ID, error) {
	c, err := b.lookup(op, id, kind)
	if err != nil {
		return handles.Invalid, b.fail(op, err)
	}

	var stream *transfer.Stream
	switch sc := c.(type) {
	case *sendComm:
		stream = sc.stream
	case *recvComm:
		stream = sc.stream
	}
	rid := b.requests.Insert(&request{req: stream.Submit(buf), comm: id})
	return rid, nil
}

// Test polls a request. Once it reports Complete or Failed the request ID is
// released and later calls with it fail NotFound.
func (b *Backend) Test(id handles.ID) (transfer.Status, error) {
	const op = "test"
	r, ok := b.requests.Get(id)
	if !ok {
		return transfer.Status{}, b.fail(op, errs.NotFound(op, "no request %d", uint64(id)))
	}

	st := r.req.Test()
	if st.State == transfer.Pending {
		return st, nil
	}
	if _, removed := b.requests.Remove(id); removed {
		dir := r.req.Direction().String()
		b.rec.RequestDone(dir, st.Bytes, st.Err)
		if st.Err != nil {
			b.log.Warn("request failed", map[string]any{
				"op":    dir,
				"comm":  r.comm.String(),
				"bytes": st.Bytes,
				"kind":  errs.KindName(st.Err),
				"err":   st.Err.Error(),
			})
		}
	}
	return st, nil
}
