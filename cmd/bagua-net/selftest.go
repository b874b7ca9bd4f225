package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"bagua-net/pkg/backend"
	"bagua-net/pkg/handles"
	"bagua-net/pkg/transfer"
)

type selfTestResult struct {
	Device   int
	Addr     string
	Bytes    int
	Elapsed  time.Duration
	Polls    int
	MBPerSec float64
}

func (r selfTestResult) fields() map[string]any {
	return map[string]any{
		"device":     r.Device,
		"addr":       r.Addr,
		"bytes":      r.Bytes,
		"elapsed_ms": r.Elapsed.Milliseconds(),
		"polls":      r.Polls,
		"mb_per_sec": r.MBPerSec,
	}
}

// runSelfTest connects device dev to itself and moves size bytes through a
// send/recv pair, polling both requests from this goroutine.
func runSelfTest(ctx context.Context, b *backend.Backend, dev, size int) (selfTestResult, error) {
	h, lid, err := b.Listen(dev)
	if err != nil {
		return selfTestResult{}, err
	}
	defer b.CloseListen(lid)

	type accepted struct {
		id  handles.ID
		err error
	}
	acc := make(chan accepted, 1)
	go func() {
		id, _, err := b.Accept(lid)
		acc <- accepted{id, err}
	}()

	sid, err := b.Connect(dev, h)
	if err != nil {
		return selfTestResult{}, err
	}
	defer b.CloseSend(sid)
	a := <-acc
	if a.err != nil {
		return selfTestResult{}, a.err
	}
	defer b.CloseRecv(a.id)

	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	buf := make([]byte, size)

	start := time.Now()
	sr, err := b.Send(sid, data)
	if err != nil {
		return selfTestResult{}, err
	}
	rr, err := b.Recv(a.id, buf)
	if err != nil {
		return selfTestResult{}, err
	}

	polls := 0
	pending := map[handles.ID]bool{sr: true, rr: true}
	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return selfTestResult{}, err
		}
		for id := range pending {
			st, err := b.Test(id)
			if err != nil {
				return selfTestResult{}, err
			}
			switch st.State {
			case transfer.Failed:
				return selfTestResult{}, st.Err
			case transfer.Complete:
				delete(pending, id)
			}
		}
		polls++
	}
	elapsed := time.Since(start)

	if !bytes.Equal(buf, data) {
		return selfTestResult{}, fmt.Errorf("payload mismatch")
	}
	res := selfTestResult{Device: dev, Addr: h.String(), Bytes: size, Elapsed: elapsed, Polls: polls}
	if s := elapsed.Seconds(); s > 0 {
		res.MBPerSec = float64(size) / (1 << 20) / s
	}
	return res, nil
}
