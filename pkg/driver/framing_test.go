/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package driver

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/edgebridge/pkg/logger"
	"github.com/carverauto/edgebridge/pkg/models"
)

func nextEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()

	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no driver event")
		return Event{}
	}
}

func TestASCIITCPLineFraming(t *testing.T) {
	a := &ASCIITCP{
		base:    newBase(logger.NewTestLogger()),
		details: models.ASCIITCPConnDetails{IP: "10.0.0.5", Port: 7777},
	}

	client, server := net.Pipe()
	done := make(chan struct{})

	go a.readLoop(client, done)

	go func() {
		_, _ = server.Write([]byte("21.5\n1013\npartial"))
		_ = server.Close()
	}()

	for _, want := range []string{"21.5", "1013"} {
		ev := nextEvent(t, a.Events())
		require.Equal(t, EventData, ev.Kind)
		assert.True(t, ev.ParseVals)
		assert.Equal(t, want, ev.Data["10.0.0.5:7777"])
	}

	// the unterminated tail is still delivered as the final line
	ev := nextEvent(t, a.Events())
	require.Equal(t, EventData, ev.Kind)
	assert.Equal(t, "partial", ev.Data["10.0.0.5:7777"])

	ev = nextEvent(t, a.Events())
	assert.Equal(t, EventClose, ev.Kind)
}

func TestASCIITCPReadLoopQuietAfterStop(t *testing.T) {
	a := &ASCIITCP{
		base:    newBase(logger.NewTestLogger()),
		details: models.ASCIITCPConnDetails{IP: "10.0.0.5", Port: 7777},
	}

	client, server := net.Pipe()
	done := make(chan struct{})

	go a.readLoop(client, done)

	close(done)
	_ = server.Close()

	select {
	case ev := <-a.Events():
		t.Fatalf("unexpected event after stop: %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUDPDatagramFraming(t *testing.T) {
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	u := &UDP{
		base:    newBase(logger.NewTestLogger()),
		details: models.UDPConnDetails{Port: 9999},
	}

	done := make(chan struct{})
	go u.readLoop(conn, done)

	sender, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)

	defer sender.Close()

	_, err = sender.Write([]byte("21.5;1013"))
	require.NoError(t, err)

	ev := nextEvent(t, u.Events())
	require.Equal(t, EventData, ev.Kind)
	assert.True(t, ev.ParseVals)
	assert.Equal(t, []byte("21.5;1013"), ev.Data["9999"])

	close(done)
	require.NoError(t, conn.Close())

	select {
	case ev := <-u.Events():
		t.Fatalf("unexpected event after stop: %v", ev.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOpenProtocolFrame(t *testing.T) {
	msg := frame("0060", nil)

	require.Len(t, msg, opHeaderLen+1)
	assert.Equal(t, "00200060001         ", string(msg[:opHeaderLen]))
	assert.Equal(t, byte(0), msg[opHeaderLen])

	msg = frame("0018", []byte("0450"))

	require.Len(t, msg, opHeaderLen+4+1)
	assert.Equal(t, "0024", string(msg[:4]))
	assert.Equal(t, "0018", string(msg[4:8]))
	assert.Equal(t, "0450", string(msg[opHeaderLen:opHeaderLen+4]))
	assert.Equal(t, byte(0), msg[len(msg)-1])
}

func TestOpenProtocolReadLoop(t *testing.T) {
	o := &OpenProtocol{
		base:    newBase(logger.NewTestLogger()),
		details: models.OpenProtocolConnDetails{IP: "10.0.0.9", Port: 4545},
	}

	client, server := net.Pipe()
	done := make(chan struct{})

	go o.readLoop(client, done)

	go func() {
		_, _ = server.Write(frame(midCommStartAck, nil))
		_, _ = server.Write(frame(midKeepAlive, nil))
		_, _ = server.Write(frame("0061", []byte("result")))
		_, _ = server.Write(frame(midError, []byte("0097")))
		_ = server.Close()
	}()

	ev := nextEvent(t, o.Events())
	assert.Equal(t, EventOpen, ev.Kind)

	// the keep-alive is swallowed, the data MID comes straight through
	ev = nextEvent(t, o.Events())
	require.Equal(t, EventData, ev.Kind)
	assert.True(t, ev.ParseVals)
	assert.Equal(t, "result", ev.Data["0061"])

	ev = nextEvent(t, o.Events())
	require.Equal(t, EventError, ev.Kind)
	assert.ErrorIs(t, ev.Err, errOpenProtocolNoAck)

	// pipe teardown surfaces as a read error followed by close
	ev = nextEvent(t, o.Events())
	assert.Equal(t, EventError, ev.Kind)

	ev = nextEvent(t, o.Events())
	assert.Equal(t, EventClose, ev.Kind)
}
