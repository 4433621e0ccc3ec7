package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kir-gadjello/aperture/chat"
)

func TestPlainChatReaderStopsAfterExit(t *testing.T) {
	var out bytes.Buffer
	p := &plainChat{
		ctrl: chat.New(nil, nil),
		in:   strings.NewReader("exit\nmore\nlines\n"),
		out:  &out,
	}
	require.NoError(t, p.run(context.Background()))

	// Nobody reads the remaining lines; the reader must give up on its own.
	time.Sleep(50 * time.Millisecond)
	select {
	case line, ok := <-p.lines:
		assert.False(t, ok, "reader still sending %q", line)
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}
}

func TestPlainChatReaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	p := &plainChat{
		ctrl: chat.New(nil, nil),
		in:   strings.NewReader("Hello\nagain\n"),
		out:  &out,
	}
	require.NoError(t, p.run(ctx))

	time.Sleep(50 * time.Millisecond)
	select {
	case line, ok := <-p.lines:
		assert.False(t, ok, "reader still sending %q", line)
	case <-time.After(time.Second):
		t.Fatal("reader goroutine did not exit")
	}
}
