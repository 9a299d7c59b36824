package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sakateka/yanet2-sub001/internal/xpacket2"
)

func TestLoopbackSourcePollDrainsInOrder(t *testing.T) {
	src := newLoopbackSource()
	p1 := &xpacket2.Packet{Data: []byte{1}}
	p2 := &xpacket2.Packet{Data: []byte{2}}
	p3 := &xpacket2.Packet{Data: []byte{3}}
	src.Inject(p1, p2, p3)

	got, err := src.Poll(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []*xpacket2.Packet{p1, p2}, got)

	got, err = src.Poll(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []*xpacket2.Packet{p3}, got)

	got, err = src.Poll(context.Background(), 2)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestLoopbackSourceTransmitRequeues(t *testing.T) {
	src := newLoopbackSource()
	p := &xpacket2.Packet{Data: []byte{1}}

	require.NoError(t, src.Transmit(context.Background(), []*xpacket2.Packet{p}))

	got, err := src.Poll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []*xpacket2.Packet{p}, got)
}

func TestLoopbackSourceDiscardIsNoop(t *testing.T) {
	src := newLoopbackSource()
	p := &xpacket2.Packet{Data: []byte{1}}
	src.Inject(p)
	src.Discard([]*xpacket2.Packet{p})

	got, err := src.Poll(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, []*xpacket2.Packet{p}, got)
}
