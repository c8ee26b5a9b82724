// Package net carries the sensor protocol between nodes.
//
// The protocol has five fixed-size packet variants, tagged by their first
// byte (see Signature). A datagram is valid if and only if its signature is
// known and its length is exactly the wire size of that variant; Decode
// applies that check and nothing more.
//
// Datagrams travel over a Transport, a broadcast medium where every node also
// hears its own packets. There are two implementations:
//
// - UDP: a non-blocking IPv4 broadcast socket driven by the reactor (Linux)
//
// - Inmem: an in-memory segment used only for testing, where delivery
// happens when the test calls Flush
package net
