package com

// NetClient is a connected remote party tracked by a NetMap.
type NetClient interface {
	Disconnect()
	Id() Uid
}

// NetMap is a registry of connected clients keyed by their connection ids.
type NetMap[T NetClient] struct{ Map[Uid, T] }

func NewNetMap[T NetClient]() NetMap[T] {
	return NetMap[T]{Map: Map[Uid, T]{m: make(map[Uid]T, 10)}}
}

func (m *NetMap[T]) Add(client T)              { m.Put(client.Id(), client) }
func (m *NetMap[T]) Remove(client T)           { m.RemoveByKey(client.Id()) }
func (m *NetMap[T]) RemoveDisconnect(client T) { client.Disconnect(); m.Remove(client) }
