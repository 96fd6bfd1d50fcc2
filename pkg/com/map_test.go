package com

import (
	"fmt"
	"sync/atomic"
	"testing"
)

type testClient struct {
	id Uid
	c  int32
}

func (t *testClient) Id() Uid        { return t.id }
func (t *testClient) Disconnect()    {}
func (t *testClient) change(n int32) { atomic.AddInt32(&t.c, n) }

func TestPointerValue(t *testing.T) {
	m := NewNetMap[*testClient]()
	c := testClient{id: NewUid()}
	m.Add(&c)
	fc, _ := m.FindBy(func(x *testClient) bool { return x.id == c.id })
	c.change(100)
	fc2, _ := m.Find(c.id)

	if c.c != fc.c || c.c != fc2.c {
		t.Errorf("not expected change, o: %v != %v != %v", c.c, fc.c, fc2.c)
	}
}

func TestMapFind(t *testing.T) {
	m := NewMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)

	if _, err := m.Find(""); err != ErrNotFound {
		t.Errorf("empty key should not be found")
	}
	if _, err := m.Find("zzz"); err != ErrNotFound {
		t.Errorf("unknown key should not be found")
	}
	if v, err := m.Find("b"); err != nil || v != 2 {
		t.Errorf("expected 2, got %v (%v)", v, err)
	}
	if m.Len() != 2 {
		t.Errorf("expected 2 elements, got %v", m.Len())
	}
	m.RemoveByKey("a")
	if m.Has("a") {
		t.Errorf("a should be gone")
	}
}

func TestMapForEach(t *testing.T) {
	m := NewMap[int, string]()
	for i := 0; i < 10; i++ {
		m.Put(i, fmt.Sprintf("v%d", i))
	}
	n := 0
	m.ForEach(func(string) { n++ })
	if n != 10 {
		t.Errorf("expected 10 iterations, got %v", n)
	}
	if len(m.Keys()) != 10 {
		t.Errorf("expected 10 keys")
	}
}
