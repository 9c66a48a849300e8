package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryRegisterResolve(t *testing.T) {
	d := NewDirectory()

	c1 := &Client{ConnID: "c1", UserID: "u1"}
	prev := d.Register("u1", c1)
	assert.Nil(t, prev)
	assert.Equal(t, 1, d.Len())

	got, ok := d.Resolve("u1")
	assert.True(t, ok)
	assert.Same(t, c1, got)

	_, ok = d.Resolve("nobody")
	assert.False(t, ok)
}

func TestDirectoryLastConnectedWins(t *testing.T) {
	d := NewDirectory()

	c1 := &Client{ConnID: "c1", UserID: "u1"}
	c2 := &Client{ConnID: "c2", UserID: "u1"}

	d.Register("u1", c1)
	prev := d.Register("u1", c2)
	assert.Same(t, c1, prev)

	got, _ := d.Resolve("u1")
	assert.Same(t, c2, got)
	assert.Equal(t, 1, d.Len())
}

// 旧连接的断线回调晚到时不能摘掉新连接的登记
func TestDirectoryGuardedUnregister(t *testing.T) {
	d := NewDirectory()

	c1 := &Client{ConnID: "c1", UserID: "u1"}
	c2 := &Client{ConnID: "c2", UserID: "u1"}

	d.Register("u1", c1)
	d.Register("u1", c2) // 重连覆盖

	// c1 的清理晚到：必须是 no-op
	assert.False(t, d.Unregister("u1", c1))
	got, ok := d.Resolve("u1")
	assert.True(t, ok)
	assert.Same(t, c2, got)

	// c2 自己清理才生效
	assert.True(t, d.Unregister("u1", c2))
	_, ok = d.Resolve("u1")
	assert.False(t, ok)

	// 重复清理幂等
	assert.False(t, d.Unregister("u1", c2))
}

func TestDirectorySnapshot(t *testing.T) {
	d := NewDirectory()
	d.Register("u1", &Client{ConnID: "c1", UserID: "u1"})
	d.Register("u2", &Client{ConnID: "c2", UserID: "u2"})

	snap := d.Snapshot()
	assert.Len(t, snap, 2)

	users := map[string]bool{}
	for _, c := range snap {
		users[c.UserID] = true
	}
	assert.True(t, users["u1"])
	assert.True(t, users["u2"])
}

func TestDirectoryEmitToOffline(t *testing.T) {
	d := NewDirectory()
	assert.False(t, d.EmitTo("ghost", EvtMessageNew, nil))
}
