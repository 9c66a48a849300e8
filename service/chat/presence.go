package chat

import (
	"sync"
)

// Directory 是进程内的在线表：userID -> 当前活跃连接。
// 同一用户重复连接时后连的覆盖先连的（last-connected-wins）。
type Directory struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewDirectory() *Directory {
	return &Directory{conns: make(map[string]*Client)}
}

// Register 登记连接；返回被覆盖的旧连接（如有）。
func (d *Directory) Register(userID string, c *Client) (prev *Client) {
	if userID == "" || c == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	prev = d.conns[userID]
	d.conns[userID] = c
	return prev
}

// Resolve 查找某用户的活跃连接；无副作用。
func (d *Directory) Resolve(userID string) (*Client, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.conns[userID]
	return c, ok
}

// Unregister 幂等移除。只有当前登记的恰好是 c 时才删除：
// 断线回调晚到时不能误删同一用户重连后的新登记。
func (d *Directory) Unregister(userID string, c *Client) bool {
	if userID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.conns[userID]
	if !ok || cur != c {
		return false
	}
	delete(d.conns, userID)
	return true
}

// Snapshot 返回当前全部连接的拷贝（广播用，不持锁遍历）。
func (d *Directory) Snapshot() []*Client {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Client, 0, len(d.conns))
	for _, c := range d.conns {
		out = append(out, c)
	}
	return out
}

func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.conns)
}

// EmitTo 给某个在线用户发一条事件；不在线时返回 false。
// 非实时代码路径（REST 写入后推送）也走这里。
func (d *Directory) EmitTo(userID, event string, data any) bool {
	c, ok := d.Resolve(userID)
	if !ok {
		return false
	}
	return c.Emit(event, data) == nil
}
